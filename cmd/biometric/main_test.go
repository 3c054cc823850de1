package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/sensor/simdriver"
)

// writeConfig writes a minimal station config into a temp dir and returns its path.
func writeConfig(t *testing.T, driver string, port int) string {
	t.Helper()
	dir := t.TempDir()
	content := `
station:
  id: test-station

sensor:
  driver: ` + driver + `
  startup_delay_ms: 0
  led_settle_ms: 0
  poll_interval_ms: 10

captures:
  dir: "` + filepath.Join(dir, "captures") + `"

database:
  path: "` + filepath.Join(dir, "test.db") + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: ` + strconv.Itoa(port) + `
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml", false); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_UnknownDriver verifies run refuses a driver it cannot build.
func TestRun_UnknownDriver(t *testing.T) {
	path := writeConfig(t, "zk9500", freePort(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path, false)
	if err == nil || !strings.Contains(err.Error(), "unknown sensor driver") {
		t.Fatalf("run() error = %v, want unknown sensor driver", err)
	}
}

// TestRun_StartupAndShutdown starts the station on the simulated sensor,
// captures briefly and shuts down when the context ends.
func TestRun_StartupAndShutdown(t *testing.T) {
	path := writeConfig(t, "sim", freePort(t))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	if err := run(ctx, path, true); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("BIOMETRIC_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("BIOMETRIC_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "biometric "+version) {
		t.Errorf("output = %q", out)
	}
}

func writeFrame(t *testing.T, pixels []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.raw")
	if err := os.WriteFile(path, pixels, 0600); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	return path
}

func TestScoreCmd(t *testing.T) {
	const w, h = 100, 100

	finger := make([]byte, w*h)
	simdriver.RenderFinger(finger, w, h, 0)
	blank := make([]byte, w*h)
	simdriver.RenderBlank(blank)

	tests := []struct {
		name        string
		pixels      []byte
		wantPresent bool
	}{
		{"finger", finger, true},
		{"blank", blank, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := writeFrame(t, tt.pixels)
			pngPath := filepath.Join(t.TempDir(), "frame.png")

			out, err := execute(t, "score", raw, "--width", "100", "--height", "100", "--json", "--png", pngPath)
			if err != nil {
				t.Fatalf("score error = %v", err)
			}

			var res scoreResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("unmarshal %q: %v", out, err)
			}
			if res.Verdict.Present != tt.wantPresent {
				t.Errorf("present = %v, want %v", res.Verdict.Present, tt.wantPresent)
			}
			if tt.wantPresent && res.Verdict.Score <= 0 {
				t.Errorf("score = %d, want positive", res.Verdict.Score)
			}
			if res.Label == "" || res.Band == "" {
				t.Errorf("result = %+v, want band and label", res)
			}
			if _, err := os.Stat(pngPath); err != nil {
				t.Errorf("png not written: %v", err)
			}
		})
	}
}

func TestScoreCmd_Table(t *testing.T) {
	blank := make([]byte, 16)
	simdriver.RenderBlank(blank)

	out, err := execute(t, "score", writeFrame(t, blank), "--width", "4", "--height", "4")
	if err != nil {
		t.Fatalf("score error = %v", err)
	}
	for _, want := range []string{"size", "4x4", "present", "false", "status"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScoreCmd_SizeMismatch(t *testing.T) {
	if _, err := execute(t, "score", writeFrame(t, make([]byte, 10)), "--width", "4", "--height", "4"); err == nil {
		t.Fatal("score should fail when the file does not match the dimensions")
	}
}

func TestScoreCmd_RequiresDimensions(t *testing.T) {
	if _, err := execute(t, "score", writeFrame(t, make([]byte, 16))); err == nil {
		t.Fatal("score should fail without --width and --height")
	}
}

func TestPruneCmd(t *testing.T) {
	path := writeConfig(t, "sim", 8090)

	out, err := execute(t, "--config", path, "prune", "--older-than", "1h")
	if err != nil {
		t.Fatalf("prune error = %v", err)
	}
	if !strings.Contains(out, "pruned 0 rows") {
		t.Errorf("output = %q", out)
	}
}

func TestPruneCmd_InvalidConfig(t *testing.T) {
	if _, err := execute(t, "--config", "/nonexistent/config.yaml", "prune"); err == nil {
		t.Fatal("prune should fail with invalid config path")
	}
}
