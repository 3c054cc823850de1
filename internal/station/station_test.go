package station

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/capturelog"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor/simdriver"
	"github.com/nerrad567/gray-logic-biometric/internal/snapshot"
)

// mockRecorder records saved images.
type mockRecorder struct {
	mu     sync.Mutex
	images []capturelog.SavedImage
}

func (m *mockRecorder) RecordSavedImage(_ context.Context, img capturelog.SavedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, img)
	return nil
}

// mockAuditor records audit entries.
type mockAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *mockAuditor) Record(_ context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockAuditor) Entries() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.entries...)
}

type fixture struct {
	station  *Station
	driver   *simdriver.Driver
	session  *sensor.Session
	loop     *capture.Loop
	recorder *mockRecorder
	auditor  *mockAuditor
}

func newFixture(t *testing.T, withSnapshots bool) *fixture {
	t.Helper()

	driver := simdriver.New(simdriver.Options{Width: 100, Height: 100})
	opts := sensor.DefaultOptions()
	opts.StartupDelay = 0
	opts.LEDSettle = 0
	opts.LEDRetryDelay = 0
	opts.BeepDuration = 0
	session := sensor.NewSession(driver, opts)

	loop := capture.New(session, quality.NewScorer(quality.DefaultParams()), nil, capture.Options{
		PollInterval: time.Millisecond,
	})

	var snaps *snapshot.Writer
	if withSnapshots {
		snaps = snapshot.NewWriter(t.TempDir())
	}
	rec := &mockRecorder{}
	aud := &mockAuditor{}

	st := New(Config{
		StationID:  "test-station",
		Session:    session,
		Loop:       loop,
		Snapshots:  snaps,
		CaptureLog: rec,
		Audit:      aud,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		st.StopCapture(ctx) //nolint:errcheck // Best effort cleanup
		session.Shutdown()
	})

	return &fixture{station: st, driver: driver, session: session, loop: loop, recorder: rec, auditor: aud}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStation_StatusBeforeStart(t *testing.T) {
	f := newFixture(t, true)

	st := f.station.Status()
	if st.StationID != "test-station" {
		t.Errorf("StationID = %q", st.StationID)
	}
	if st.Sensor.StateName != "uninitialized" {
		t.Errorf("sensor state = %q, want uninitialized", st.Sensor.StateName)
	}
	if st.Capture.Running || st.LastVerdict != nil {
		t.Errorf("status = %+v, want idle with no verdict", st)
	}
	if _, _, ok := f.station.LastVerdict(); ok {
		t.Error("LastVerdict() ok before any capture")
	}
}

func TestStation_CaptureAndSave(t *testing.T) {
	f := newFixture(t, true)
	f.driver.SetFinger(true)

	if err := f.station.StartCapture(); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	waitFor(t, "a verdict", func() bool {
		_, _, ok := f.station.LastVerdict()
		return ok
	})

	v, label, _ := f.station.LastVerdict()
	if !v.Present || label == "" {
		t.Errorf("LastVerdict() = %+v %q", v, label)
	}

	img, err := f.station.SaveLast(context.Background())
	if err != nil {
		t.Fatalf("SaveLast() error = %v", err)
	}
	if _, err := os.Stat(img.Path); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
	if _, err := uuid.Parse(img.CaptureID); err != nil {
		t.Errorf("CaptureID %q is not a UUID: %v", img.CaptureID, err)
	}
	if img.Width != 100 || img.StationID != "test-station" {
		t.Errorf("saved image = %+v", img)
	}

	f.recorder.mu.Lock()
	recorded := len(f.recorder.images)
	f.recorder.mu.Unlock()
	if recorded != 1 {
		t.Errorf("recorded images = %d, want 1", recorded)
	}

	st := f.station.Status()
	if !st.Capture.Running || st.LastVerdict == nil || st.Sensor.StateName != "ready" {
		t.Errorf("status = %+v", st)
	}

	if err := f.station.StopCapture(context.Background()); err != nil {
		t.Fatalf("StopCapture() error = %v", err)
	}
	if f.loop.Running() {
		t.Error("loop still running after StopCapture")
	}
}

func TestStation_SaveLastErrors(t *testing.T) {
	disabled := newFixture(t, false)
	if _, err := disabled.station.SaveLast(context.Background()); !errors.Is(err, ErrSnapshotsDisabled) {
		t.Errorf("SaveLast() without writer = %v, want ErrSnapshotsDisabled", err)
	}

	empty := newFixture(t, true)
	if _, err := empty.station.SaveLast(context.Background()); !errors.Is(err, ErrNoFrame) {
		t.Errorf("SaveLast() before capture = %v, want ErrNoFrame", err)
	}
}

func TestStation_StartCaptureTwice(t *testing.T) {
	f := newFixture(t, false)

	if err := f.station.StartCapture(); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	if err := f.station.StartCapture(); !errors.Is(err, capture.ErrAlreadyRunning) {
		t.Errorf("second StartCapture() = %v, want ErrAlreadyRunning", err)
	}
}

func TestStation_StartCaptureSensorUnavailable(t *testing.T) {
	f := newFixture(t, false)
	f.driver.FailOpen(true)

	err := f.station.StartCapture()
	if !errors.Is(err, capture.ErrSessionUnavailable) || !errors.Is(err, sensor.ErrOpenDevice) {
		t.Errorf("StartCapture() = %v, want ErrSessionUnavailable wrapping ErrOpenDevice", err)
	}
}

func TestStation_Run(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.station.Run(ctx) }()

	// Run binds the base context before blocking.
	waitFor(t, "base context", func() bool {
		f.station.mu.Lock()
		defer f.station.mu.Unlock()
		return f.station.base == ctx
	})

	if err := f.station.StartCapture(); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if f.loop.Running() {
		t.Error("loop running after Run returned")
	}
	if got := f.session.State(); got != sensor.StateUninitialized {
		t.Errorf("session state = %v, want uninitialized", got)
	}
}

func TestStation_TemplateOperations(t *testing.T) {
	f := newFixture(t, false)
	if err := f.session.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := f.station.Enroll(5, []byte("ridge-template")); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	id, err := f.station.Identify([]byte("ridge-template"))
	if err != nil || !id.Matched || id.ID != 5 {
		t.Errorf("Identify() = %+v, %v", id, err)
	}

	ok, err := f.station.Verify([]byte("ridge-template"), []byte("ridge-template"))
	if err != nil || !ok {
		t.Errorf("Verify(same) = %v, %v; want true", ok, err)
	}
	ok, err = f.station.Verify([]byte("ridge-template"), []byte("xxxxxxxxxxxxxx"))
	if err != nil || ok {
		t.Errorf("Verify(different) = %v, %v; want false", ok, err)
	}
}

func TestStation_HealthSnapshot(t *testing.T) {
	f := newFixture(t, false)

	snap := f.station.HealthSnapshot()
	if snap.SensorState != "uninitialized" || snap.Capture.Running {
		t.Errorf("snapshot = %+v", snap)
	}

	if err := f.station.StartCapture(); err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	snap = f.station.HealthSnapshot()
	if snap.SensorState != "ready" || snap.Width != 100 || !snap.Capture.Running {
		t.Errorf("snapshot after start = %+v", snap)
	}
}
