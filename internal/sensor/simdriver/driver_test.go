package simdriver

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-biometric/internal/quality"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
)

func openDevice(t *testing.T, d *Driver) sensor.Handle {
	t.Helper()
	if code := d.Init(); code.Failed() {
		t.Fatalf("Init() = %d", code)
	}
	h := d.OpenDevice(0)
	if h == 0 {
		t.Fatal("OpenDevice(0) = 0")
	}
	return h
}

func TestDriver_Dimensions(t *testing.T) {
	d := New(Options{Width: 64, Height: 48})
	h := openDevice(t, d)

	w, code := d.GetParameter(h, sensor.ParamImageWidth)
	if code.Failed() || sensor.DecodeParam(w) != 64 {
		t.Errorf("width = %d (code %d), want 64", sensor.DecodeParam(w), code)
	}
	ht, code := d.GetParameter(h, sensor.ParamImageHeight)
	if code.Failed() || sensor.DecodeParam(ht) != 48 {
		t.Errorf("height = %d (code %d), want 48", sensor.DecodeParam(ht), code)
	}
	if code := d.SetParameter(h, sensor.ParamImageWidth, sensor.EncodeParam(10)); !code.Failed() {
		t.Error("SetParameter(width) succeeded, want read-only")
	}
}

func TestDriver_OpenRequiresInit(t *testing.T) {
	d := New(Options{})
	if h := d.OpenDevice(0); h != 0 {
		t.Errorf("OpenDevice before Init = %d, want 0", h)
	}
	d.Init()
	if h := d.OpenDevice(1); h != 0 {
		t.Errorf("OpenDevice(1) = %d, want 0", h)
	}
}

func TestDriver_Frames(t *testing.T) {
	scorer := quality.NewScorer(quality.DefaultParams())
	d := New(Options{})
	h := openDevice(t, d)
	buf := make([]byte, DefaultWidth*DefaultHeight)

	if code := d.AcquireFrame(h, buf); code.Failed() {
		t.Fatalf("AcquireFrame() = %d", code)
	}
	if scorer.Present(buf) {
		t.Error("blank frame reported present")
	}

	d.SetFinger(true)
	if code := d.AcquireFrame(h, buf); code.Failed() {
		t.Fatalf("AcquireFrame() = %d", code)
	}
	v, err := scorer.Evaluate(buf, DefaultWidth, DefaultHeight)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !v.Present || v.IsSuspect() || v.Score <= 0 {
		t.Errorf("finger verdict = %+v, want present, scored, not suspect", v)
	}
}

func TestDriver_PresenceCycle(t *testing.T) {
	scorer := quality.NewScorer(quality.DefaultParams())
	d := New(Options{Width: 100, Height: 100, PresentFrames: 2, AbsentFrames: 3})
	h := openDevice(t, d)
	buf := make([]byte, 100*100)

	want := []bool{true, true, false, false, false, true, true, false}
	for i, w := range want {
		if code := d.AcquireFrame(h, buf); code.Failed() {
			t.Fatalf("frame %d: AcquireFrame() = %d", i, code)
		}
		if got := scorer.Present(buf); got != w {
			t.Errorf("frame %d: present = %v, want %v", i, got, w)
		}
	}
}

func TestDriver_AcquireErrors(t *testing.T) {
	d := New(Options{Width: 10, Height: 10})
	h := openDevice(t, d)
	buf := make([]byte, 100)

	d.FailAcquire(2)
	for i := range 2 {
		if code := d.AcquireFrame(h, buf); !code.Failed() {
			t.Errorf("injected failure %d: AcquireFrame() succeeded", i)
		}
	}
	if code := d.AcquireFrame(h, buf); code.Failed() {
		t.Errorf("after injected failures: AcquireFrame() = %d", code)
	}
	if code := d.AcquireFrame(h, make([]byte, 99)); !code.Failed() {
		t.Error("AcquireFrame with short buffer succeeded")
	}
	if code := d.AcquireFrame(h+100, buf); !code.Failed() {
		t.Error("AcquireFrame with unknown handle succeeded")
	}
	if got := d.Calls().Acquire; got != 5 {
		t.Errorf("Calls().Acquire = %d, want 5", got)
	}
}

func TestDriver_LEDFailure(t *testing.T) {
	d := New(Options{})
	h := openDevice(t, d)

	d.FailLED(1)
	if code := d.SetParameter(h, sensor.ParamLED, sensor.EncodeParam(int(sensor.LEDOff))); code.Failed() {
		t.Errorf("LED off write failed: %d", code)
	}
	if code := d.SetParameter(h, sensor.ParamLED, sensor.EncodeParam(int(sensor.LEDRed))); !code.Failed() {
		t.Error("injected LED failure did not fail")
	}
	if code := d.SetParameter(h, sensor.ParamLED, sensor.EncodeParam(int(sensor.LEDRed))); code.Failed() {
		t.Errorf("second LED write failed: %d", code)
	}
	if v, _ := d.Param(sensor.ParamLED); v != int(sensor.LEDRed) {
		t.Errorf("LED param = %d, want red", v)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want int
	}{
		{"identical", []byte("abcd"), []byte("abcd"), 100},
		{"half equal", []byte("abcd"), []byte("abxy"), 50},
		{"different length", []byte("ab"), []byte("abcd"), 50},
		{"disjoint", []byte("aaaa"), []byte("bbbb"), 0},
		{"empty", nil, []byte("a"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDriver_Identify(t *testing.T) {
	d := New(Options{})
	d.Init()
	db := d.OpenTemplateDB()
	if db == 0 {
		t.Fatal("OpenTemplateDB() = 0")
	}

	if id, _ := d.IdentifyTemplate(db, []byte("abcd")); id != -1 {
		t.Errorf("empty store: id = %d, want -1", id)
	}

	d.AddTemplate(db, 3, []byte("abcd"))
	d.AddTemplate(db, 7, []byte("wxyz"))

	id, score := d.IdentifyTemplate(db, []byte("abcz"))
	if id != 3 || score != 75 {
		t.Errorf("IdentifyTemplate() = (%d, %d), want (3, 75)", id, score)
	}
	if id, _ := d.IdentifyTemplate(db, []byte("qqqq")); id != -1 {
		t.Errorf("no match: id = %d, want -1", id)
	}
	if code := d.AddTemplate(db, 1, nil); !code.Failed() {
		t.Error("AddTemplate(empty) succeeded")
	}
}

func testSessionOptions() sensor.Options {
	opts := sensor.DefaultOptions()
	opts.StartupDelay = 0
	opts.LEDSettle = 0
	opts.LEDRetryDelay = 0
	opts.BeepDuration = 0
	return opts
}

func TestDriver_WithSession(t *testing.T) {
	ctx := context.Background()
	d := New(Options{Width: 32, Height: 32})
	s := sensor.NewSession(d, testSessionOptions())

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if w, h := s.Dimensions(); w != 32 || h != 32 {
		t.Errorf("Dimensions() = %dx%d, want 32x32", w, h)
	}

	d.FailLED(1)
	if err := s.SetLED(ctx, sensor.LEDRed); err != nil {
		t.Errorf("SetLED() with one injected failure = %v, want recovered", err)
	}
	if got := d.Calls().Init; got != 2 {
		t.Errorf("Init calls = %d, want 2 after LED retry", got)
	}

	if err := s.Enroll(1, []byte("template-one")); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	res, err := s.Identify([]byte("template-one"))
	if err != nil || !res.Matched || res.ID != 1 {
		t.Errorf("Identify() = %+v, %v; want match on id 1", res, err)
	}

	s.Shutdown()
	if got := d.Calls().Terminate; got < 1 {
		t.Errorf("Terminate calls = %d, want >= 1", got)
	}

	d.FailInit(true)
	if err := s.Initialize(ctx); !errors.Is(err, sensor.ErrSDKInit) {
		t.Errorf("Initialize() with failing SDK = %v, want ErrSDKInit", err)
	}
}
