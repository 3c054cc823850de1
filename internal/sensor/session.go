package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// defaultMatchThreshold is the verify threshold when none is configured.
const defaultMatchThreshold = 50

// Logger defines the logging interface used by the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Session. Zero durations mean "no pause".
type Options struct {
	// DeviceIndex is passed to Driver.OpenDevice.
	DeviceIndex int

	// DefaultLED is written right after a successful initialise.
	DefaultLED LEDColor

	// StartupDelay is the settling pause after SDK init and after closing
	// stale handles.
	StartupDelay time.Duration

	// LEDSettle is the pause between the "off" write and the colour write.
	LEDSettle time.Duration

	// LEDRetryDelay is the pause between shutdown and reinitialise when the
	// LED colour write fails.
	LEDRetryDelay time.Duration

	// BeepDuration is how long the buzzer stays on during Beep.
	BeepDuration time.Duration

	// Speed and Sensitivity are written by ConfigureAcquisition.
	Speed       int
	Sensitivity int

	// MatchThreshold is the minimum score for Verify. Defaults to 50.
	MatchThreshold int

	// Logger receives lifecycle and failure logs. Optional.
	Logger Logger
}

// DefaultOptions returns the timings the ZK-family sensors need in practice.
func DefaultOptions() Options {
	return Options{
		DefaultLED:     LEDGreen,
		StartupDelay:   time.Second,
		LEDSettle:      100 * time.Millisecond,
		LEDRetryDelay:  500 * time.Millisecond,
		BeepDuration:   200 * time.Millisecond,
		Speed:          1,
		Sensitivity:    3,
		MatchThreshold: defaultMatchThreshold,
	}
}

// Info is a point-in-time snapshot of the session.
type Info struct {
	State            State  `json:"-"`
	StateName        string `json:"state"`
	DeviceHandle     Handle `json:"device_handle"`
	TemplateDBHandle Handle `json:"template_db_handle"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
}

// Identification is the result of Identify.
type Identification struct {
	Matched bool `json:"matched"`
	ID      int  `json:"id"`
	Score   int  `json:"score"`
}

// Session owns one physical sensor: its handles, dimensions and state.
//
// Thread Safety: All methods are safe for concurrent use. Lifecycle changes
// (Initialize, Shutdown, SetLED, Beep, ConfigureAcquisition) hold the
// exclusive lock; AcquireFrame and template operations hold the shared lock.
type Session struct {
	driver Driver
	opts   Options
	logger Logger

	mu     sync.RWMutex
	state  State
	device Handle
	db     Handle
	width  int
	height int
	sdkUp  bool
}

// NewSession creates a session over the given driver. No device I/O happens
// until Initialize is called.
func NewSession(driver Driver, opts Options) *Session {
	if opts.MatchThreshold == 0 {
		opts.MatchThreshold = defaultMatchThreshold
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Session{
		driver: driver,
		opts:   opts,
		logger: logger,
		state:  StateUninitialized,
	}
}

// Initialize brings the session to Ready.
//
// It is a no-op if the session is already Ready. Otherwise it closes any
// stale handles (errors swallowed), initialises the SDK, opens the device,
// reads the image dimensions, opens the template database and sets the
// default LED colour. An LED failure is only a warning; every other failure
// leaves the session Failed and returns the matching sentinel error.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked(ctx)
}

func (s *Session) initializeLocked(ctx context.Context) error {
	if s.state == StateReady {
		return nil
	}

	if s.releaseStaleLocked() {
		if err := sleepCtx(ctx, s.opts.StartupDelay); err != nil {
			s.state = StateFailed
			return err
		}
	}

	s.logger.Info("initialising sensor SDK")
	if code := s.driver.Init(); code.Failed() {
		s.logger.Error("SDK initialisation failed", "code", int(code))
		s.state = StateFailed
		return ErrSDKInit
	}
	s.sdkUp = true

	if err := sleepCtx(ctx, s.opts.StartupDelay); err != nil {
		s.failLocked()
		return err
	}

	device := s.driver.OpenDevice(s.opts.DeviceIndex)
	if device == 0 {
		s.logger.Error("could not open device", "index", s.opts.DeviceIndex)
		s.failLocked()
		return ErrOpenDevice
	}
	s.device = device

	width, height, err := s.readDimensionsLocked()
	if err != nil {
		s.failLocked()
		return err
	}

	db := s.driver.OpenTemplateDB()
	if db == 0 {
		s.logger.Error("could not open template database")
		s.failLocked()
		return ErrTemplateDB
	}
	s.db = db
	s.width = width
	s.height = height

	if code := s.driver.SetParameter(device, ParamLED, EncodeParam(int(s.opts.DefaultLED))); code.Failed() {
		s.logger.Warn("could not set default LED colour", "color", s.opts.DefaultLED.String(), "code", int(code))
	}

	s.state = StateReady
	s.logger.Info("sensor ready",
		"device_handle", uint64(device),
		"width", width,
		"height", height,
	)
	return nil
}

// readDimensionsLocked reads and validates the image width and height.
func (s *Session) readDimensionsLocked() (int, int, error) {
	widthRaw, code := s.driver.GetParameter(s.device, ParamImageWidth)
	if code.Failed() {
		s.logger.Error("could not read image width", "code", int(code))
		return 0, 0, ErrDimensions
	}
	heightRaw, code := s.driver.GetParameter(s.device, ParamImageHeight)
	if code.Failed() {
		s.logger.Error("could not read image height", "code", int(code))
		return 0, 0, ErrDimensions
	}

	width, height := DecodeParam(widthRaw), DecodeParam(heightRaw)
	if width <= 0 || height <= 0 {
		s.logger.Error("device reported invalid dimensions", "width", width, "height", height)
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrDimensions, width, height)
	}
	return width, height, nil
}

// releaseStaleLocked closes whatever a previous failed or abandoned session
// left open. Panics and errors are swallowed; there may be nothing to close.
// Reports whether anything was released.
func (s *Session) releaseStaleLocked() bool {
	released := false
	if s.db != 0 {
		s.safeCall("free stale template database", func() { s.driver.FreeTemplateDB(s.db) })
		released = true
	}
	if s.device != 0 {
		s.safeCall("close stale device", func() { s.driver.CloseDevice(s.device) })
		released = true
	}
	if s.sdkUp {
		s.safeCall("terminate stale SDK", s.driver.Terminate)
		released = true
	}
	s.device, s.db, s.sdkUp = 0, 0, false
	return released
}

// failLocked releases partial state and marks the session Failed.
func (s *Session) failLocked() {
	s.releaseStaleLocked()
	s.width, s.height = 0, 0
	s.state = StateFailed
}

// Shutdown turns the LED off and releases the template database, the device
// and the SDK. It is a no-op unless the session is Ready, and never returns
// or propagates driver errors; they are logged.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownLocked()
}

func (s *Session) shutdownLocked() {
	if s.state != StateReady {
		return
	}

	device, db := s.device, s.db
	s.safeCall("turn LED off", func() {
		if code := s.driver.SetParameter(device, ParamLED, EncodeParam(int(LEDOff))); code.Failed() {
			s.logger.Warn("could not turn LED off", "code", int(code))
		}
	})
	s.safeCall("free template database", func() { s.driver.FreeTemplateDB(db) })
	s.safeCall("close device", func() { s.driver.CloseDevice(device) })
	s.safeCall("terminate SDK", s.driver.Terminate)

	s.device, s.db, s.sdkUp = 0, 0, false
	s.width, s.height = 0, 0
	s.state = StateUninitialized
	s.logger.Info("sensor shut down")
}

// SetLED switches the indicator LED to color.
//
// The sensor needs the LED written "off" first and a short settling pause
// before the colour write. If the colour write fails the session is
// reinitialised once and the colour write retried exactly once more.
//
// Note: an uninitialised session is initialised first, so SetLED can also
// bring the sensor up.
func (s *Session) SetLED(ctx context.Context, color LEDColor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		if err := s.initializeLocked(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrLED, err)
		}
	}

	value := EncodeParam(int(color))

	if code := s.driver.SetParameter(s.device, ParamLED, EncodeParam(int(LEDOff))); code.Failed() {
		s.logger.Debug("LED off write failed", "code", int(code))
	}
	if err := sleepCtx(ctx, s.opts.LEDSettle); err != nil {
		return err
	}

	code := s.driver.SetParameter(s.device, ParamLED, value)
	if !code.Failed() {
		return nil
	}

	s.logger.Warn("LED write failed, reinitialising sensor", "color", color.String(), "code", int(code))
	s.shutdownLocked()
	if err := sleepCtx(ctx, s.opts.LEDRetryDelay); err != nil {
		return err
	}
	if err := s.initializeLocked(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLED, err)
	}

	if code := s.driver.SetParameter(s.device, ParamLED, value); code.Failed() {
		s.logger.Error("LED write failed after reinitialise", "color", color.String(), "code", int(code))
		return ErrLED
	}
	return nil
}

// Beep sounds the buzzer for the configured duration.
func (s *Session) Beep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrNotReady
	}

	if code := s.driver.SetParameter(s.device, ParamBeep, EncodeParam(1)); code.Failed() {
		return fmt.Errorf("%w: beep on", ErrParameter)
	}
	if err := sleepCtx(ctx, s.opts.BeepDuration); err != nil {
		return err
	}
	if code := s.driver.SetParameter(s.device, ParamBeep, EncodeParam(0)); code.Failed() {
		return fmt.Errorf("%w: beep off", ErrParameter)
	}
	return nil
}

// ConfigureAcquisition writes the acquisition speed and sensitivity and turns
// the LED green. Rejected writes are logged as warnings; only a session that
// is not Ready is an error.
func (s *Session) ConfigureAcquisition(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrNotReady
	}

	writes := []struct {
		name  string
		id    ParamID
		value int
	}{
		{"speed", ParamSpeed, s.opts.Speed},
		{"sensitivity", ParamSensitivity, s.opts.Sensitivity},
		{"led", ParamLED, int(LEDGreen)},
	}
	for _, w := range writes {
		if code := s.driver.SetParameter(s.device, w.id, EncodeParam(w.value)); code.Failed() {
			s.logger.Warn("parameter write rejected", "parameter", w.name, "value", w.value, "code", int(code))
		}
	}
	return nil
}

// AcquireFrame fills buf with one frame. buf must be exactly width*height bytes.
func (s *Session) AcquireFrame(buf []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady {
		return ErrNotReady
	}
	if len(buf) != s.width*s.height {
		return fmt.Errorf("%w: have %d, want %d", ErrBufferSize, len(buf), s.width*s.height)
	}

	if code := s.driver.AcquireFrame(s.device, buf); code.Failed() {
		s.logger.Debug("acquisition returned failure", "code", int(code))
		return ErrAcquire
	}
	return nil
}

// Match returns the driver's 0-100 similarity score for two templates.
func (s *Session) Match(a, b []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady {
		return 0, ErrNotReady
	}
	return s.driver.MatchTemplates(s.db, a, b), nil
}

// Verify reports whether two templates belong to the same finger: their
// match score must reach the configured threshold. Empty templates never
// verify.
func (s *Session) Verify(a, b []byte) (bool, error) {
	if len(a) == 0 || len(b) == 0 {
		return false, nil
	}
	score, err := s.Match(a, b)
	if err != nil {
		return false, err
	}
	return score >= s.opts.MatchThreshold, nil
}

// Identify searches the template store for the given template.
// The result is Matched iff the driver returned a non-negative candidate id.
func (s *Session) Identify(template []byte) (Identification, error) {
	if len(template) == 0 {
		return Identification{ID: -1}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady {
		return Identification{ID: -1}, ErrNotReady
	}

	id, score := s.driver.IdentifyTemplate(s.db, template)
	return Identification{
		Matched: id >= 0,
		ID:      id,
		Score:   score,
	}, nil
}

// Enroll adds a template to the sensor-local store under id.
func (s *Session) Enroll(id int, template []byte) error {
	if len(template) == 0 {
		return fmt.Errorf("%w: empty template", ErrEnroll)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady {
		return ErrNotReady
	}
	if code := s.driver.AddTemplate(s.db, id, template); code.Failed() {
		return ErrEnroll
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// DeviceHandle returns the open device handle, or 0.
func (s *Session) DeviceHandle() Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

// TemplateDBHandle returns the open template database handle, or 0.
func (s *Session) TemplateDBHandle() Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Dimensions returns the frame width and height. Both are 0 unless Ready.
func (s *Session) Dimensions() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		State:            s.state,
		StateName:        s.state.String(),
		DeviceHandle:     s.device,
		TemplateDBHandle: s.db,
		Width:            s.width,
		Height:           s.height,
	}
}

// safeCall runs a best-effort driver call, logging instead of propagating a panic.
func (s *Session) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("driver call panicked", "call", what, "panic", r)
		}
	}()
	fn()
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
