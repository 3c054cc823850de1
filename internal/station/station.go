package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/capturelog"
	"github.com/nerrad567/gray-logic-biometric/internal/health"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
	"github.com/nerrad567/gray-logic-biometric/internal/relay"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
	"github.com/nerrad567/gray-logic-biometric/internal/snapshot"
)

// shutdownTimeout bounds the wait for the capture worker in Run.
const shutdownTimeout = 5 * time.Second

// Logger defines the logging interface used by the station.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SavedImageRecorder logs saved snapshots. capturelog.Repository satisfies it.
type SavedImageRecorder interface {
	RecordSavedImage(ctx context.Context, img capturelog.SavedImage) error
}

// Config holds the station's collaborators.
type Config struct {
	StationID string
	Session   *sensor.Session
	Loop      *capture.Loop

	// Snapshots, when nil, disables SaveLast.
	Snapshots *snapshot.Writer

	// CaptureLog, when set, records every saved snapshot.
	CaptureLog SavedImageRecorder

	// Audit, when set, records every operator command.
	Audit audit.Recorder

	Logger Logger
}

// Status is the station's externally visible state.
type Status struct {
	StationID    string                `json:"station_id"`
	Sensor       sensor.Info           `json:"sensor"`
	Capture      capture.Stats         `json:"capture"`
	CaptureError string                `json:"capture_error,omitempty"`
	LastVerdict  *relay.QualityMessage `json:"last_verdict,omitempty"`
}

// Station runs one sensor. All methods are safe for concurrent use.
type Station struct {
	id        string
	session   *sensor.Session
	loop      *capture.Loop
	snapshots *snapshot.Writer
	captures  SavedImageRecorder
	audit     audit.Recorder
	logger    Logger

	mu   sync.Mutex
	base context.Context
}

var _ health.Source = (*Station)(nil)

// New creates a station. The capture worker's lifetime is bound to the
// context passed to Run; before Run it is context.Background.
func New(cfg Config) *Station {
	var logger Logger = noopLogger{}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}
	return &Station{
		id:        cfg.StationID,
		session:   cfg.Session,
		loop:      cfg.Loop,
		snapshots: cfg.Snapshots,
		captures:  cfg.CaptureLog,
		audit:     cfg.Audit,
		logger:    logger,
		base:      context.Background(),
	}
}

// ID returns the station ID.
func (s *Station) ID() string {
	return s.id
}

// Run binds the station to ctx and blocks until it ends, then stops capture
// and shuts the sensor down.
func (s *Station) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	<-ctx.Done()

	s.loop.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.loop.Wait(shutdownCtx); err != nil {
		s.logger.Warn("capture worker did not stop in time", "error", err)
	}
	s.session.Shutdown()
	s.logger.Info("station stopped")
	return nil
}

// StartCapture initialises the sensor if needed and starts the capture
// worker. The request context is not used for the worker's lifetime.
func (s *Station) StartCapture() error {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	if err := s.loop.Start(base); err != nil {
		return err
	}
	s.logger.Info("capture started")
	return nil
}

// StopCapture stops the capture worker and waits for it to exit or ctx to
// end. Stopping an idle station is a no-op.
func (s *Station) StopCapture(ctx context.Context) error {
	s.loop.Stop()
	if err := s.loop.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for capture worker: %w", err)
	}
	return nil
}

// SetLED sets the sensor LED, initialising the sensor if needed.
func (s *Station) SetLED(ctx context.Context, color sensor.LEDColor) error {
	return s.session.SetLED(ctx, color)
}

// Beep sounds the buzzer once.
func (s *Station) Beep(ctx context.Context) error {
	return s.session.Beep(ctx)
}

// Verify reports whether two templates match.
func (s *Station) Verify(a, b []byte) (bool, error) {
	return s.session.Verify(a, b)
}

// Identify searches the sensor's template store.
func (s *Station) Identify(template []byte) (sensor.Identification, error) {
	return s.session.Identify(template)
}

// Enroll adds a template to the sensor's template store.
func (s *Station) Enroll(id int, template []byte) error {
	return s.session.Enroll(id, template)
}

// LastVerdict returns the verdict of the most recently published frame.
func (s *Station) LastVerdict() (quality.Verdict, string, bool) {
	ev, ok := s.loop.LastEvent()
	if !ok {
		return quality.Verdict{}, "", false
	}
	return ev.Verdict, ev.Label, true
}

// SaveLast writes the most recently published frame as a PNG and records it
// in the capture log.
func (s *Station) SaveLast(ctx context.Context) (capturelog.SavedImage, error) {
	if s.snapshots == nil {
		return capturelog.SavedImage{}, ErrSnapshotsDisabled
	}
	ev, ok := s.loop.LastEvent()
	if !ok {
		return capturelog.SavedImage{}, ErrNoFrame
	}

	path, err := s.snapshots.Save(ev.Frame)
	if err != nil {
		return capturelog.SavedImage{}, fmt.Errorf("saving snapshot: %w", err)
	}

	img := capturelog.SavedImage{
		CaptureID: uuid.NewString(),
		StationID: s.id,
		Path:      path,
		Seq:       ev.Frame.Seq,
		Score:     ev.Verdict.Score,
		Label:     ev.Label,
		Width:     ev.Frame.Width,
		Height:    ev.Frame.Height,
		SavedAt:   ev.Frame.CapturedAt,
	}
	if s.captures != nil {
		if err := s.captures.RecordSavedImage(ctx, img); err != nil {
			s.logger.Warn("snapshot saved but not logged", "path", path, "error", err)
		}
	}

	s.logger.Info("snapshot saved", "path", path, "seq", img.Seq, "score", img.Score)
	return img, nil
}

// Audit records the outcome of an operator command. Audit failures are
// logged and otherwise ignored.
func (s *Station) Audit(ctx context.Context, source, action string, details map[string]any, cmdErr error) {
	if s.audit == nil {
		return
	}
	entry := audit.NewEntry(s.id, source, action, details, cmdErr)
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("command not audited", "action", action, "source", source, "error", err)
	}
}

// Status returns the station's current state.
func (s *Station) Status() Status {
	st := Status{
		StationID: s.id,
		Sensor:    s.session.Info(),
		Capture:   s.loop.Stats(),
	}
	if err := s.loop.Err(); err != nil {
		st.CaptureError = err.Error()
	}
	if ev, ok := s.loop.LastEvent(); ok {
		msg := relay.NewQualityMessage(s.id, ev.Frame, ev.Verdict, ev.Label)
		st.LastVerdict = &msg
	}
	return st
}

// HealthSnapshot implements health.Source.
func (s *Station) HealthSnapshot() health.Snapshot {
	info := s.session.Info()
	return health.Snapshot{
		SensorState: info.StateName,
		Width:       info.Width,
		Height:      info.Height,
		Capture:     s.loop.Stats(),
		CaptureErr:  s.loop.Err(),
	}
}
