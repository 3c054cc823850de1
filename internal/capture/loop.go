package capture

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/quality"
)

// Default loop timings.
const (
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultFailureThreshold = 10
	DefaultRecoveryDelay    = time.Second
)

// Session is the part of the sensor session the loop drives.
// *sensor.Session satisfies it.
type Session interface {
	Initialize(ctx context.Context) error
	Shutdown()
	ConfigureAcquisition(ctx context.Context) error
	AcquireFrame(buf []byte) error
	Dimensions() (width, height int)
}

// Logger defines the logging interface used by the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Loop.
type Options struct {
	// PollInterval is the pause after every cycle. Defaults to 100ms.
	PollInterval time.Duration

	// FailureThreshold is the number of consecutive acquisition failures
	// that forces a reinitialise. Defaults to 10.
	FailureThreshold int

	// RecoveryDelay is the pause between shutdown and reinitialise.
	// Zero means no pause; use DefaultRecoveryDelay for hardware.
	RecoveryDelay time.Duration

	// Observer, when set, sees failures and recoveries.
	Observer Observer

	// Logger receives loop logs. Optional.
	Logger Logger
}

// Stats is a snapshot of loop counters. Counters accumulate across restarts.
type Stats struct {
	Running             bool      `json:"running"`
	StartedAt           time.Time `json:"started_at,omitzero"`
	Cycles              uint64    `json:"cycles"`
	FramesAbsent        uint64    `json:"frames_absent"`
	FramesPublished     uint64    `json:"frames_published"`
	AcquireFailures     uint64    `json:"acquire_failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Recoveries          uint64    `json:"recoveries"`
	FailedRecoveries    uint64    `json:"failed_recoveries"`
	ObserverPanics      uint64    `json:"observer_panics"`
}

// Loop is the capture worker supervisor. The zero value is not usable;
// create one with New.
type Loop struct {
	session  Session
	scorer   *quality.Scorer
	pub      Publisher
	observer Observer
	opts     Options
	logger   Logger

	mu       sync.Mutex
	running  bool
	starting bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   Stats
	last    *Event
	lastErr error
	seq     uint64
}

// New creates a loop over the given session, scorer and publisher.
func New(session Session, scorer *quality.Scorer, pub Publisher, opts Options) *Loop {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Loop{
		session:  session,
		scorer:   scorer,
		pub:      pub,
		observer: opts.Observer,
		opts:     opts,
		logger:   logger,
	}
}

// Start makes sure the session is ready, applies the acquisition settings and
// launches the worker. It returns once the worker is running.
//
// The worker lives until Stop is called, ctx is cancelled, or a cycle faults.
// Pass a long-lived context, not a request-scoped one.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.starting {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.starting = true
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()

	// Initialise can sleep for the startup delay, so it runs unlocked.
	width, height, err := l.prepare(loopCtx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.starting = false

	if err != nil {
		cancel()
		l.cancel = nil
		close(done)
		return err
	}

	l.running = true
	l.lastErr = nil
	l.stats.Running = true
	l.stats.StartedAt = time.Now()
	l.stats.ConsecutiveFailures = 0

	st := &cycleState{
		width:  width,
		height: height,
		buf:    make([]byte, width*height),
	}
	go l.run(loopCtx, st, done)

	l.logger.Info("capture started", "width", width, "height", height)
	return nil
}

// prepare initialises the session and applies the acquisition settings.
func (l *Loop) prepare(ctx context.Context) (width, height int, err error) {
	if err := l.session.Initialize(ctx); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	if err := l.session.ConfigureAcquisition(ctx); err != nil {
		l.logger.Warn("could not configure acquisition", "error", err)
	}

	width, height = l.session.Dimensions()
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: no frame dimensions", ErrSessionUnavailable)
	}
	return width, height, nil
}

// Stop asks the worker to exit after its current cycle. It does not wait;
// use Wait for that. A Stop during Start cancels the initialise, or makes the
// new worker exit at once. Stop on an idle loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel == nil {
		return
	}
	l.cancel()
	l.logger.Info("capture stop requested")
}

// Wait blocks until the current worker has exited or ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a worker is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// LastEvent returns the most recently published event.
func (l *Loop) LastEvent() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return Event{}, false
	}
	return *l.last, true
}

// Err returns the fault that ended the last worker, or nil.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// cycleState is owned by the worker goroutine.
type cycleState struct {
	width, height int
	buf           []byte
	failures      int
}

func (l *Loop) run(ctx context.Context, st *cycleState, done chan struct{}) {
	defer close(done)
	defer l.markStopped()

	for ctx.Err() == nil {
		if err := l.cycle(ctx, st); err != nil {
			l.mu.Lock()
			l.lastErr = err
			l.mu.Unlock()
			return
		}
		if err := sleepCtx(ctx, l.opts.PollInterval); err != nil {
			return
		}
	}
}

func (l *Loop) markStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.running = false
	l.cancel = nil
	l.stats.Running = false
	l.logger.Info("capture stopped", "error", l.lastErr)
}

// cycle runs one acquire/score/publish pass. Only a panic is returned as an
// error; driver failures are absorbed by the recovery policy.
func (l *Loop) cycle(ctx context.Context, st *cycleState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCycleFault, r)
			l.logger.Error("capture cycle panicked",
				"panic", r,
				"failures", st.failures,
				"stack", string(debug.Stack()),
			)
		}
	}()

	l.mu.Lock()
	l.stats.Cycles++
	l.mu.Unlock()

	// Dimensions can change across a reinitialise.
	if w, h := l.session.Dimensions(); w > 0 && h > 0 && (w != st.width || h != st.height) {
		l.logger.Info("frame dimensions changed", "width", w, "height", h)
		st.width, st.height = w, h
		st.buf = make([]byte, w*h)
	}

	if acqErr := l.session.AcquireFrame(st.buf); acqErr != nil {
		l.handleFailure(ctx, st, acqErr)
		return nil
	}

	st.failures = 0
	l.mu.Lock()
	l.stats.ConsecutiveFailures = 0
	l.mu.Unlock()

	verdict, err := l.scorer.Evaluate(st.buf, st.width, st.height)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCycleFault, err)
	}
	if !verdict.Present {
		l.mu.Lock()
		l.stats.FramesAbsent++
		l.mu.Unlock()
		return nil
	}

	pixels := make([]byte, len(st.buf))
	copy(pixels, st.buf)

	l.mu.Lock()
	l.seq++
	ev := Event{
		Frame: Frame{
			Seq:        l.seq,
			Width:      st.width,
			Height:     st.height,
			Pixels:     pixels,
			CapturedAt: time.Now(),
		},
		Verdict: verdict,
		Label:   verdict.Label(),
	}
	l.last = &ev
	l.stats.FramesPublished++
	l.mu.Unlock()

	l.logger.Debug("frame published", "seq", ev.Frame.Seq, "score", verdict.Score, "band", verdict.Band().String())
	if l.pub != nil {
		l.pub.Publish(ev)
	}
	return nil
}

func (l *Loop) handleFailure(ctx context.Context, st *cycleState, acqErr error) {
	st.failures++

	l.mu.Lock()
	l.stats.AcquireFailures++
	l.stats.ConsecutiveFailures = st.failures
	l.mu.Unlock()

	l.logger.Debug("acquisition failed", "consecutive", st.failures, "error", acqErr)
	l.notify("failure", func(o Observer) { o.ObserveFailure(st.failures, acqErr) })

	if st.failures >= l.opts.FailureThreshold {
		l.recoverSession(ctx, st)
	}
}

// recoverSession forces a shutdown and reinitialise. On success the failure
// counter is reset; on failure it is left alone so the next failure retries.
func (l *Loop) recoverSession(ctx context.Context, st *cycleState) {
	l.logger.Warn("too many consecutive acquisition failures, reinitialising sensor",
		"failures", st.failures,
	)

	started := time.Now()
	l.session.Shutdown()

	if err := sleepCtx(ctx, l.opts.RecoveryDelay); err != nil {
		return
	}

	err := l.session.Initialize(ctx)
	rec := Recovery{
		At:       started,
		Failures: st.failures,
		Duration: time.Since(started),
		Err:      err,
	}

	if err != nil {
		l.logger.Error("sensor reinitialise failed", "failures", st.failures, "error", err)
		l.mu.Lock()
		l.stats.FailedRecoveries++
		l.mu.Unlock()
	} else {
		if cfgErr := l.session.ConfigureAcquisition(ctx); cfgErr != nil {
			l.logger.Warn("could not configure acquisition after reinitialise", "error", cfgErr)
		}
		st.failures = 0
		l.mu.Lock()
		l.stats.Recoveries++
		l.stats.ConsecutiveFailures = 0
		l.mu.Unlock()
		l.logger.Info("sensor reinitialised", "duration", rec.Duration)
	}

	l.notify("recovery", func(o Observer) { o.ObserveRecovery(rec) })
}

// notify hands a callback to the observer on the worker. An observer panic is
// logged and counted; the cycle carries on.
func (l *Loop) notify(kind string, fn func(Observer)) {
	if l.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.mu.Lock()
			l.stats.ObserverPanics++
			l.mu.Unlock()
			l.logger.Error("capture observer panicked",
				"callback", kind,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(l.observer)
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
