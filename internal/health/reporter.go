package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/mqtt"
)

// DefaultInterval is the publish interval when none is configured.
const DefaultInterval = 30 * time.Second

// healthQoS is the QoS for health messages.
const healthQoS = 1

// Publisher is the part of the MQTT client the reporter uses.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Source supplies the current snapshot.
type Source interface {
	HealthSnapshot() Snapshot
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Snapshot

// HealthSnapshot calls f.
func (f SourceFunc) HealthSnapshot() Snapshot { return f() }

// Logger defines the logging interface used by the reporter.
type Logger interface {
	Error(msg string, args ...any)
}

// Config holds reporter settings.
type Config struct {
	StationID string
	Version   string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher Publisher
	Source    Source
	Logger    Logger
}

// Reporter publishes periodic health messages.
type Reporter struct {
	stationID string
	version   string
	topic     string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	source    Source
	logger    Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReporter creates a reporter. Call Start to begin reporting.
func NewReporter(cfg Config) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		stationID: cfg.StationID,
		version:   cfg.Version,
		topic:     mqtt.Topics{}.Health(cfg.StationID),
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		source:    cfg.Source,
		logger:    cfg.Logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx ends or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" message.
// Safe to call more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		r.publish(StatusStopping, "station stopping")
	})
}

// PublishStarting publishes a "starting" message.
func (r *Reporter) PublishStarting() error {
	return r.publish(StatusStarting, "station starting")
}

// PublishNow publishes the current status immediately.
func (r *Reporter) PublishNow() error {
	status, reason := r.Current()
	return r.publish(status, reason)
}

// Current evaluates the station's status, including the MQTT connection.
func (r *Reporter) Current() (Status, string) {
	status, reason := Evaluate(r.snapshot())
	if status == StatusHealthy && (r.publisher == nil || !r.publisher.IsConnected()) {
		return StatusDegraded, "MQTT disconnected"
	}
	return status, reason
}

// Topic returns the health topic.
func (r *Reporter) Topic() string {
	return r.topic
}

func (r *Reporter) reportLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.PublishNow(); err != nil {
		r.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.PublishNow(); err != nil {
				r.logError("failed to publish health", err)
			}
		}
	}
}

func (r *Reporter) snapshot() Snapshot {
	if r.source == nil {
		return Snapshot{}
	}
	return r.source.HealthSnapshot()
}

func (r *Reporter) publish(status Status, reason string) error {
	if r.publisher == nil {
		return nil
	}

	msg := NewMessage(r.stationID, r.version, status, r.snapshot(), r.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding health message: %w", err)
	}
	return r.publisher.Publish(r.topic, payload, healthQoS, true)
}

func (r *Reporter) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "error", err)
	}
}
