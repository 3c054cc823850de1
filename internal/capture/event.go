package capture

import (
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/quality"
)

// Frame is an immutable copy of one acquired image.
type Frame struct {
	// Seq increases by one for every published frame of a Loop.
	Seq        uint64    `json:"seq"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Pixels     []byte    `json:"-"`
	CapturedAt time.Time `json:"captured_at"`
}

// Event pairs a published frame with its verdict.
type Event struct {
	Frame   Frame           `json:"frame"`
	Verdict quality.Verdict `json:"verdict"`
	Label   string          `json:"label"`
}

// Publisher receives events from the capture worker.
// Publish must return promptly; the worker calls it inline.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Recovery describes one forced reinitialisation attempt.
type Recovery struct {
	At       time.Time     `json:"at"`
	Failures int           `json:"failures"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Succeeded reports whether the session came back.
func (r Recovery) Succeeded() bool {
	return r.Err == nil
}

// Observer is notified of acquisition failures and recoveries.
// Calls happen on the capture worker and must return promptly.
type Observer interface {
	ObserveFailure(consecutive int, err error)
	ObserveRecovery(r Recovery)
}
