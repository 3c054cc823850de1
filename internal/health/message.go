package health

import (
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/capture"
)

// Status is the operational status of a station.
type Status string

// Station statuses.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusStarting  Status = "starting"
	StatusStopping  Status = "stopping"
)

// Snapshot is the state a health message is built from.
type Snapshot struct {
	SensorState string
	Width       int
	Height      int
	Capture     capture.Stats

	// CaptureErr is the fault that ended the last capture worker, if any.
	CaptureErr error
}

// SensorHealth is the sensor part of a health message.
type SensorHealth struct {
	State  string `json:"state"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CaptureHealth is the capture loop part of a health message.
type CaptureHealth struct {
	Running             bool   `json:"running"`
	FramesPublished     uint64 `json:"frames_published"`
	AcquireFailures     uint64 `json:"acquire_failures"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Recoveries          uint64 `json:"recoveries"`
	FailedRecoveries    uint64 `json:"failed_recoveries"`
	ObserverPanics      uint64 `json:"observer_panics,omitempty"`
	LastError           string `json:"last_error,omitempty"`
}

// Message is the retained health payload.
type Message struct {
	Station       string        `json:"station"`
	Timestamp     time.Time     `json:"timestamp"`
	Status        Status        `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Sensor        SensorHealth  `json:"sensor"`
	Capture       CaptureHealth `json:"capture"`
}

// NewMessage builds a health message from a snapshot.
func NewMessage(stationID, version string, status Status, snap Snapshot, startTime time.Time) Message {
	msg := Message{
		Station:       stationID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Sensor: SensorHealth{
			State:  snap.SensorState,
			Width:  snap.Width,
			Height: snap.Height,
		},
		Capture: CaptureHealth{
			Running:             snap.Capture.Running,
			FramesPublished:     snap.Capture.FramesPublished,
			AcquireFailures:     snap.Capture.AcquireFailures,
			ConsecutiveFailures: snap.Capture.ConsecutiveFailures,
			Recoveries:          snap.Capture.Recoveries,
			FailedRecoveries:    snap.Capture.FailedRecoveries,
			ObserverPanics:      snap.Capture.ObserverPanics,
		},
	}
	if snap.CaptureErr != nil {
		msg.Capture.LastError = snap.CaptureErr.Error()
	}
	return msg
}

// Evaluate derives a status and reason from a snapshot alone.
func Evaluate(snap Snapshot) (Status, string) {
	switch {
	case snap.SensorState == "failed":
		return StatusUnhealthy, "sensor failed"
	case snap.CaptureErr != nil:
		return StatusUnhealthy, "capture worker faulted"
	case snap.Capture.ConsecutiveFailures > 0:
		return StatusDegraded, "acquisition failing"
	default:
		return StatusHealthy, ""
	}
}
