package relay

import (
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
)

// QualityMessage is the JSON shape of a published verdict.
type QualityMessage struct {
	StationID   string    `json:"station_id"`
	Seq         uint64    `json:"seq"`
	Score       int       `json:"score"`
	Band        string    `json:"band"`
	Label       string    `json:"label"`
	Suspect     bool      `json:"suspect"`
	DarkPct     int       `json:"dark_pct"`
	ContrastPct int       `json:"contrast_pct"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CapturedAt  time.Time `json:"captured_at"`
}

// NewQualityMessage builds the message for a verdict and the frame it scored.
func NewQualityMessage(stationID string, f capture.Frame, v quality.Verdict, label string) QualityMessage {
	return QualityMessage{
		StationID:   stationID,
		Seq:         f.Seq,
		Score:       v.Score,
		Band:        v.Band().String(),
		Label:       label,
		Suspect:     v.IsSuspect(),
		DarkPct:     v.DarkPct,
		ContrastPct: v.ContrastPct,
		Width:       f.Width,
		Height:      f.Height,
		CapturedAt:  f.CapturedAt,
	}
}

// RecoveryMessage is the JSON shape of a published recovery event.
type RecoveryMessage struct {
	StationID  string    `json:"station_id"`
	At         time.Time `json:"at"`
	Failures   int       `json:"failures"`
	DurationMS int64     `json:"duration_ms"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
}

// NewRecoveryMessage builds the message for a recovery attempt.
func NewRecoveryMessage(stationID string, r capture.Recovery) RecoveryMessage {
	msg := RecoveryMessage{
		StationID:  stationID,
		At:         r.At,
		Failures:   r.Failures,
		DurationMS: r.Duration.Milliseconds(),
		Succeeded:  r.Succeeded(),
	}
	if r.Err != nil {
		msg.Error = r.Err.Error()
	}
	return msg
}

// frameTracker remembers the frame passed to OnImage so OnQuality can tag
// its verdict. A listener's calls are serialised by the dispatcher.
type frameTracker struct {
	last capture.Frame
}

func (t *frameTracker) OnImage(f capture.Frame) {
	t.last = capture.Frame{
		Seq:        f.Seq,
		Width:      f.Width,
		Height:     f.Height,
		CapturedAt: f.CapturedAt,
	}
}
