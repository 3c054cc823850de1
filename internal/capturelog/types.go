package capturelog

import (
	"context"
	"time"
)

// Verdict is one published quality verdict.
type Verdict struct {
	ID          int64     `json:"id"`
	StationID   string    `json:"station_id"`
	Seq         uint64    `json:"seq"`
	Score       int       `json:"score"`
	Band        string    `json:"band"`
	Label       string    `json:"label"`
	DarkPct     int       `json:"dark_pct"`
	ContrastPct int       `json:"contrast_pct"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Recovery is one forced reinitialise of the sensor.
type Recovery struct {
	ID         int64     `json:"id"`
	StationID  string    `json:"station_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Failures   int       `json:"failures"`
	DurationMS int64     `json:"duration_ms"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
}

// SavedImage is a PNG snapshot written to disk.
type SavedImage struct {
	ID        int64     `json:"id"`
	CaptureID string    `json:"capture_id"`
	StationID string    `json:"station_id"`
	Path      string    `json:"path"`
	Seq       uint64    `json:"seq"`
	Score     int       `json:"score"`
	Label     string    `json:"label"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SavedAt   time.Time `json:"saved_at"`
}

// Repository is the capture log store.
type Repository interface {
	RecordVerdict(ctx context.Context, v Verdict) error
	RecordRecovery(ctx context.Context, r Recovery) error
	RecordSavedImage(ctx context.Context, img SavedImage) error
	ListVerdicts(ctx context.Context, limit int) ([]Verdict, error)
	ListRecoveries(ctx context.Context, limit int) ([]Recovery, error)
	ListSavedImages(ctx context.Context, limit int) ([]SavedImage, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
