package capturelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SQLiteRepository implements Repository on the station database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordVerdict appends a verdict. A zero CapturedAt is stamped now.
func (r *SQLiteRepository) RecordVerdict(ctx context.Context, v Verdict) error {
	if v.StationID == "" {
		return fmt.Errorf("%w: station id is required", ErrInvalidRecord)
	}
	if v.Band == "" {
		return fmt.Errorf("%w: band is required", ErrInvalidRecord)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quality_events
		 (station_id, seq, score, band, label, dark_pct, contrast_pct, width, height, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.StationID,
		int64(v.Seq), // #nosec G115 -- frame counter stays far below MaxInt64
		v.Score,
		v.Band,
		v.Label,
		v.DarkPct,
		v.ContrastPct,
		v.Width,
		v.Height,
		formatTimestamp(v.CapturedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting verdict: %w", err)
	}
	return nil
}

// RecordRecovery appends a recovery event. A zero OccurredAt is stamped now.
func (r *SQLiteRepository) RecordRecovery(ctx context.Context, rec Recovery) error {
	if rec.StationID == "" {
		return fmt.Errorf("%w: station id is required", ErrInvalidRecord)
	}

	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}
	succeeded := 0
	if rec.Succeeded {
		succeeded = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recovery_events
		 (station_id, occurred_at, failures, duration_ms, succeeded, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.StationID,
		formatTimestamp(rec.OccurredAt),
		rec.Failures,
		rec.DurationMS,
		succeeded,
		errText,
	)
	if err != nil {
		return fmt.Errorf("inserting recovery: %w", err)
	}
	return nil
}

// RecordSavedImage logs a snapshot written to disk.
func (r *SQLiteRepository) RecordSavedImage(ctx context.Context, img SavedImage) error {
	if img.StationID == "" || img.CaptureID == "" || img.Path == "" {
		return fmt.Errorf("%w: station id, capture id and path are required", ErrInvalidRecord)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saved_images
		 (capture_id, station_id, path, seq, score, label, width, height, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.CaptureID,
		img.StationID,
		img.Path,
		int64(img.Seq), // #nosec G115 -- frame counter stays far below MaxInt64
		img.Score,
		img.Label,
		img.Width,
		img.Height,
		formatTimestamp(img.SavedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting saved image: %w", err)
	}
	return nil
}

// ListVerdicts returns the newest verdicts first.
func (r *SQLiteRepository) ListVerdicts(ctx context.Context, limit int) ([]Verdict, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, station_id, seq, score, band, label, dark_pct, contrast_pct, width, height, captured_at
		 FROM quality_events
		 ORDER BY id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying verdicts: %w", err)
	}
	defer rows.Close()

	var out []Verdict
	for rows.Next() {
		var v Verdict
		var seq int64
		var capturedAt string
		if err := rows.Scan(&v.ID, &v.StationID, &seq, &v.Score, &v.Band, &v.Label,
			&v.DarkPct, &v.ContrastPct, &v.Width, &v.Height, &capturedAt); err != nil {
			return nil, fmt.Errorf("scanning verdict: %w", err)
		}
		v.Seq = uint64(seq) // #nosec G115 -- written from a uint64 counter
		if v.CapturedAt, err = parseTimestamp(capturedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating verdicts: %w", err)
	}
	return out, nil
}

// ListRecoveries returns the newest recovery events first.
func (r *SQLiteRepository) ListRecoveries(ctx context.Context, limit int) ([]Recovery, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, station_id, occurred_at, failures, duration_ms, succeeded, error
		 FROM recovery_events
		 ORDER BY id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying recoveries: %w", err)
	}
	defer rows.Close()

	var out []Recovery
	for rows.Next() {
		var rec Recovery
		var occurredAt string
		var succeeded int
		var errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.StationID, &occurredAt, &rec.Failures,
			&rec.DurationMS, &succeeded, &errText); err != nil {
			return nil, fmt.Errorf("scanning recovery: %w", err)
		}
		rec.Succeeded = succeeded != 0
		rec.Error = errText.String
		if rec.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recoveries: %w", err)
	}
	return out, nil
}

// ListSavedImages returns the newest snapshots first.
func (r *SQLiteRepository) ListSavedImages(ctx context.Context, limit int) ([]SavedImage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, capture_id, station_id, path, seq, score, label, width, height, saved_at
		 FROM saved_images
		 ORDER BY id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying saved images: %w", err)
	}
	defer rows.Close()

	var out []SavedImage
	for rows.Next() {
		var img SavedImage
		var seq int64
		var savedAt string
		if err := rows.Scan(&img.ID, &img.CaptureID, &img.StationID, &img.Path, &seq,
			&img.Score, &img.Label, &img.Width, &img.Height, &savedAt); err != nil {
			return nil, fmt.Errorf("scanning saved image: %w", err)
		}
		img.Seq = uint64(seq) // #nosec G115 -- written from a uint64 counter
		if img.SavedAt, err = parseTimestamp(savedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating saved images: %w", err)
	}
	return out, nil
}

// Prune deletes verdict and recovery rows older than olderThan. Saved image
// rows are kept while their files exist.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := formatTimestamp(time.Now().Add(-olderThan))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting prune: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	var total int64
	for _, stmt := range []string{
		"DELETE FROM quality_events WHERE captured_at < ?",
		"DELETE FROM recovery_events WHERE occurred_at < ?",
	} {
		res, err := tx.ExecContext(ctx, stmt, cutoff)
		if err != nil {
			return 0, fmt.Errorf("pruning capture log: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// Timestamps are stored as fixed-width UTC strings so they sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fbErr := time.Parse(time.RFC3339Nano, value); fbErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}
