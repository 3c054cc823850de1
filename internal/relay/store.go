package relay

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/capturelog"
	"github.com/nerrad567/gray-logic-biometric/internal/fanout"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
)

// storeTimeout bounds each capture log write.
const storeTimeout = 2 * time.Second

// VerdictRecorder is the part of the capture log the relay writes to.
type VerdictRecorder interface {
	RecordVerdict(ctx context.Context, v capturelog.Verdict) error
	RecordRecovery(ctx context.Context, r capturelog.Recovery) error
}

// Store appends verdicts and recoveries to the SQLite capture log.
type Store struct {
	frameTracker

	repo      VerdictRecorder
	stationID string
	logger    Logger

	// pending tracks recovery writes still in flight.
	pending sync.WaitGroup
}

var (
	_ fanout.Listener  = (*Store)(nil)
	_ capture.Observer = (*Store)(nil)
)

// NewStore creates a store relay. logger may be nil.
func NewStore(repo VerdictRecorder, stationID string, logger Logger) *Store {
	return &Store{repo: repo, stationID: stationID, logger: orNoop(logger)}
}

// OnQuality implements fanout.Listener.
func (s *Store) OnQuality(v quality.Verdict, label string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := s.repo.RecordVerdict(ctx, capturelog.Verdict{
		StationID:   s.stationID,
		Seq:         s.last.Seq,
		Score:       v.Score,
		Band:        v.Band().String(),
		Label:       label,
		DarkPct:     v.DarkPct,
		ContrastPct: v.ContrastPct,
		Width:       s.last.Width,
		Height:      s.last.Height,
		CapturedAt:  s.last.CapturedAt,
	})
	if err != nil {
		s.logger.Warn("failed to record verdict", "seq", s.last.Seq, "error", err)
	}
}

// ObserveFailure implements capture.Observer. Individual failures are not
// stored.
func (s *Store) ObserveFailure(int, error) {}

// ObserveRecovery implements capture.Observer. The write happens off the
// capture worker; Wait blocks until it has finished.
func (s *Store) ObserveRecovery(r capture.Recovery) {
	rec := capturelog.Recovery{
		StationID:  s.stationID,
		OccurredAt: r.At,
		Failures:   r.Failures,
		DurationMS: r.Duration.Milliseconds(),
		Succeeded:  r.Succeeded(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}

	s.pending.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.repo.RecordRecovery(ctx, rec); err != nil {
			s.logger.Warn("failed to record recovery", "failures", rec.Failures, "error", err)
		}
	})
}

// Wait blocks until every recovery write started so far has finished. Call
// it after the capture loop has stopped and before the database closes.
func (s *Store) Wait() {
	s.pending.Wait()
}
