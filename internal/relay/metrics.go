package relay

import (
	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/fanout"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
)

// MetricsWriter is the part of the InfluxDB client the relay uses.
// *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteQuality(stationID string, s influxdb.QualitySample)
	WriteAcquireFailure(stationID string, consecutive int)
	WriteRecovery(stationID string, r influxdb.RecoverySample)
}

// Metrics writes verdicts, acquisition failures and recoveries to InfluxDB.
// Writes are batched by the client and never block.
type Metrics struct {
	frameTracker

	writer    MetricsWriter
	stationID string
}

var (
	_ fanout.Listener  = (*Metrics)(nil)
	_ capture.Observer = (*Metrics)(nil)
)

// NewMetrics creates a metrics relay.
func NewMetrics(writer MetricsWriter, stationID string) *Metrics {
	return &Metrics{writer: writer, stationID: stationID}
}

// OnQuality implements fanout.Listener.
func (m *Metrics) OnQuality(v quality.Verdict, _ string) {
	m.writer.WriteQuality(m.stationID, influxdb.QualitySample{
		Seq:         m.last.Seq,
		Score:       v.Score,
		Band:        v.Band().String(),
		DarkPct:     v.DarkPct,
		ContrastPct: v.ContrastPct,
		Width:       m.last.Width,
		Height:      m.last.Height,
		At:          m.last.CapturedAt,
	})
}

// ObserveFailure implements capture.Observer.
func (m *Metrics) ObserveFailure(consecutive int, _ error) {
	m.writer.WriteAcquireFailure(m.stationID, consecutive)
}

// ObserveRecovery implements capture.Observer.
func (m *Metrics) ObserveRecovery(r capture.Recovery) {
	m.writer.WriteRecovery(m.stationID, influxdb.RecoverySample{
		Failures:  r.Failures,
		Duration:  r.Duration,
		Succeeded: r.Succeeded(),
		At:        r.At,
	})
}
