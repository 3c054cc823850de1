package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementQuality        = "capture_quality"
	MeasurementAcquireFailure = "acquire_failure"
	MeasurementRecovery       = "sensor_recovery"
)

// QualitySample is one scored frame.
type QualitySample struct {
	Seq         uint64
	Score       int
	Band        string
	DarkPct     int
	ContrastPct int
	Width       int
	Height      int
	At          time.Time
}

// RecoverySample is one forced reinitialise of the sensor.
type RecoverySample struct {
	Failures  int
	Duration  time.Duration
	Succeeded bool
	At        time.Time
}

// WriteQuality records a scored frame.
func (c *Client) WriteQuality(stationID string, s QualitySample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(QualityPoint(stationID, s))
}

// WriteAcquireFailure records one failed acquisition and the current
// consecutive failure count.
func (c *Client) WriteAcquireFailure(stationID string, consecutive int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(AcquireFailurePoint(stationID, consecutive, time.Now()))
}

// WriteRecovery records a sensor reinitialise attempt.
func (c *Client) WriteRecovery(stationID string, r RecoverySample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(RecoveryPoint(stationID, r))
}

// WritePoint writes an arbitrary point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes an arbitrary point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// QualityPoint builds the point written by WriteQuality. A zero At means now.
func QualityPoint(stationID string, s QualitySample) *write.Point {
	return write.NewPoint(
		MeasurementQuality,
		map[string]string{
			"station_id": stationID,
			"band":       s.Band,
		},
		map[string]any{
			"seq":          int64(s.Seq), // #nosec G115 -- frame counter stays far below MaxInt64
			"score":        int64(s.Score),
			"dark_pct":     int64(s.DarkPct),
			"contrast_pct": int64(s.ContrastPct),
			"width":        int64(s.Width),
			"height":       int64(s.Height),
		},
		orNow(s.At),
	)
}

// AcquireFailurePoint builds the point written by WriteAcquireFailure.
func AcquireFailurePoint(stationID string, consecutive int, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAcquireFailure,
		map[string]string{"station_id": stationID},
		map[string]any{"consecutive": int64(consecutive)},
		orNow(at),
	)
}

// RecoveryPoint builds the point written by WriteRecovery.
func RecoveryPoint(stationID string, r RecoverySample) *write.Point {
	return write.NewPoint(
		MeasurementRecovery,
		map[string]string{"station_id": stationID},
		map[string]any{
			"failures":    int64(r.Failures),
			"duration_ms": r.Duration.Milliseconds(),
			"succeeded":   r.Succeeded,
		},
		orNow(r.At),
	)
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
