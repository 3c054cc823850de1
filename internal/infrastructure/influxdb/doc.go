// Package influxdb records capture-station metrics in InfluxDB.
//
// It wraps the influxdb-client-go v2 non-blocking write API. Every scored
// frame, acquisition failure and sensor recovery becomes one point tagged
// with the station ID, so a fleet of stations can share a bucket.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WriteQuality("front-desk", influxdb.QualitySample{Score: 82, Band: "good"})
//
// # Error Handling
//
// Writes are batched and never block the caller. Batch failures arrive on
// the SetOnError callback wrapped in ErrWriteFailed. Connection and health
// check errors are returned directly.
package influxdb
