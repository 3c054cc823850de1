// Package relay bridges capture events to the station's outer systems.
//
// Each relay is a fanout.Listener, so it runs on its own delivery goroutine
// and a slow broker or disk never stalls the capture worker. Relays that
// also care about sensor health implement capture.Observer; combine them
// with Observers.
//
//   - MQTT publishes verdict JSON and recovery events to the station topics.
//   - Metrics writes verdicts, failures and recoveries to InfluxDB.
//   - Store appends verdicts and recoveries to the SQLite capture log.
//
// Images are never relayed over MQTT; frames can be far larger than the
// broker payload cap.
package relay
