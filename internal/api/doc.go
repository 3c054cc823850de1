// Package api implements the HTTP REST API and WebSocket server for a
// capture station.
//
// This package provides:
//   - REST endpoints for sensor status, capture control, LED and buzzer
//   - Template verify, identify and enrol endpoints
//   - Capture log history (saved images, verdicts, recoveries)
//   - WebSocket hub streaming image and quality events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server sits between operator UIs and the station. Commands go straight
// to the station; capture events reach the WebSocket hub through the fan-out
// dispatcher, where the hub is one listener among the MQTT, metrics and
// store relays.
//
// # Graceful Degradation
//
// The capture log is optional. Without it the history endpoints answer 503
// and everything else keeps working.
package api
