// Package station is the command surface of one capture station.
//
// A Station ties the sensor session, the capture loop and the snapshot
// writer together behind the operations exposed over HTTP and MQTT:
// start and stop capture, LED and buzzer control, template verify, identify
// and enrol, and saving the last published frame as a PNG.
//
// The station does not own the notification fan-out. Listeners subscribe to
// the dispatcher the capture loop publishes into.
package station
