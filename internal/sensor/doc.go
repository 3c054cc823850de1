// Package sensor owns the lifecycle of one USB fingerprint sensor.
//
// The native SDK is reached only through the Driver interface: init and
// terminate the SDK, open and close the device, read and write parameters,
// acquire one raw frame, and run template database operations. Nothing in
// this package knows how a driver talks to hardware.
//
// A Session wraps one Driver and tracks the device state machine:
//
//	Uninitialized ──Initialize──► Ready ──Shutdown──► Uninitialized
//	      │                         ▲
//	      └──hard failure──► Failed ┘ (Initialize again)
//
// Every operation that touches the device handle goes through the session's
// lock: Initialize, Shutdown, LED and parameter writes are exclusive; frame
// acquisition and template matching share a read lock so they may overlap
// each other but never a lifecycle change.
//
// Sessions are explicitly constructed and passed to their users. There is no
// package-level instance.
package sensor
