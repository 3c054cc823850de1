// Package capture runs the polling loop that turns sensor frames into
// quality events.
//
// A Loop owns one background worker per Start. Each cycle it:
//
//  1. acquires a frame through the session into a pre-allocated buffer
//  2. on failure bumps the consecutive-failure counter, and once the counter
//     reaches the threshold shuts the session down, waits, and reinitialises
//  3. on success resets the counter, checks presence and, when a finger is
//     on the sensor, scores the frame and publishes a copy with its verdict
//  4. sleeps the poll interval
//
// Stop is cooperative: it is observed at the top of each cycle and during
// sleeps, never in the middle of a driver call. A panic inside a cycle is
// treated as a fault and ends the worker; the session is left as it was.
//
// Events are handed to a Publisher, which must not block. See package fanout.
package capture
