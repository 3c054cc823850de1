// Package fanout delivers capture events to registered listeners.
//
// Every listener gets its own bounded queue and goroutine, so a slow
// listener never holds up the capture worker or other listeners. When a
// queue is full the oldest pending event is dropped; events that are
// delivered always arrive in capture order.
//
// A panicking listener is recovered and logged. Other listeners, and later
// events for the same listener, are unaffected.
package fanout
