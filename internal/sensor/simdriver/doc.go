// Package simdriver is an in-process sensor.Driver for development and tests
// without hardware.
//
// Frames are synthetic: a ridge pattern inside an oval when a finger is on
// the glass, an almost white field otherwise. Presence is either set by hand
// with SetFinger or cycled automatically with Options.PresentFrames and
// Options.AbsentFrames. Failures can be injected per call path.
//
// Templates are plain byte strings. Matching scores the share of equal bytes,
// so identical templates score 100.
package simdriver
