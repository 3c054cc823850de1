package fanout

import (
	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
)

// Listener receives image and quality notifications.
// For each event OnImage is called before OnQuality.
type Listener interface {
	OnImage(frame capture.Frame)
	OnQuality(verdict quality.Verdict, label string)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Image   func(frame capture.Frame)
	Quality func(verdict quality.Verdict, label string)
}

// OnImage calls f.Image if set.
func (f ListenerFuncs) OnImage(frame capture.Frame) {
	if f.Image != nil {
		f.Image(frame)
	}
}

// OnQuality calls f.Quality if set.
func (f ListenerFuncs) OnQuality(verdict quality.Verdict, label string) {
	if f.Quality != nil {
		f.Quality(verdict, label)
	}
}
