package relay

import "github.com/nerrad567/gray-logic-biometric/internal/capture"

// Observers fans capture.Observer calls out to several observers in order.
// Nil entries are skipped.
type Observers []capture.Observer

var _ capture.Observer = Observers(nil)

// ObserveFailure implements capture.Observer.
func (o Observers) ObserveFailure(consecutive int, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveFailure(consecutive, err)
		}
	}
}

// ObserveRecovery implements capture.Observer.
func (o Observers) ObserveRecovery(r capture.Recovery) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveRecovery(r)
		}
	}
}
