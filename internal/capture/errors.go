package capture

import "errors"

// Domain errors for the capture package.
var (
	// ErrAlreadyRunning is returned by Start while a worker is active.
	ErrAlreadyRunning = errors.New("capture: already running")

	// ErrSessionUnavailable is returned by Start when the session cannot be made ready.
	ErrSessionUnavailable = errors.New("capture: sensor session unavailable")

	// ErrCycleFault records a panic that terminated the worker.
	ErrCycleFault = errors.New("capture: unrecoverable fault in capture cycle")
)
