package sensor

import "errors"

// Domain errors for the sensor package.
// Driver return codes never leave this package; callers see these instead.
var (
	// ErrNotReady is returned when an operation needs a Ready session.
	ErrNotReady = errors.New("sensor: session not ready")

	// ErrSDKInit is returned when the SDK refuses to initialise.
	ErrSDKInit = errors.New("sensor: SDK initialisation failed")

	// ErrOpenDevice is returned when no device could be opened.
	ErrOpenDevice = errors.New("sensor: could not open device")

	// ErrDimensions is returned when the device reports unusable image dimensions.
	ErrDimensions = errors.New("sensor: invalid image dimensions")

	// ErrTemplateDB is returned when the template database cannot be created.
	ErrTemplateDB = errors.New("sensor: template database unavailable")

	// ErrAcquire is returned when the driver fails to deliver a frame.
	ErrAcquire = errors.New("sensor: frame acquisition failed")

	// ErrBufferSize is returned when an acquisition buffer does not match the frame size.
	ErrBufferSize = errors.New("sensor: buffer does not match frame size")

	// ErrParameter is returned when a parameter write is rejected.
	ErrParameter = errors.New("sensor: parameter write failed")

	// ErrLED is returned when the LED colour could not be applied, even after one retry.
	ErrLED = errors.New("sensor: LED update failed")

	// ErrEnroll is returned when the template store rejects a template.
	ErrEnroll = errors.New("sensor: template enrolment failed")

	// ErrInvalidColor is returned for an unknown LED colour name.
	ErrInvalidColor = errors.New("sensor: invalid LED colour")

	// ErrDriverPanic wraps a panic raised inside a driver call.
	ErrDriverPanic = errors.New("sensor: driver panic")
)
