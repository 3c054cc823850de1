package sensor

import "encoding/binary"

// Handle is an opaque identifier for an open device or template database.
// Zero is never a valid handle.
type Handle uint64

// Code is a driver return code. Zero means success; every other value is
// treated as a failure without further interpretation.
type Code int

// OK is the success code.
const OK Code = 0

// Failed reports whether the code is a driver failure.
func (c Code) Failed() bool {
	return c != OK
}

// ParamID identifies a device parameter.
type ParamID int

// Parameter identifiers understood by the ZK-family sensors.
const (
	ParamImageWidth  ParamID = 1
	ParamImageHeight ParamID = 2
	ParamSensitivity ParamID = 4
	ParamLED         ParamID = 101
	ParamSpeed       ParamID = 2001
	ParamBeep        ParamID = 2002
)

// paramSize is the byte width of every parameter value.
const paramSize = 4

// Driver is the narrow port to the native sensor SDK.
//
// Implementations are expected to return in bounded time from every call.
// They may panic on programming errors; the session and capture loop treat a
// panic as a fault rather than a transient failure.
type Driver interface {
	// Init initialises the SDK.
	Init() Code

	// Terminate releases the SDK.
	Terminate()

	// OpenDevice opens the device at the given enumeration index.
	// Returns 0 on failure.
	OpenDevice(index int) Handle

	// CloseDevice closes an open device.
	CloseDevice(device Handle)

	// GetParameter reads a parameter value.
	GetParameter(device Handle, id ParamID) ([]byte, Code)

	// SetParameter writes a parameter value.
	SetParameter(device Handle, id ParamID, value []byte) Code

	// AcquireFrame fills buf with one grayscale frame, one byte per pixel.
	AcquireFrame(device Handle, buf []byte) Code

	// OpenTemplateDB creates the sensor-local template store.
	// Returns 0 on failure.
	OpenTemplateDB() Handle

	// FreeTemplateDB releases the template store.
	FreeTemplateDB(db Handle)

	// AddTemplate registers a template under id in the store.
	AddTemplate(db Handle, id int, template []byte) Code

	// MatchTemplates compares two templates and returns a 0-100 score.
	MatchTemplates(db Handle, a, b []byte) int

	// IdentifyTemplate searches the store and returns the best candidate id
	// (negative when nothing matched) and its score.
	IdentifyTemplate(db Handle, template []byte) (id int, score int)
}

// EncodeParam encodes an integer parameter value as the 4-byte little-endian
// form the driver expects.
func EncodeParam(v int) []byte {
	buf := make([]byte, paramSize)
	binary.LittleEndian.PutUint32(buf, uint32(int32(v))) // #nosec G115 -- parameter values fit in int32
	return buf
}

// DecodeParam decodes a 4-byte little-endian parameter value.
// Short buffers are zero-extended.
func DecodeParam(b []byte) int {
	var buf [paramSize]byte
	copy(buf[:], b)
	return int(int32(binary.LittleEndian.Uint32(buf[:]))) // #nosec G115 -- round-trips EncodeParam
}
