package simdriver

import (
	"bytes"
	"sync"

	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
)

// Default frame dimensions, matching a ZK9500-class sensor.
const (
	DefaultWidth  = 256
	DefaultHeight = 360

	// DefaultIdentifyThreshold is the minimum score IdentifyTemplate accepts.
	DefaultIdentifyThreshold = 50
)

// Pixel levels used by the synthetic frames.
const (
	ridgeLevel      byte = 40
	valleyLevel     byte = 190
	backgroundLevel byte = 235
)

// Options configures a Driver.
type Options struct {
	Width  int
	Height int

	// PresentFrames and AbsentFrames cycle finger presence automatically:
	// PresentFrames frames with a finger, then AbsentFrames without.
	// Both zero leaves presence under SetFinger control.
	PresentFrames int
	AbsentFrames  int

	// IdentifyThreshold is the minimum match score for IdentifyTemplate.
	IdentifyThreshold int
}

// Driver is a simulated fingerprint sensor. Safe for concurrent use.
type Driver struct {
	opts Options

	mu          sync.Mutex
	initialized bool
	device      sensor.Handle
	db          sensor.Handle
	nextHandle  sensor.Handle
	params      map[sensor.ParamID]int
	templates   map[int][]byte
	finger      bool
	frames      uint64

	failInit     bool
	failOpen     bool
	failAcquire  int
	failLED      int
	panicAcquire bool

	calls Calls
}

// Calls counts lifecycle calls, for assertions in tests.
type Calls struct {
	Init       int
	Terminate  int
	Open       int
	Close      int
	Acquire    int
	LEDWrites  int
	BeepWrites int
}

var _ sensor.Driver = (*Driver)(nil)

// New creates a simulated driver.
func New(opts Options) *Driver {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.IdentifyThreshold <= 0 {
		opts.IdentifyThreshold = DefaultIdentifyThreshold
	}
	return &Driver{
		opts:       opts,
		nextHandle: 1,
		params:     make(map[sensor.ParamID]int),
		templates:  make(map[int][]byte),
	}
}

// SetFinger places or lifts the simulated finger.
func (d *Driver) SetFinger(present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finger = present
}

// FailInit makes every Init call fail until cleared.
func (d *Driver) FailInit(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failInit = fail
}

// FailOpen makes every OpenDevice call fail until cleared.
func (d *Driver) FailOpen(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOpen = fail
}

// FailAcquire makes the next n acquisitions fail.
func (d *Driver) FailAcquire(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAcquire = n
}

// FailLED makes the next n non-off LED writes fail.
func (d *Driver) FailLED(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failLED = n
}

// PanicOnAcquire makes AcquireFrame panic.
func (d *Driver) PanicOnAcquire(p bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panicAcquire = p
}

// Calls returns a copy of the call counters.
func (d *Driver) Calls() Calls {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Param returns the last value written to a parameter.
func (d *Driver) Param(id sensor.ParamID) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.params[id]
	return v, ok
}

// Init implements sensor.Driver.
func (d *Driver) Init() sensor.Code {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Init++
	if d.failInit {
		return -1
	}
	d.initialized = true
	return sensor.OK
}

// Terminate implements sensor.Driver.
func (d *Driver) Terminate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Terminate++
	d.initialized = false
}

// OpenDevice implements sensor.Driver. Only index 0 exists.
func (d *Driver) OpenDevice(index int) sensor.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Open++
	if !d.initialized || d.failOpen || index != 0 || d.device != 0 {
		return 0
	}
	d.device = d.allocHandle()
	return d.device
}

// CloseDevice implements sensor.Driver.
func (d *Driver) CloseDevice(device sensor.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Close++
	if device == d.device {
		d.device = 0
	}
}

// GetParameter implements sensor.Driver.
func (d *Driver) GetParameter(device sensor.Handle, id sensor.ParamID) ([]byte, sensor.Code) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if device == 0 || device != d.device {
		return nil, -1
	}
	switch id {
	case sensor.ParamImageWidth:
		return sensor.EncodeParam(d.opts.Width), sensor.OK
	case sensor.ParamImageHeight:
		return sensor.EncodeParam(d.opts.Height), sensor.OK
	}
	v, ok := d.params[id]
	if !ok {
		return nil, -2
	}
	return sensor.EncodeParam(v), sensor.OK
}

// SetParameter implements sensor.Driver. Image dimensions are read-only.
func (d *Driver) SetParameter(device sensor.Handle, id sensor.ParamID, value []byte) sensor.Code {
	d.mu.Lock()
	defer d.mu.Unlock()
	if device == 0 || device != d.device {
		return -1
	}
	if id == sensor.ParamImageWidth || id == sensor.ParamImageHeight {
		return -3
	}

	v := sensor.DecodeParam(value)
	switch id {
	case sensor.ParamLED:
		d.calls.LEDWrites++
		if v != int(sensor.LEDOff) && d.failLED > 0 {
			d.failLED--
			return -4
		}
	case sensor.ParamBeep:
		d.calls.BeepWrites++
	}
	d.params[id] = v
	return sensor.OK
}

// AcquireFrame implements sensor.Driver.
func (d *Driver) AcquireFrame(device sensor.Handle, buf []byte) sensor.Code {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Acquire++

	if d.panicAcquire {
		panic("simdriver: injected acquisition panic")
	}
	if device == 0 || device != d.device {
		return -1
	}
	if d.failAcquire > 0 {
		d.failAcquire--
		return -5
	}
	if len(buf) != d.opts.Width*d.opts.Height {
		return -6
	}

	present := d.fingerPresentLocked()
	d.frames++
	if present {
		RenderFinger(buf, d.opts.Width, d.opts.Height, int(d.frames%8)) // #nosec G115 -- bounded by modulo
	} else {
		RenderBlank(buf)
	}
	return sensor.OK
}

func (d *Driver) fingerPresentLocked() bool {
	period := d.opts.PresentFrames + d.opts.AbsentFrames
	if period <= 0 {
		return d.finger
	}
	pos := int(d.frames % uint64(period)) // #nosec G115 -- period is positive
	return pos < d.opts.PresentFrames
}

// OpenTemplateDB implements sensor.Driver.
func (d *Driver) OpenTemplateDB() sensor.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized || d.db != 0 {
		return 0
	}
	d.db = d.allocHandle()
	return d.db
}

// FreeTemplateDB implements sensor.Driver. Enrolled templates are dropped.
func (d *Driver) FreeTemplateDB(db sensor.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if db == d.db {
		d.db = 0
		clear(d.templates)
	}
}

// AddTemplate implements sensor.Driver. Re-enrolling an id replaces it.
func (d *Driver) AddTemplate(db sensor.Handle, id int, template []byte) sensor.Code {
	d.mu.Lock()
	defer d.mu.Unlock()
	if db == 0 || db != d.db || id < 0 || len(template) == 0 {
		return -1
	}
	d.templates[id] = bytes.Clone(template)
	return sensor.OK
}

// MatchTemplates implements sensor.Driver.
func (d *Driver) MatchTemplates(_ sensor.Handle, a, b []byte) int {
	return Similarity(a, b)
}

// IdentifyTemplate implements sensor.Driver. Ties go to the lowest id.
func (d *Driver) IdentifyTemplate(db sensor.Handle, template []byte) (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if db == 0 || db != d.db {
		return -1, 0
	}

	bestID, bestScore := -1, 0
	for id, stored := range d.templates {
		score := Similarity(template, stored)
		if score > bestScore || (score == bestScore && bestID >= 0 && id < bestID) {
			bestID, bestScore = id, score
		}
	}
	if bestScore < d.opts.IdentifyThreshold {
		return -1, bestScore
	}
	return bestID, bestScore
}

func (d *Driver) allocHandle() sensor.Handle {
	h := d.nextHandle
	d.nextHandle++
	return h
}

// Similarity scores two templates 0-100 by the share of equal bytes over the
// longer template. Empty templates score 0.
func Similarity(a, b []byte) int {
	longest := max(len(a), len(b))
	if longest == 0 || len(a) == 0 || len(b) == 0 {
		return 0
	}
	same := 0
	for i := range min(len(a), len(b)) {
		if a[i] == b[i] {
			same++
		}
	}
	return same * 100 / longest
}
