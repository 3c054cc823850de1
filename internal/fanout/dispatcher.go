package fanout

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-biometric/internal/capture"
)

// DefaultQueueSize is the per-listener queue length when none is configured.
const DefaultQueueSize = 16

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("fanout: dispatcher closed")

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher fans capture events out to listeners.
//
// Thread Safety: All methods are safe for concurrent use. Subscribe and the
// returned unsubscribe function may be called while Publish is running.
type Dispatcher struct {
	queueSize int
	logger    Logger

	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool

	wg      sync.WaitGroup
	dropped atomic.Uint64
	panics  atomic.Uint64
}

var _ capture.Publisher = (*Dispatcher)(nil)

type subscriber struct {
	id       uint64
	name     string
	listener Listener

	// sendMu serialises producers so drop-oldest keeps FIFO order.
	sendMu sync.Mutex
	ch     chan capture.Event
}

// New creates a dispatcher. A non-positive queueSize uses DefaultQueueSize.
// logger may be nil.
func New(queueSize int, logger Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		queueSize: queueSize,
		logger:    logger,
		subs:      make(map[uint64]*subscriber),
	}
}

// Subscribe registers a listener and starts its delivery goroutine.
// The returned function deregisters it; calling it more than once is safe.
// Events already queued when it is called are still delivered.
func (d *Dispatcher) Subscribe(name string, l Listener) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return func() {}, ErrClosed
	}

	d.nextID++
	sub := &subscriber{
		id:       d.nextID,
		name:     name,
		listener: l,
		ch:       make(chan capture.Event, d.queueSize),
	}
	d.subs[sub.id] = sub

	d.wg.Add(1)
	go d.deliver(sub)

	d.logger.Debug("listener subscribed", "listener", name, "id", sub.id)

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(sub.id) })
	}, nil
}

func (d *Dispatcher) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, ok := d.subs[id]
	if !ok {
		return
	}
	delete(d.subs, id)
	close(sub.ch)
	d.logger.Debug("listener unsubscribed", "listener", sub.name, "id", id)
}

// Publish queues ev for every current listener. It never blocks on a
// listener; a full queue loses its oldest event.
func (d *Dispatcher) Publish(ev capture.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, sub := range d.subs {
		if d.enqueue(sub, ev) {
			d.dropped.Add(1)
			d.logger.Debug("listener queue full, dropped oldest event", "listener", sub.name)
		}
	}
}

// enqueue reports whether an older event had to be dropped.
func (d *Dispatcher) enqueue(sub *subscriber, ev capture.Event) bool {
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()

	dropped := false
	for {
		select {
		case sub.ch <- ev:
			return dropped
		default:
		}
		select {
		case <-sub.ch:
			dropped = true
		default:
		}
	}
}

func (d *Dispatcher) deliver(sub *subscriber) {
	defer d.wg.Done()
	for ev := range sub.ch {
		d.call(sub, "image", func() { sub.listener.OnImage(ev.Frame) })
		d.call(sub, "quality", func() { sub.listener.OnQuality(ev.Verdict, ev.Label) })
	}
}

func (d *Dispatcher) call(sub *subscriber, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("listener panicked",
				"listener", sub.name,
				"callback", kind,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

// Listeners returns the number of registered listeners.
func (d *Dispatcher) Listeners() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Dropped returns the number of events discarded because a queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Panics returns the number of recovered listener panics.
func (d *Dispatcher) Panics() uint64 {
	return d.panics.Load()
}

// Close deregisters every listener and waits for queued events to drain or
// ctx to end. Publish after Close is a no-op.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for id, sub := range d.subs {
			delete(d.subs, id)
			close(sub.ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
