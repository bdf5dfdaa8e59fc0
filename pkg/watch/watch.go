// Package watch provides the non-blocking subscription sink and the
// edge-triggered flush signal the aggregator uses to talk to its
// producers and consumers without ever blocking on either.
package watch

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Watch wraps a single sink's send channel. Update never blocks: it
// attempts a non-blocking reservation and reports whether the message
// was accepted. The caller (the publisher) uses a false return to
// evict the watcher rather than retry or wait.
type Watch[T any] struct {
	id uuid.UUID
	ch chan T
}

// New wraps ch as a Watch. ch is expected to be a bounded, buffered
// channel owned by the transport layer on the other side.
func New[T any](ch chan T) Watch[T] {
	return Watch[T]{id: uuid.New(), ch: ch}
}

// ID returns a stable identifier for this subscription, useful only
// for log correlation.
func (w Watch[T]) ID() uuid.UUID { return w.id }

// Update attempts to deliver v without blocking. It returns false if
// the sink's buffer is full or the sink has been closed/dropped by
// the consumer; the caller should treat false as "this watcher is
// dead" and stop delivering to it.
func (w Watch[T]) Update(v T) (ok bool) {
	defer func() {
		// Sending on a channel whose receiver went away by closing
		// it (rather than merely dropping it) panics; treat that the
		// same as a full buffer: the watcher is gone.
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case w.ch <- v:
		return true
	default:
		return false
	}
}

// Flush is an edge-triggered, one-shot notification with an
// idempotent trigger: concurrent producers calling Trigger between
// two observations by the aggregator collapse into a single wakeup.
type Flush struct {
	triggered atomic.Bool
	notify    chan struct{}
}

// NewFlush constructs a Flush ready for use.
func NewFlush() *Flush {
	return &Flush{notify: make(chan struct{}, 1)}
}

// Trigger performs a compare-and-swap from false to true. On a win it
// notifies exactly one waiter (non-blocking, since the channel has a
// buffer of one and triggered can only transition false->true while
// empty); on a loss — another trigger is already pending — it is a
// silent no-op.
func (f *Flush) Trigger() {
	if f.triggered.CompareAndSwap(false, true) {
		select {
		case f.notify <- struct{}{}:
		default:
		}
	}
}

// C returns the channel the aggregator selects on to observe a
// trigger. The aggregator must call Clear after a receive to reset
// the triggered bit and re-arm the signal.
func (f *Flush) C() <-chan struct{} { return f.notify }

// Clear resets the triggered bit after the aggregator has observed
// and acted on a notification.
func (f *Flush) Clear() {
	f.triggered.Store(false)
}
