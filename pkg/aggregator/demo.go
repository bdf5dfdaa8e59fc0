package aggregator

import (
	"math/rand"
	"time"

	"github.com/fenwick-io/taskpulse/pkg/watch"
)

// demoFlushWatermark is the fraction of the event channel's capacity
// at which the demo source treats itself as a real backpressured
// producer and calls Flush.Trigger instead of waiting for the next
// publish tick (spec.md §5).
const demoFlushWatermark = 0.8

// DemoSource generates a synthetic stream of lifecycle events so
// taskpulsed serve --demo has something to publish without wiring up
// real runtime instrumentation. It follows the same
// Start-spawns-a-goroutine / Stop-closes-a-channel shape the rest of
// the pack's background loops use; it is not part of the aggregator's
// core contract and lives here only because it speaks the Event
// vocabulary directly.
type DemoSource struct {
	events chan<- Event
	flush  *watch.Flush
	rng    *rand.Rand
	stopCh chan struct{}
}

// NewDemoSource wraps events, the same channel the aggregator's Run
// loop drains, and flush, the aggregator's own Flush signal — played
// here as the producer side of the backpressure boundary spec.md §5
// describes.
func NewDemoSource(events chan Event, flush *watch.Flush) *DemoSource {
	return &DemoSource{
		events: events,
		flush:  flush,
		rng:    rand.New(rand.NewSource(1)),
		stopCh: make(chan struct{}),
	}
}

// Start begins emitting events on a fixed cadence until Stop is
// called.
func (d *DemoSource) Start() {
	go d.run()
}

// Stop halts event generation.
func (d *DemoSource) Stop() {
	close(d.stopCh)
}

var demoTaskNames = []string{"fetch_user", "render_page", "flush_buffer", "heartbeat", "compact_index"}

func (d *DemoSource) run() {
	d.emit(EventMetadata{Metadata: Metadata{ID: 1, Name: "demo_task", Target: "taskpulse::demo", File: "demo.go", Line: 1}})

	type liveTask struct {
		span   SpanID
		polls  int
		closed bool
	}
	var live []liveTask
	var nextSpan SpanID = 1

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			now := time.Now()

			if len(live) < 32 && d.rng.Intn(3) == 0 {
				span := nextSpan
				nextSpan++
				name := demoTaskNames[d.rng.Intn(len(demoTaskNames))]
				d.emit(EventSpawn{
					Span:     span,
					Metadata: Metadata{ID: 1, Name: name, Target: "taskpulse::demo", File: "demo.go", Line: 1},
					At:       now,
					Fields:   []Field{{Name: "kind", Value: name}},
				})
				live = append(live, liveTask{span: span})
				continue
			}

			if len(live) == 0 {
				continue
			}
			i := d.rng.Intn(len(live))
			t := &live[i]
			if t.closed {
				continue
			}

			switch d.rng.Intn(4) {
			case 0:
				d.emit(EventEnter{Span: t.span, At: now})
			case 1:
				d.emit(EventExit{Span: t.span, At: now.Add(time.Duration(1+d.rng.Intn(5)) * time.Millisecond)})
				t.polls++
			case 2:
				d.emit(EventWaker{Span: t.span, Op: WakeOp(d.rng.Intn(4)), At: now})
			case 3:
				if t.polls > 2 {
					d.emit(EventClose{Span: t.span, At: now})
					t.closed = true
				}
			}
		}
	}
}

func (d *DemoSource) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		// A full channel is dropped rather than blocked on: a real
		// producer would behave the same way and rely on Flush to get
		// the aggregator to drain sooner rather than waiting on it.
		return
	}

	if d.flush != nil && cap(d.events) > 0 && float64(len(d.events))/float64(cap(d.events)) >= demoFlushWatermark {
		d.flush.Trigger()
	}
}
