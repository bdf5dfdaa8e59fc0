// Package aggregator implements the event-driven, single-task core
// described in the top-level spec: it drains a bounded event channel
// without self-waking, maintains per-task statistics, services
// subscription commands, and publishes differential snapshots to
// connected watchers on a fixed cadence.
package aggregator

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/fenwick-io/taskpulse/pkg/ids"
)

// TaskID is the dense, externally visible task identifier.
type TaskID = ids.TaskID

// SpanID is the opaque span identifier assigned by instrumentation.
type SpanID = ids.SpanID

// WakeOp enumerates the waker operations instrumentation reports.
type WakeOp int

const (
	// WakeOpWake fires when a waker is consumed by value. It does not
	// invoke the waker's drop handler, so it is also counted as a
	// drop — see Stats.WakerDrops.
	WakeOpWake WakeOp = iota
	// WakeOpWakeByRef fires when a waker is used without consuming it.
	WakeOpWakeByRef
	// WakeOpClone fires when a waker handle is cloned.
	WakeOpClone
	// WakeOpDrop fires when a waker handle is dropped.
	WakeOpDrop
)

func (op WakeOp) String() string {
	switch op {
	case WakeOpWake:
		return "wake"
	case WakeOpWakeByRef:
		return "wake_by_ref"
	case WakeOpClone:
		return "clone"
	case WakeOpDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// Metadata is a static descriptor for a task or span kind, registered
// once by instrumentation and never mutated afterward.
type Metadata struct {
	ID     uint64
	Name   string
	Target string
	File   string
	Line   uint32
}

// Field is a single structured field captured at spawn time.
type Field struct {
	Name  string
	Value string
}

// Event is the sealed set of lifecycle events the instrumentation
// layer emits. The concrete Event types below are the only
// implementations; applyEvent type-switches over them.
type Event interface{ isEvent() }

// EventMetadata registers a new static descriptor.
type EventMetadata struct{ Metadata Metadata }

// EventSpawn reports that a new task began.
type EventSpawn struct {
	Span     SpanID
	Metadata Metadata
	At       time.Time
	Fields   []Field
}

// EventEnter reports the start of a poll of the task identified by Span.
type EventEnter struct {
	Span SpanID
	At   time.Time
}

// EventExit reports the end of a poll of the task identified by Span.
type EventExit struct {
	Span SpanID
	At   time.Time
}

// EventClose reports that a task will never be polled again.
type EventClose struct {
	Span SpanID
	At   time.Time
}

// EventWaker reports a waker operation against the task identified by Span.
type EventWaker struct {
	Span SpanID
	Op   WakeOp
	At   time.Time
}

func (EventMetadata) isEvent() {}
func (EventSpawn) isEvent()    {}
func (EventEnter) isEvent()    {}
func (EventExit) isEvent()     {}
func (EventClose) isEvent()    {}
func (EventWaker) isEvent()    {}

// Command is the sealed set of RPCs the transport layer hands to the
// aggregator. See pkg/api for where these are constructed.
type Command interface{ isCommand() }

// WatchTasksCmd registers a new global subscription. sink is a
// delivery channel already owned by the transport layer; the
// aggregator never creates or closes it.
type WatchTasksCmd struct {
	Sink chan TaskUpdate
}

// WatchTaskDetailCmd requests a per-task detail stream. The
// aggregator sends the receiving end of a freshly created, Buffer-
// sized channel on Reply if ID is known, then always closes Reply. A
// close with no prior send means "not found".
type WatchTaskDetailCmd struct {
	ID     TaskID
	Buffer int
	Reply  chan chan TaskDetails
}

// PauseCmd stops the periodic publisher from sending updates.
type PauseCmd struct{}

// ResumeCmd resumes the periodic publisher.
type ResumeCmd struct{}

// StatsCmd requests a snapshot of the aggregator's internal activity
// counters, for the metrics collector. Reply is always sent exactly
// once; this is the only sanctioned way to read aggregator state from
// outside its owning goroutine.
type StatsCmd struct {
	Reply chan Counters
}

func (WatchTasksCmd) isCommand()      {}
func (WatchTaskDetailCmd) isCommand() {}
func (PauseCmd) isCommand()           {}
func (ResumeCmd) isCommand()          {}
func (StatsCmd) isCommand()           {}

// Task is the immutable, per-task static record: metadata and the
// fields captured at spawn time.
type Task struct {
	Metadata Metadata
	Fields   []Field
}

// Stats is the mutable, per-task record updated by every lifecycle
// event for that task.
type Stats struct {
	Polls           uint64
	CurrentPolls    uint64
	CreatedAt       time.Time
	FirstPoll       time.Time
	LastPollStarted time.Time
	LastPollEnded   time.Time
	ClosedAt        time.Time
	LastWake        time.Time

	BusyTime time.Duration

	Wakes       uint64
	WakerClones uint64
	WakerDrops  uint64

	// PollTimes is a 2-significant-figure HDR histogram of completed
	// poll durations, in nanoseconds.
	PollTimes *hdrhistogram.Histogram
}

func newStats(createdAt time.Time) Stats {
	return Stats{CreatedAt: createdAt, PollTimes: newPollHistogram()}
}

// TaskRecord is the wire-shaped static record published for a task:
// a Task plus the id the allocator assigned it.
type TaskRecord struct {
	ID       TaskID
	Metadata Metadata
	Fields   []Field
	// Parents is always empty: the aggregator does not yet track
	// task/span parentage (see original_source's own "TODO: parents").
	Parents []TaskID
}

// StatsSnapshot is the wire-shaped mutable record published for a task.
type StatsSnapshot struct {
	Polls           uint64
	CreatedAt       time.Time
	FirstPoll       time.Time
	LastPollStarted time.Time
	LastPollEnded   time.Time
	BusyTime        time.Duration
	// TotalTime is set only once the task has closed: busy time plus
	// idle time since creation.
	TotalTime *time.Duration
	Wakes     uint64
	WakerClones uint64
	WakerDrops  uint64
	LastWake    time.Time
}

// TaskUpdate is the differential payload delivered to global watchers
// on every publish tick.
type TaskUpdate struct {
	NewMetadata []Metadata
	NewTasks    []TaskRecord
	StatsUpdate map[TaskID]StatsSnapshot
	Now         time.Time
}

// TaskDetails is the payload delivered to a single task's detail
// watchers on every publish tick.
type TaskDetails struct {
	TaskID             TaskID
	Now                time.Time
	PollTimesHistogram []byte
}

// Temporality is the process-wide switch controlling whether the
// periodic timer publishes.
type Temporality int

const (
	Live Temporality = iota
	Paused
)
