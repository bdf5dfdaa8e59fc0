// Package ids allocates dense, observer-facing task identifiers for
// the opaque span identifiers instrumentation reports.
package ids

import "github.com/fenwick-io/taskpulse/pkg/shrink"

// TaskID is the dense, externally visible identifier assigned to a
// task. It is monotonic with wraparound and stable for the lifetime
// of the task's entry in the aggregator's maps.
type TaskID uint64

// SpanID is the opaque identifier assigned by instrumentation. It is
// an observation handle, not a stable key: instrumentation may reuse
// or recycle span identifiers over the process lifetime.
type SpanID uint64

// Allocator maintains the bijection between SpanIDs and TaskIDs.
//
// It is not safe for concurrent use; callers (the aggregator) own it
// exclusively, matching the single-threaded-cooperative ownership
// model described for the aggregator's state.
type Allocator struct {
	next     TaskID
	mappings shrink.Map[SpanID, TaskID]
}

// New constructs an empty Allocator.
func New() *Allocator {
	return &Allocator{mappings: shrink.NewMap[SpanID, TaskID]()}
}

// IDFor returns the TaskID for span, allocating a new one via a
// wrapping increment of the internal counter if this span has not
// been observed before. The wraparound can in principle collide after
// 2^64 allocations; that collision is not handled.
func (a *Allocator) IDFor(span SpanID) TaskID {
	if id, ok := a.mappings.Get(span); ok {
		return id
	}
	id := a.next
	a.next++
	a.mappings.Set(span, id)
	return id
}

// RetainOnly drops every span-to-task mapping whose TaskID is not
// reported live by isLive.
func (a *Allocator) RetainOnly(isLive func(TaskID) bool) {
	a.mappings.RetainAndShrink(func(_ SpanID, id TaskID) bool {
		return isLive(id)
	})
}

// Len reports the number of live span-to-task mappings.
func (a *Allocator) Len() int { return a.mappings.Len() }
