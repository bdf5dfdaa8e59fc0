// Package taskdata implements the keyed map of task records the
// aggregator publishes from: every entry tracks whether it has
// mutated since the last publish, so a publish tick only has to walk
// the entries that changed.
package taskdata

import "github.com/fenwick-io/taskpulse/pkg/shrink"

type entry[V any] struct {
	value V
	dirty bool
}

// Map is a dirty-tracking keyed map. The dirty bit lives next to the
// value rather than in a side set, so a publish only pays for the
// entries that actually changed instead of scanning everything.
//
// Not safe for concurrent use; the aggregator owns it exclusively.
type Map[K comparable, V any] struct {
	entries shrink.Map[K, *entry[V]]
}

// New constructs an empty Map.
func New[K comparable, V any]() Map[K, V] {
	return Map[K, V]{entries: shrink.NewMap[K, *entry[V]]()}
}

// Insert inserts v under id, marking the entry dirty.
func (m *Map[K, V]) Insert(id K, v V) {
	m.entries.Set(id, &entry[V]{value: v, dirty: true})
}

// Get returns a read-only copy of the value at id, if present. It
// does not affect the dirty bit.
func (m *Map[K, V]) Get(id K) (V, bool) {
	e, ok := m.entries.Get(id)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether id has an entry.
func (m *Map[K, V]) Contains(id K) bool {
	return m.entries.Contains(id)
}

// Len reports the number of live entries.
func (m *Map[K, V]) Len() int { return m.entries.Len() }

// Handle is a mutation handle for an existing entry, obtained from
// Update or UpdateOrDefault. Every handle marks its entry dirty at
// acquisition time: every real call site in the state updater (§4.6)
// only ever asks for a handle in order to mutate through it, so this
// collapses the "dirty only if actually mutated" nuance of the
// original's borrow-on-drop tracking into a simpler, equivalent rule
// for the mutation patterns this aggregator performs.
type Handle[V any] struct {
	e *entry[V]
}

// Value returns a pointer to the live value for in-place mutation.
func (h Handle[V]) Value() *V { return &h.e.value }

// Update returns a mutation handle for an existing id, or false if
// absent.
func (m *Map[K, V]) Update(id K) (Handle[V], bool) {
	e, ok := m.entries.Get(id)
	if !ok {
		return Handle[V]{}, false
	}
	e.dirty = true
	return Handle[V]{e: e}, true
}

// UpdateOrDefault is like Update but creates a zero-valued entry if
// absent, for events that may race ahead of the entry's creation.
func (m *Map[K, V]) UpdateOrDefault(id K, zero func() V) Handle[V] {
	e, ok := m.entries.Get(id)
	if !ok {
		e = &entry[V]{value: zero()}
		m.entries.Set(id, e)
	}
	e.dirty = true
	return Handle[V]{e: e}
}

// Range calls f for every live entry, in no particular order. It does
// not clear dirty bits.
func (m *Map[K, V]) Range(f func(K, V)) {
	m.entries.Range(func(k K, e *entry[V]) {
		f(k, e.value)
	})
}

// SinceLastUpdate calls f for every dirty entry and clears its dirty
// bit as it is consumed, so a second call with no intervening
// mutation visits nothing.
func (m *Map[K, V]) SinceLastUpdate(f func(K, V)) {
	m.entries.Range(func(k K, e *entry[V]) {
		if !e.dirty {
			return
		}
		f(k, e.value)
		e.dirty = false
	})
}

// RetainAndShrink removes every entry for which keep returns false —
// keep is given the entry's current dirty bit — and occasionally
// reclaims backing capacity.
func (m *Map[K, V]) RetainAndShrink(keep func(id K, v V, dirty bool) bool) {
	m.entries.RetainAndShrink(func(k K, e *entry[V]) bool {
		return keep(k, e.value, e.dirty)
	})
}
