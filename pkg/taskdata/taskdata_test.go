package taskdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIsDirty(t *testing.T) {
	m := New[int, string]()
	m.Insert(1, "a")

	seen := map[int]string{}
	m.SinceLastUpdate(func(k int, v string) { seen[k] = v })
	assert.Equal(t, map[int]string{1: "a"}, seen)

	// A second call with no intervening mutation sees nothing (R1).
	seen = map[int]string{}
	m.SinceLastUpdate(func(k int, v string) { seen[k] = v })
	assert.Empty(t, seen)
}

func TestUpdateMutatesInPlaceAndMarksDirty(t *testing.T) {
	m := New[int, int]()
	m.Insert(1, 10)
	m.SinceLastUpdate(func(int, int) {}) // clear the insert's dirty bit

	h, ok := m.Update(1)
	require.True(t, ok)
	*h.Value() += 5

	v, _ := m.Get(1)
	assert.Equal(t, 15, v)

	seen := 0
	m.SinceLastUpdate(func(k, v int) { seen = v })
	assert.Equal(t, 15, seen)
}

func TestUpdateOnMissingIDFails(t *testing.T) {
	m := New[int, int]()
	_, ok := m.Update(99)
	assert.False(t, ok)
}

func TestUpdateOrDefaultCreatesEntry(t *testing.T) {
	m := New[int, int]()
	h := m.UpdateOrDefault(1, func() int { return -1 })
	assert.Equal(t, -1, *h.Value())
	assert.True(t, m.Contains(1))
}

func TestRangeDoesNotClearDirty(t *testing.T) {
	m := New[int, int]()
	m.Insert(1, 1)
	m.Range(func(int, int) {})

	seen := 0
	m.SinceLastUpdate(func(k, v int) { seen = v })
	assert.Equal(t, 1, seen)
}

func TestRetainAndShrink(t *testing.T) {
	m := New[int, int]()
	m.Insert(1, 1)
	m.Insert(2, 2)
	m.SinceLastUpdate(func(int, int) {})
	h, _ := m.Update(2)
	*h.Value() = 22

	var sawDirty map[int]bool = map[int]bool{}
	m.RetainAndShrink(func(id int, v int, dirty bool) bool {
		sawDirty[id] = dirty
		return id != 1
	})

	assert.False(t, sawDirty[1])
	assert.True(t, sawDirty[2])
	assert.False(t, m.Contains(1))
	assert.True(t, m.Contains(2))
}
