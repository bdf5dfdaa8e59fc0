package shrink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecPushAndRetain(t *testing.T) {
	var v Vec[int]
	assert.True(t, v.IsEmpty())

	for i := 0; i < 10; i++ {
		v.Push(i)
	}
	require.Equal(t, 10, v.Len())

	v.RetainAndShrink(func(n int) bool { return n%2 == 0 })
	assert.Equal(t, []int{0, 2, 4, 6, 8}, v.All())
}

func TestVecShrinksAfterBurst(t *testing.T) {
	var v Vec[int]
	// shrinkEvery-1 pushes, so the retain pass below is the
	// shrinkEvery-th mutation and runs the shrink check.
	for i := 0; i < shrinkEvery-1; i++ {
		v.Push(i)
	}
	v.RetainAndShrink(func(int) bool { return false })
	assert.True(t, v.IsEmpty())
	// After the shrink pass the backing array should not still be
	// holding onto capacity sized for the burst.
	assert.Less(t, cap(v.items), shrinkEvery)
}

func TestMapSetGetDelete(t *testing.T) {
	m := NewMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMapRetainAndShrink(t *testing.T) {
	m := NewMap[int, int]()
	for i := 0; i < 20; i++ {
		m.Set(i, i*i)
	}
	m.RetainAndShrink(func(k, v int) bool { return k%2 == 0 })
	assert.Equal(t, 10, m.Len())
	for i := 0; i < 20; i += 2 {
		v, ok := m.Get(i)
		require.True(t, ok)
		assert.Equal(t, i*i, v)
	}
	_, ok := m.Get(1)
	assert.False(t, ok)
}
