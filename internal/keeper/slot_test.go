package keeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotPushPop(t *testing.T) {
	s := newSlot()
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, -1, s.Limit())

	s.push([]Value{1, 2, 3})
	require.Equal(t, 3, s.Count())
	assert.Equal(t, []Value{1, 2}, s.pop(2))
	assert.Equal(t, 1, s.Count())

	s.push([]Value{4, 5})
	assert.Equal(t, []Value{3, 4, 5}, s.pop(3))
	assert.Equal(t, 0, s.Count())
}

func TestSlotRebasesOnEmpty(t *testing.T) {
	s := newSlot()
	s.push([]Value{1})
	s.pop(1)
	assert.Equal(t, 1, s.first, "first must rebase to 1 once the slot drains")
	assert.Equal(t, 0, len(s.storage), "storage must be truncated, not just logically empty")
}

func TestSlotPeekIsNonDestructive(t *testing.T) {
	s := newSlot()
	s.push([]Value{"a", "b", "c"})
	assert.Equal(t, []Value{"a", "b"}, s.peek(2))
	assert.Equal(t, 3, s.Count(), "peek must not consume")
	assert.Equal(t, []Value{"a", "b", "c"}, s.peek(3))
}

func TestSlotHasRoom(t *testing.T) {
	s := newSlot()
	assert.True(t, s.HasRoom(1000), "unbounded slot always has room")

	s.limit = 2
	assert.True(t, s.HasRoom(2))
	assert.False(t, s.HasRoom(3))
	s.push([]Value{1, 2})
	assert.False(t, s.HasRoom(1))
}

func TestSlotReset(t *testing.T) {
	s := newSlot()
	s.push([]Value{1, 2, 3})
	s.reset()
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 1, s.first)
	for _, v := range s.storage[:cap(s.storage)] {
		assert.Nil(t, v, "reset must not leave stale references behind for the GC")
	}
}

func TestSlotPushGrowsBeyondInitialCapacity(t *testing.T) {
	s := newSlot()
	vals := make([]Value, 100)
	for i := range vals {
		vals[i] = i
	}
	s.push(vals)
	require.Equal(t, 100, s.Count())
	got := s.pop(100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
