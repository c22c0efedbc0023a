package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocatorDropsBlankAndDuplicateLabels(t *testing.T) {
	a := NewAllocator([]string{"Lion", " ", "Tiger", "Lion", "", " Tiger "})
	assert.Equal(t, 2, a.Size())
}

func TestAllocateAvoidsUsedLabels(t *testing.T) {
	a := NewAllocator([]string{"Lion", "Tiger", "Bear"})
	used := map[string]struct{}{"Lion": {}, "Bear": {}}

	for i := 0; i < 50; i++ {
		got, err := a.Allocate(used)
		require.NoError(t, err)
		assert.Equal(t, "Tiger", got)
	}
}

func TestAllocateExhaustsPool(t *testing.T) {
	labels := []string{"Lion", "Tiger", "Bear", "Wolf"}
	a := NewAllocator(labels)
	used := make(map[string]struct{})

	for range labels {
		got, err := a.Allocate(used)
		require.NoError(t, err)
		_, dup := used[got]
		require.False(t, dup, "label %q handed out twice", got)
		used[got] = struct{}{}
	}

	_, err := a.Allocate(used)
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestAllocateEmptyPool(t *testing.T) {
	_, err := NewAllocator(nil).Allocate(nil)
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestAllocateCoversWholePool(t *testing.T) {
	a := NewAllocator([]string{"Lion", "Tiger", "Bear"})
	seen := make(map[string]bool)
	for i := 0; i < 300 && len(seen) < 3; i++ {
		got, err := a.Allocate(nil)
		require.NoError(t, err)
		seen[got] = true
	}
	assert.Len(t, seen, 3)
}
