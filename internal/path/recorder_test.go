package path

import (
	"testing"

	"github.com/marchline/extension/internal/grid"
	"github.com/marchline/extension/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(t *testing.T, x, y float64) core.Position {
	t.Helper()
	p, err := grid.Snap(x, y, 1)
	require.NoError(t, err)
	return p
}

func TestRecordMove_SeedsWithOldPosition(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.RecordMove(snap(t, 0, 0), snap(t, 2, 0)))

	// Oldest entry (last) is the seed, newest (first) is the destination.
	require.Equal(t, 3, r.Len())
	assert.Equal(t, 0.0, r.At(2).X)
	assert.Equal(t, 2.0, r.At(0).X)
}

func TestRecordMove_PrependsNewestFirst(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.RecordMove(snap(t, 0, 0), snap(t, 3, 0)))

	require.Equal(t, 4, r.Len())
	for i, wantX := range []float64{3, 2, 1, 0} {
		assert.Equal(t, wantX, r.At(i).X, "index %d", i)
	}
}

func TestRecordMove_NoConsecutiveDuplicateCells(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.RecordMove(snap(t, 0, 0), snap(t, 1, 0)))
	// Sub-cell shuffle that stays in the same cell must not grow the path.
	require.NoError(t, r.RecordMove(snap(t, 1, 0), snap(t, 1.2, 0.1)))

	snapshot := r.Snapshot()
	for i := 1; i < len(snapshot); i++ {
		assert.NotEqual(t, snapshot[i-1].GridKey, snapshot[i].GridKey,
			"consecutive entries %d and %d share a cell", i-1, i)
	}
}

func TestTrim_KeepsUpToIndex(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.RecordMove(snap(t, 0, 0), snap(t, 4, 0)))
	require.Equal(t, 5, r.Len())

	r.Trim(2)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 4.0, r.At(0).X, "newest entry survives a trim")
}

func TestTrim_OutOfRangePanics(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.RecordMove(snap(t, 0, 0), snap(t, 1, 0)))

	assert.Panics(t, func() { r.Trim(-1) })
	assert.Panics(t, func() { r.Trim(r.Len()) })
}

func TestClear_EmptiesPath(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.RecordMove(snap(t, 0, 0), snap(t, 5, 5)))
	r.Clear()
	assert.Equal(t, 0, r.Len())
}
