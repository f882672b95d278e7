// Package path maintains the leader's movement history as an ordered
// buffer of grid positions, newest-first. The recorder is the only
// mutator of the path; the playback engine reads it and requests trims.
package path

import (
	"fmt"
	"sync"

	"github.com/marchline/extension/internal/grid"
	"github.com/marchline/extension/pkg/core"
)

// Recorder owns the leader path. Index 0 is always the most recent
// position; consecutive entries never share a grid key.
type Recorder struct {
	mu       sync.Mutex
	points   []core.Position
	cellSize float64
}

// NewRecorder creates an empty recorder for the given grid cell size.
func NewRecorder(cellSize float64) *Recorder {
	return &Recorder{cellSize: cellSize}
}

// RecordMove appends the leader's move to the path. When the path is
// empty it is seeded with old so followers can walk back to the
// leader's starting cell. Interpolated waypoints are prepended so the
// newest position stays at index 0.
func (r *Recorder) RecordMove(old, new core.Position) error {
	points, err := grid.Interpolate(old, new, r.cellSize)
	if err != nil {
		return fmt.Errorf("record move: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.points) == 0 {
		r.points = append(r.points, old)
	}

	for _, p := range points {
		if r.points[0].GridKey == p.GridKey {
			continue
		}
		r.points = append([]core.Position{p}, r.points...)
	}
	return nil
}

// Trim truncates the path to keepUpToIndex+1 entries, discarding
// history no follower needs anymore. An out-of-range index is a
// playback-engine bug; it panics rather than being silently clamped.
func (r *Recorder) Trim(keepUpToIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if keepUpToIndex < 0 || keepUpToIndex >= len(r.points) {
		panic(fmt.Sprintf("path: trim index %d out of range for path length %d",
			keepUpToIndex, len(r.points)))
	}
	r.points = r.points[:keepUpToIndex+1]
}

// Clear empties the path. Called on mode disable, leader change, or a
// forced marching-order recompute.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = nil
}

// Len returns the current path length.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points)
}

// At returns the position at index i (0 = newest).
func (r *Recorder) At(i int) core.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points[i]
}

// Snapshot returns a copy of the path, newest-first.
func (r *Recorder) Snapshot() []core.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Position, len(r.points))
	copy(out, r.points)
	return out
}
