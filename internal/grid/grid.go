// Package grid discretizes continuous scene positions into grid cells and
// interpolates grid-step waypoints between positions. All functions are
// pure; invalid input fails with core.ErrInvalidPosition.
package grid

import (
	"fmt"
	"math"

	"github.com/marchline/extension/pkg/core"

	geom "github.com/peterstace/simplefeatures/geom"
)

// CellKey returns the canonical key of the grid cell containing p,
// rounding each axis to the nearest multiple of cellSize.
func CellKey(x, y, cellSize float64) (string, error) {
	if cellSize <= 0 || !isFinite(cellSize) {
		return "", fmt.Errorf("cell size %v: %w", cellSize, core.ErrInvalidPosition)
	}
	if !isFinite(x) || !isFinite(y) {
		return "", fmt.Errorf("coordinates (%v,%v): %w", x, y, core.ErrInvalidPosition)
	}
	cx := math.Round(x/cellSize) * cellSize
	cy := math.Round(y/cellSize) * cellSize
	return fmt.Sprintf("%g:%g", cx, cy), nil
}

// Snap builds a core.Position for (x, y) with its GridKey populated.
func Snap(x, y, cellSize float64) (core.Position, error) {
	key, err := CellKey(x, y, cellSize)
	if err != nil {
		return core.Position{}, err
	}
	return core.Position{X: x, Y: y, GridKey: key}, nil
}

// Chebyshev returns the chessboard distance between two positions.
func Chebyshev(a, b core.Position) float64 {
	return math.Max(math.Abs(a.X-b.X), math.Abs(a.Y-b.Y))
}

// Euclidean returns the straight-line distance between two positions.
func Euclidean(a, b core.Position) float64 {
	d := geom.XY{X: a.X, Y: a.Y}.Sub(geom.XY{X: b.X, Y: b.Y})
	return d.Length()
}

// Interpolate produces the grid-step waypoints from start to end,
// exclusive of start and inclusive of end. The step count is
// max(1, floor(chebyshev/cellSize)); consecutive points that land in
// the same cell as the previously emitted point are skipped. The final
// emitted point always carries end's exact coordinates.
func Interpolate(start, end core.Position, cellSize float64) ([]core.Position, error) {
	if cellSize <= 0 || !isFinite(cellSize) {
		return nil, fmt.Errorf("cell size %v: %w", cellSize, core.ErrInvalidPosition)
	}
	if !isFinite(start.X) || !isFinite(start.Y) || !isFinite(end.X) || !isFinite(end.Y) {
		return nil, fmt.Errorf("interpolate (%v,%v)->(%v,%v): %w",
			start.X, start.Y, end.X, end.Y, core.ErrInvalidPosition)
	}

	steps := int(math.Floor(Chebyshev(start, end) / cellSize))
	if steps < 1 {
		steps = 1
	}

	a := geom.XY{X: start.X, Y: start.Y}
	delta := geom.XY{X: end.X, Y: end.Y}.Sub(a)

	points := make([]core.Position, 0, steps)
	prevKey := start.GridKey
	for i := 1; i <= steps; i++ {
		p := a.Add(delta.Scale(float64(i) / float64(steps)))
		if i == steps {
			// Avoid float drift on the endpoint.
			p = geom.XY{X: end.X, Y: end.Y}
		}
		key, err := CellKey(p.X, p.Y, cellSize)
		if err != nil {
			return nil, err
		}
		if key == prevKey {
			continue
		}
		points = append(points, core.Position{X: p.X, Y: p.Y, GridKey: key})
		prevKey = key
	}

	// Degenerate move inside one cell: still emit the endpoint so the
	// recorder sees where the leader stopped.
	if len(points) == 0 {
		key, err := CellKey(end.X, end.Y, cellSize)
		if err != nil {
			return nil, err
		}
		points = append(points, core.Position{X: end.X, Y: end.Y, GridKey: key})
	}

	return points, nil
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
