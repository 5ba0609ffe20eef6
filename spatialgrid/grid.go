package spatialgrid

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/raycloud/spatialmath"
)

// ErrOutOfRange is raised when a key outside the grid is used to address a cell.
var ErrOutOfRange = errors.New("voxel key out of range")

// Grid buckets payloads by the voxels they overlap. A payload spanning several
// voxels is inserted into each of them. Grids are built once and then queried;
// there is no removal.
type Grid[T any] struct {
	Layout
	cells [][]T
}

// New returns an empty grid covering bounds with voxels of side width.
func New[T any](bounds spatialmath.Cuboid, width float64) (*Grid[T], error) {
	layout, err := NewLayout(bounds, width)
	if err != nil {
		return nil, err
	}
	return &Grid[T]{Layout: layout, cells: make([][]T, layout.NumCells())}, nil
}

// Insert appends payload to the bucket of voxel k. It panics if k is out of range.
func (g *Grid[T]) Insert(k Key, payload T) {
	i := g.Index(k)
	g.cells[i] = append(g.cells[i], payload)
}

// Cell returns the bucket of voxel k. It panics if k is out of range.
func (g *Grid[T]) Cell(k Key) []T {
	return g.cells[g.Index(k)]
}

// InsertBox inserts payload into every voxel overlapped by the box lo-hi,
// clamped to the grid. It returns the number of voxels written.
func (g *Grid[T]) InsertBox(lo, hi r3.Vector, payload T) int {
	a, b, ok := g.KeyRange(lo, hi)
	if !ok {
		return 0
	}
	n := 0
	for z := a.Z; z <= b.Z; z++ {
		for y := a.Y; y <= b.Y; y++ {
			for x := a.X; x <= b.X; x++ {
				g.Insert(Key{x, y, z}, payload)
				n++
			}
		}
	}
	return n
}

// ForEach visits every non-empty bucket in linear index order.
func (g *Grid[T]) ForEach(visit func(k Key, cell []T)) {
	for i, cell := range g.cells {
		if len(cell) > 0 {
			visit(g.KeyAt(i), cell)
		}
	}
}

// Occupied returns the number of non-empty buckets.
func (g *Grid[T]) Occupied() int {
	n := 0
	for _, cell := range g.cells {
		if len(cell) > 0 {
			n++
		}
	}
	return n
}
