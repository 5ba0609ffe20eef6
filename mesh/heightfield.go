package mesh

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/raycloud/spatialgrid"
	"go.viam.com/raycloud/spatialmath"
)

// ErrUnresolvedCells is returned alongside a height field that still has cells
// with no height after gap filling. Those cells have no resolved neighbour at
// all, so they belong to a region the mesh never covers.
var ErrUnresolvedCells = errors.New("height field has unresolved cells")

// HeightMode picks which surface a column reports when it crosses several.
type HeightMode int

const (
	// HighestSurface takes the top-most crossing.
	HighestSurface HeightMode = iota
	// LowestSurface takes the bottom-most crossing.
	LowestSurface
)

// ParseHeightMode converts "highest" or "lowest" to a HeightMode.
func ParseHeightMode(name string) (HeightMode, error) {
	switch name {
	case "highest":
		return HighestSurface, nil
	case "lowest":
		return LowestSurface, nil
	}
	return 0, errors.Errorf("unknown height mode %q", name)
}

// HeightField is a grid of surface heights, one per horizontal cell. The layout
// is one voxel high; cell (x, y) is addressed by Key{X: x, Y: y}.
type HeightField struct {
	spatialgrid.Layout
	// Heights holds one height per cell in layout index order, NaN where unresolved.
	Heights    []float64
	Unresolved []spatialgrid.Key
}

// At returns the height of cell (x, y), NaN if it is unresolved.
func (h *HeightField) At(x, y int) float64 {
	return h.Heights[h.Index(spatialgrid.Key{X: x, Y: y})]
}

// ToHeightField samples the mesh surface under the centre of every cell of the
// box footprint by casting from the top of box to its bottom. Cells no triangle
// covers are filled from the mean of their resolved Moore neighbours, pass by
// pass, until a pass resolves nothing. If cells remain, the field is returned
// with ErrUnresolvedCells.
func (c *Classifier) ToHeightField(box spatialmath.Cuboid, width float64, mode HeightMode) (*HeightField, error) {
	footprint := spatialmath.Cuboid{Min: box.Min, Max: r3.Vector{X: box.Max.X, Y: box.Max.Y, Z: box.Min.Z}}
	grid, err := spatialgrid.New[int](footprint, width)
	if err != nil {
		return nil, errors.Wrap(err, "building height field grid")
	}
	for i, tri := range c.triangles {
		b := tri.Bounds()
		grid.InsertBox(
			r3.Vector{X: b.Min.X, Y: b.Min.Y, Z: box.Min.Z},
			r3.Vector{X: b.Max.X, Y: b.Max.Y, Z: box.Min.Z},
			i,
		)
	}

	field := &HeightField{Layout: grid.Layout, Heights: make([]float64, grid.NumCells())}
	c.progress.Reset("heightField", uint64(grid.NumCells()))
	for i := range field.Heights {
		c.progress.Increment()
		k := grid.KeyAt(i)
		center := grid.CellCenter(k)
		top := r3.Vector{X: center.X, Y: center.Y, Z: box.Max.Z}
		base := r3.Vector{X: center.X, Y: center.Y, Z: box.Min.Z}
		field.Heights[i] = surfaceHeight(c.triangles, grid.Cell(k), top, base, mode)
	}

	fillGaps(field)
	if len(field.Unresolved) > 0 {
		c.logger.Warnw("height field cells could not be filled", "unresolved", len(field.Unresolved), "cells", len(field.Heights))
		return field, errors.Wrapf(ErrUnresolvedCells, "%d of %d cells", len(field.Unresolved), len(field.Heights))
	}
	return field, nil
}

func surfaceHeight(tris []*spatialmath.Triangle, bucket []int, top, base r3.Vector, mode HeightMode) float64 {
	height := math.NaN()
	for _, ti := range bucket {
		depth, ok := tris[ti].IntersectsSegment(top, base)
		if !ok {
			continue
		}
		h := top.Z + (base.Z-top.Z)*depth
		switch {
		case math.IsNaN(height):
			height = h
		case mode == LowestSurface:
			height = math.Min(height, h)
		default:
			height = math.Max(height, h)
		}
	}
	return height
}

// fillGaps resolves NaN cells from a snapshot of the previous pass so the
// result does not depend on visiting order.
func fillGaps(field *HeightField) {
	snapshot := make([]float64, len(field.Heights))
	for {
		copy(snapshot, field.Heights)
		progressed := false
		for i, h := range snapshot {
			if !math.IsNaN(h) {
				continue
			}
			k := field.KeyAt(i)
			total, count := 0.0, 0
			for x := k.X - 1; x <= k.X+1; x++ {
				for y := k.Y - 1; y <= k.Y+1; y++ {
					n := spatialgrid.Key{X: x, Y: y}
					if !field.Contains(n) {
						continue
					}
					if v := snapshot[field.Index(n)]; !math.IsNaN(v) {
						total += v
						count++
					}
				}
			}
			if count > 0 {
				field.Heights[i] = total / float64(count)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	field.Unresolved = field.Unresolved[:0]
	for i, h := range field.Heights {
		if math.IsNaN(h) {
			field.Unresolved = append(field.Unresolved, field.KeyAt(i))
		}
	}
}
