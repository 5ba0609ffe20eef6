// Package spatialgrid implements a uniform, axis aligned voxel index over a
// bounded region of space.
package spatialgrid

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/raycloud/spatialmath"
	"go.viam.com/raycloud/utils"
)

// MaxCells bounds the number of voxels a single layout may address.
const MaxCells = 1 << 31

// Key addresses a voxel by its integer coordinates along x, y and z.
type Key struct {
	X, Y, Z int
}

// Add returns the component-wise sum of two keys.
func (k Key) Add(o Key) Key {
	return Key{k.X + o.X, k.Y + o.Y, k.Z + o.Z}
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d,%d)", k.X, k.Y, k.Z)
}

// Layout maps between space, voxel keys and linear cell indices. Voxel (0,0,0)
// starts at Min and x varies fastest in the linear order.
type Layout struct {
	Min   r3.Vector
	Width float64
	Dims  [3]int
}

// NewLayout sizes a layout to cover bounds with voxels of side width. Each axis
// has ceil(extent/width) voxels, and at least one.
func NewLayout(bounds spatialmath.Cuboid, width float64) (Layout, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return Layout{}, errors.Errorf("invalid voxel width (%v) for grid", width)
	}
	if bounds.IsEmpty() {
		return Layout{}, errors.New("cannot build a grid over empty bounds")
	}
	ext := bounds.Extent()
	var dims [3]int
	for i, e := range []float64{ext.X, ext.Y, ext.Z} {
		n := math.Ceil(e / width)
		if math.IsNaN(n) || n > MaxCells {
			return Layout{}, errors.Errorf("grid axis %d would need %v voxels", i, n)
		}
		dims[i] = utils.MaxInt(1, int(n))
	}
	return NewLayoutWithDims(bounds.Min, width, dims)
}

// NewLayoutWithDims returns a layout with explicit dimensions.
func NewLayoutWithDims(minBound r3.Vector, width float64, dims [3]int) (Layout, error) {
	if !(width > 0) {
		return Layout{}, errors.Errorf("invalid voxel width (%v) for grid", width)
	}
	total := 1
	for i, d := range dims {
		if d <= 0 {
			return Layout{}, errors.Errorf("grid axis %d has non-positive size %d", i, d)
		}
		if total > MaxCells/d {
			return Layout{}, errors.Errorf("grid of %v voxels is too large", dims)
		}
		total *= d
	}
	return Layout{Min: minBound, Width: width, Dims: dims}, nil
}

// NumCells is the total number of voxels.
func (l Layout) NumCells() int {
	return l.Dims[0] * l.Dims[1] * l.Dims[2]
}

// Bounds is the region covered by the voxels, which may extend past the bounds
// the layout was built from.
func (l Layout) Bounds() spatialmath.Cuboid {
	ext := r3.Vector{X: float64(l.Dims[0]), Y: float64(l.Dims[1]), Z: float64(l.Dims[2])}.Mul(l.Width)
	return spatialmath.Cuboid{Min: l.Min, Max: l.Min.Add(ext)}
}

// Contains reports whether k addresses a voxel of the layout.
func (l Layout) Contains(k Key) bool {
	return k.X >= 0 && k.X < l.Dims[0] &&
		k.Y >= 0 && k.Y < l.Dims[1] &&
		k.Z >= 0 && k.Z < l.Dims[2]
}

// Index converts a key to a linear cell index. The key must be in range.
func (l Layout) Index(k Key) int {
	if !l.Contains(k) {
		panic(errors.Wrapf(ErrOutOfRange, "key %v for dims %v", k, l.Dims))
	}
	return k.X + l.Dims[0]*(k.Y+l.Dims[1]*k.Z)
}

// KeyAt is the inverse of Index.
func (l Layout) KeyAt(index int) Key {
	x := index % l.Dims[0]
	index /= l.Dims[0]
	return Key{X: x, Y: index % l.Dims[1], Z: index / l.Dims[1]}
}

// KeyOf returns the key of the voxel containing p, which may be out of range.
func (l Layout) KeyOf(p r3.Vector) Key {
	rel := p.Sub(l.Min).Mul(1 / l.Width)
	return Key{X: floorInt(rel.X), Y: floorInt(rel.Y), Z: floorInt(rel.Z)}
}

// ClampKey moves k onto the nearest voxel of the layout.
func (l Layout) ClampKey(k Key) Key {
	return Key{
		X: utils.Clamp(k.X, 0, l.Dims[0]-1),
		Y: utils.Clamp(k.Y, 0, l.Dims[1]-1),
		Z: utils.Clamp(k.Z, 0, l.Dims[2]-1),
	}
}

// CellBounds returns the box of voxel k.
func (l Layout) CellBounds(k Key) spatialmath.Cuboid {
	lo := l.Min.Add(r3.Vector{X: float64(k.X), Y: float64(k.Y), Z: float64(k.Z)}.Mul(l.Width))
	return spatialmath.Cuboid{Min: lo, Max: lo.Add(r3.Vector{X: l.Width, Y: l.Width, Z: l.Width})}
}

// CellCenter returns the midpoint of voxel k.
func (l Layout) CellCenter(k Key) r3.Vector {
	return l.CellBounds(k).Center()
}

// KeyRange returns the clamped, inclusive key range overlapped by the box lo-hi.
// It returns false when the box misses the layout entirely.
func (l Layout) KeyRange(lo, hi r3.Vector) (Key, Key, bool) {
	a, b := l.KeyOf(lo), l.KeyOf(hi)
	if b.X < 0 || b.Y < 0 || b.Z < 0 || a.X >= l.Dims[0] || a.Y >= l.Dims[1] || a.Z >= l.Dims[2] {
		return Key{}, Key{}, false
	}
	return l.ClampKey(a), l.ClampKey(b), true
}

func floorInt(v float64) int {
	f := math.Floor(v)
	switch {
	case f < math.MinInt32:
		return math.MinInt32
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}
