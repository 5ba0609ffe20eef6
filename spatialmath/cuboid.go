package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Cuboid is an axis aligned box. The empty cuboid has Min at +Inf and Max at -Inf
// so that expanding it by any point yields that point.
type Cuboid struct {
	Min r3.Vector
	Max r3.Vector
}

// NewEmptyCuboid returns the empty sentinel cuboid.
func NewEmptyCuboid() Cuboid {
	inf := math.Inf(1)
	return Cuboid{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// NewCuboid returns the smallest cuboid containing both corners.
func NewCuboid(a, b r3.Vector) Cuboid {
	return Cuboid{Min: MinVector(a, b), Max: MaxVector(a, b)}
}

// IsEmpty reports whether the cuboid contains no points.
func (c Cuboid) IsEmpty() bool {
	return c.Min.X > c.Max.X || c.Min.Y > c.Max.Y || c.Min.Z > c.Max.Z
}

// Expand returns the cuboid grown to include p.
func (c Cuboid) Expand(p r3.Vector) Cuboid {
	return Cuboid{Min: MinVector(c.Min, p), Max: MaxVector(c.Max, p)}
}

// Union returns the smallest cuboid containing both c and o.
func (c Cuboid) Union(o Cuboid) Cuboid {
	if o.IsEmpty() {
		return c
	}
	return Cuboid{Min: MinVector(c.Min, o.Min), Max: MaxVector(c.Max, o.Max)}
}

// Grow pads every face of the cuboid by d.
func (c Cuboid) Grow(d float64) Cuboid {
	pad := r3.Vector{X: d, Y: d, Z: d}
	return Cuboid{Min: c.Min.Sub(pad), Max: c.Max.Add(pad)}
}

// Extent is the side lengths of the cuboid.
func (c Cuboid) Extent() r3.Vector {
	if c.IsEmpty() {
		return r3.Vector{}
	}
	return c.Max.Sub(c.Min)
}

// Center returns the midpoint of the cuboid.
func (c Cuboid) Center() r3.Vector {
	return c.Min.Add(c.Max).Mul(0.5)
}

// Volume returns the product of the side lengths.
func (c Cuboid) Volume() float64 {
	e := c.Extent()
	return e.X * e.Y * e.Z
}

// Contains reports whether p lies in the closed cuboid.
func (c Cuboid) Contains(p r3.Vector) bool {
	return p.X >= c.Min.X && p.X <= c.Max.X &&
		p.Y >= c.Min.Y && p.Y <= c.Max.Y &&
		p.Z >= c.Min.Z && p.Z <= c.Max.Z
}

// Overlaps reports whether the two closed cuboids share any point.
func (c Cuboid) Overlaps(o Cuboid) bool {
	return c.Min.X <= o.Max.X && c.Max.X >= o.Min.X &&
		c.Min.Y <= o.Max.Y && c.Max.Y >= o.Min.Y &&
		c.Min.Z <= o.Max.Z && c.Max.Z >= o.Min.Z
}

// ClipSegment clips the segment start->end against the cuboid using slab
// intersection. It returns the parameters t0 <= t1 in [0, 1] of the part of the
// segment that is inside, and false when the segment misses the cuboid.
func (c Cuboid) ClipSegment(start, end r3.Vector) (float64, float64, bool) {
	if c.IsEmpty() {
		return 0, 0, false
	}
	dir := end.Sub(start)
	t0, t1 := 0.0, 1.0
	s := [3]float64{start.X, start.Y, start.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{c.Min.X, c.Min.Y, c.Min.Z}
	hi := [3]float64{c.Max.X, c.Max.Y, c.Max.Z}
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if s[i] < lo[i] || s[i] > hi[i] {
				return 0, 0, false
			}
			continue
		}
		ta := (lo[i] - s[i]) / d[i]
		tb := (hi[i] - s[i]) / d[i]
		if ta > tb {
			ta, tb = tb, ta
		}
		t0 = math.Max(t0, ta)
		t1 = math.Min(t1, tb)
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}

func (c Cuboid) String() string {
	return fmt.Sprintf("[%v, %v]", c.Min, c.Max)
}

// MinVector returns the component-wise minimum.
func MinVector(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// MaxVector returns the component-wise maximum.
func MaxVector(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
