package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Triangle is three corners and a normal. The normal is unit length when built
// with NewTriangle and the raw edge cross product when built with NewRawTriangle.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle builds a triangle with a unit normal following the right hand rule.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// NewRawTriangle builds a triangle whose normal is the unnormalized cross product of its edges.
func NewRawTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: p1.Sub(p0).Cross(p2.Sub(p0)),
	}
}

// Points returns the corners in winding order.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Corner returns corner i modulo 3.
func (t *Triangle) Corner(i int) r3.Vector {
	switch i % 3 {
	case 0:
		return t.p0
	case 1:
		return t.p1
	default:
		return t.p2
	}
}

// Normal returns the triangle normal.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Area returns the area of the triangle.
func (t *Triangle) Area() float64 {
	return 0.5 * t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm()
}

// Centroid returns the mean of the corners.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// Bounds returns the axis aligned box of the corners.
func (t *Triangle) Bounds() Cuboid {
	return NewEmptyCuboid().Expand(t.p0).Expand(t.p1).Expand(t.p2)
}

// Transform returns a copy of the triangle moved by pose.
func (t *Triangle) Transform(pose Pose) *Triangle {
	return &Triangle{
		p0:     pose.Transform(t.p0),
		p1:     pose.Transform(t.p1),
		p2:     pose.Transform(t.p2),
		normal: pose.Rotate(t.normal),
	}
}

// IntersectsSegment tests the segment start->end against the triangle. It
// returns the fraction along the segment at which the plane is crossed.
//
// A contact lying exactly on an edge is claimed only by the triangle whose
// edge runs in the lexicographically positive direction, so a closed mesh
// counts a crossing through a shared edge once.
func (t *Triangle) IntersectsSegment(start, end r3.Vector) (float64, bool) {
	d1 := start.Sub(t.p0).Dot(t.normal)
	d2 := end.Sub(t.p0).Dot(t.normal)
	if d1*d2 > 0 || d1 == d2 {
		return 0, false
	}
	depth := d1 / (d1 - d2)
	contact := start.Add(end.Sub(start).Mul(depth))

	corners := [3]r3.Vector{t.p0, t.p1, t.p2}
	for i := 0; i < 3; i++ {
		edge := corners[(i+1)%3].Sub(corners[i])
		side := edge.Cross(t.normal)
		s := contact.Sub(corners[i]).Dot(side)
		if s > 0 || (s == 0 && !lexicographicallyPositive(edge)) {
			return 0, false
		}
	}
	return depth, true
}

// DistSqrToPoint returns the squared distance from pt to the closest point of the triangle.
func (t *Triangle) DistSqrToPoint(pt r3.Vector) float64 {
	return pt.Sub(t.ClosestPointToPoint(pt)).Norm2()
}

// ClosestPointToCoplanarPoint takes a point, and returns the closest point on the triangle to the given point
// The given point *MUST* be coplanar with the triangle. If it is known ahead of time that the point is coplanar, this is faster.
func (t *Triangle) ClosestPointToCoplanarPoint(pt r3.Vector) r3.Vector {
	c0 := pt.Sub(t.p0).Cross(t.p1.Sub(t.p0))
	c1 := pt.Sub(t.p1).Cross(t.p2.Sub(t.p1))
	c2 := pt.Sub(t.p2).Cross(t.p0.Sub(t.p2))
	if c0.Dot(t.normal) <= 0 && c1.Dot(t.normal) <= 0 && c2.Dot(t.normal) <= 0 {
		return pt
	}
	return t.closestEdgePoint(pt)
}

// ClosestPointToPoint takes a point, and returns the closest point on the triangle to the given point.
func (t *Triangle) ClosestPointToPoint(point r3.Vector) r3.Vector {
	if closest, inside := t.ClosestInsidePoint(point); inside {
		return closest
	}
	// outside the prism over the triangle the closest point is on an edge
	return t.closestEdgePoint(point)
}

// ClosestInsidePoint returns the projection of point onto the triangle plane and
// whether that projection lies inside the triangle. Degenerate triangles report false.
func (t *Triangle) ClosestInsidePoint(point r3.Vector) (r3.Vector, bool) {
	eps := 1e-6

	// Q = p0 + u * e0 + v * e1 is inside when 0 <= u, 0 <= v and u + v <= 1.
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	d := point.Sub(t.p0)
	det := a*c - b*b
	if det == 0 {
		return point, false
	}
	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	inside := (0 <= u+eps) && (u <= 1+eps) && (0 <= v+eps) && (v <= 1+eps) && (u+v <= 1+eps)
	return t.p0.Add(e0.Mul(u)).Add(e1.Mul(v)), inside
}

func (t *Triangle) closestEdgePoint(pt r3.Vector) r3.Vector {
	closest := ClosestPointSegmentPoint(t.p0, t.p1, pt)
	best := pt.Sub(closest).Norm2()

	if p := ClosestPointSegmentPoint(t.p1, t.p2, pt); pt.Sub(p).Norm2() < best {
		closest = p
		best = pt.Sub(p).Norm2()
	}
	if p := ClosestPointSegmentPoint(t.p2, t.p0, pt); pt.Sub(p).Norm2() < best {
		return p
	}
	return closest
}

// PlaneNormal returns the unit normal of the plane through three points.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	return p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
}

// ClosestPointSegmentPoint returns the point of segment a-b closest to pt.
func ClosestPointSegmentPoint(a, b, pt r3.Vector) r3.Vector {
	ab := b.Sub(a)
	l2 := ab.Norm2()
	if l2 == 0 {
		return a
	}
	s := math.Max(0, math.Min(1, pt.Sub(a).Dot(ab)/l2))
	return a.Add(ab.Mul(s))
}

func lexicographicallyPositive(v r3.Vector) bool {
	if v.X != 0 {
		return v.X > 0
	}
	if v.Y != 0 {
		return v.Y > 0
	}
	return v.Z > 0
}
