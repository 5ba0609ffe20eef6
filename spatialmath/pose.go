package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a rotation followed by a translation.
type Pose struct {
	Translation r3.Vector
	Rotation    quat.Number
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given translation and rotation. The rotation is normalized.
func NewPose(translation r3.Vector, rotation quat.Number) Pose {
	norm := quat.Abs(rotation)
	if norm == 0 {
		rotation = quat.Number{Real: 1}
	} else {
		rotation = quat.Scale(1/norm, rotation)
	}
	return Pose{Translation: translation, Rotation: rotation}
}

// NewPoseFromAxisAngle returns a pose rotating by theta radians about axis, then translating.
func NewPoseFromAxisAngle(translation, axis r3.Vector, theta float64) Pose {
	axis = axis.Normalize()
	s := math.Sin(theta / 2)
	return NewPose(translation, quat.Number{
		Real: math.Cos(theta / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	})
}

// Rotate applies only the rotational part of the pose.
func (p Pose) Rotate(v r3.Vector) r3.Vector {
	q := quat.Mul(quat.Mul(p.Rotation, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(p.Rotation))
	return r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// Transform maps a point through the pose.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return p.Rotate(v).Add(p.Translation)
}

// Compose returns the pose that applies b, then a.
func Compose(a, b Pose) Pose {
	return NewPose(a.Transform(b.Translation), quat.Mul(a.Rotation, b.Rotation))
}

// Inverse returns the pose undoing p.
func (p Pose) Inverse() Pose {
	inv := Pose{Rotation: quat.Conj(p.Rotation)}
	inv.Translation = inv.Rotate(p.Translation).Mul(-1)
	return inv
}
