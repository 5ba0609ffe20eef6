package density

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/raycloud/raycloud"
	"go.viam.com/raycloud/spatialgrid"
	"go.viam.com/raycloud/spatialmath"
)

// Volume is a grid of voxels accumulating ray evidence.
type Volume struct {
	spatialgrid.Layout
	// Margin is the number of padding voxels on each side of the bounds the
	// volume was sized for.
	Margin int
	voxels []Voxel
}

// NewVolume returns an empty volume with voxel (0,0,0) at the minimum of bounds.
func NewVolume(bounds spatialmath.Cuboid, width float64, dims [3]int) (*Volume, error) {
	if bounds.IsEmpty() {
		return nil, errors.New("cannot build a density volume over empty bounds")
	}
	layout, err := spatialgrid.NewLayoutWithDims(bounds.Min, width, dims)
	if err != nil {
		return nil, err
	}
	return &Volume{Layout: layout, voxels: make([]Voxel, layout.NumCells())}, nil
}

// NewVolumeForBounds sizes a volume to hold floor(extent/width)+1 voxels per
// axis over bounds. With withPriorMargin it adds one voxel on every side so
// that neighbour priors reach the voxels on the edge of bounds.
func NewVolumeForBounds(bounds spatialmath.Cuboid, width float64, withPriorMargin bool) (*Volume, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, errors.Errorf("invalid voxel width (%v) for density volume", width)
	}
	if bounds.IsEmpty() {
		return nil, errors.New("cannot build a density volume over empty bounds")
	}
	margin := 0
	if withPriorMargin {
		margin = 1
	}
	ext := bounds.Extent()
	var dims [3]int
	for i, e := range []float64{ext.X, ext.Y, ext.Z} {
		n := math.Floor(e/width) + 1 + 2*float64(margin)
		if n > spatialgrid.MaxCells {
			return nil, errors.Errorf("density volume axis %d would need %v voxels", i, n)
		}
		dims[i] = int(n)
	}
	pad := float64(margin) * width
	layout, err := spatialgrid.NewLayoutWithDims(bounds.Min.Sub(r3.Vector{X: pad, Y: pad, Z: pad}), width, dims)
	if err != nil {
		return nil, err
	}
	return &Volume{Layout: layout, Margin: margin, voxels: make([]Voxel, layout.NumCells())}, nil
}

// Voxels returns the voxels in layout index order.
func (v *Volume) Voxels() []Voxel {
	return v.voxels
}

// Voxel returns voxel k. It panics if k is out of range.
func (v *Volume) Voxel(k spatialgrid.Key) Voxel {
	return v.voxels[v.Index(k)]
}

// Reset clears all accumulated evidence.
func (v *Volume) Reset() {
	for i := range v.voxels {
		v.voxels[i] = Voxel{}
	}
}

// CalculateDensities walks every ray of src through the volume. Each voxel the
// ray crosses records a miss over the length of ray inside it. A bounded ray
// whose end lies inside the volume instead records a hit in its final voxel,
// over the length from entering that voxel to the end. On error all evidence
// is discarded.
func (v *Volume) CalculateDensities(src raycloud.Source, chunkSize int) error {
	err := raycloud.ForEachChunk(src, chunkSize, func(ch *raycloud.Chunk) error {
		for i := 0; i < ch.Len(); i++ {
			v.addRay(ch.Starts[i], ch.Ends[i], ch.Bounded(i))
		}
		return nil
	})
	if err != nil {
		v.Reset()
		return errors.Wrap(err, "calculating densities")
	}
	return nil
}

const faceEpsilon = 1e-9

// addRay is an Amanatides-Woo traversal of the part of start-end inside the volume.
func (v *Volume) addRay(start, end r3.Vector, bounded bool) {
	bounds := v.Bounds()
	t0, t1, ok := bounds.ClipSegment(start, end)
	if !ok {
		return
	}
	dir := end.Sub(start)
	from := start.Add(dir.Mul(t0))
	to := start.Add(dir.Mul(t1))
	length := to.Sub(from).Norm()
	if length == 0 {
		return
	}
	unit := to.Sub(from).Mul(1 / length)
	hit := bounded && bounds.Contains(end)

	key := v.ClampKey(v.KeyOf(from))
	cur := [3]int{key.X, key.Y, key.Z}
	var step [3]int
	var tMax, tDelta [3]float64
	for axis := 0; axis < 3; axis++ {
		d := spatialmath.Component(unit, axis)
		p := spatialmath.Component(from, axis) - spatialmath.Component(v.Min, axis)
		switch {
		case d > 0:
			step[axis] = 1
			tMax[axis] = (float64(cur[axis]+1)*v.Width - p) / d
			tDelta[axis] = v.Width / d
		case d < 0:
			step[axis] = -1
			tMax[axis] = (float64(cur[axis])*v.Width - p) / d
			tDelta[axis] = -v.Width / d
		default:
			tMax[axis] = math.Inf(1)
			tDelta[axis] = math.Inf(1)
		}
	}

	// ends on a face round to just short of the face
	eps := faceEpsilon * math.Max(v.Width, length)
	entered := 0.0
	for {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		idx := v.Index(spatialgrid.Key{X: cur[0], Y: cur[1], Z: cur[2]})
		next := cur[axis] + step[axis]
		if tMax[axis] >= length-eps || next < 0 || next >= v.Dims[axis] {
			if hit {
				v.voxels[idx].AddHit(float32(length - entered))
			} else {
				v.voxels[idx].AddMiss(float32(length - entered))
			}
			return
		}
		// a ray starting on a voxel face leaves that voxel without crossing it
		if exit := tMax[axis]; exit > entered {
			v.voxels[idx].AddMiss(float32(exit - entered))
			entered = exit
		}
		cur[axis] = next
		tMax[axis] += tDelta[axis]
	}
}
