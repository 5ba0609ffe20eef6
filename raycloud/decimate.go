package raycloud

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// VoxelCoords addresses a cubic voxel of some width by the floor of a point's
// coordinates divided by that width.
type VoxelCoords struct {
	I, J, K int64
}

// VoxelCoordsOf returns the voxel of side width containing p.
func VoxelCoordsOf(p r3.Vector, width float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor(p.X / width)),
		J: int64(math.Floor(p.Y / width)),
		K: int64(math.Floor(p.Z / width)),
	}
}

func checkVoxelWidth(width float64) error {
	if !(width > 0) || math.IsInf(width, 0) {
		return errors.Errorf("invalid voxel width (%v) for decimation", width)
	}
	return nil
}

// Decimate keeps the first ray, in index order, whose end falls in each voxel of
// side width. The returned set holds the occupied voxels.
func (c *Cloud) Decimate(width float64) (mapset.Set[VoxelCoords], error) {
	set := mapset.NewThreadUnsafeSet[VoxelCoords]()
	if err := c.DecimateWithSet(width, set); err != nil {
		return nil, err
	}
	return set, nil
}

// DecimateWithSet is Decimate against an existing voxel set: rays ending in a
// voxel already in set are dropped too, and newly kept voxels are added to it.
// This lets several clouds share one partition.
func (c *Cloud) DecimateWithSet(width float64, set mapset.Set[VoxelCoords]) error {
	if err := checkVoxelWidth(width); err != nil {
		return err
	}
	c.compact(func(i int) bool {
		return set.Add(VoxelCoordsOf(c.ends[i], width))
	})
	return nil
}

// DecimateStream writes to dst the first ray of src ending in each voxel, then
// closes dst. Memory grows with the number of occupied voxels, not rays.
func DecimateStream(src Source, dst Writer, width float64, chunkSize int) (err error) {
	defer func() {
		err = multierr.Combine(err, dst.Close())
	}()
	if err := checkVoxelWidth(width); err != nil {
		return err
	}
	set := mapset.NewThreadUnsafeSet[VoxelCoords]()
	kept := NewChunk(0)
	return ForEachChunk(src, chunkSize, func(ch *Chunk) error {
		kept.Reset()
		for i := 0; i < ch.Len(); i++ {
			if set.Add(VoxelCoordsOf(ch.Ends[i], width)) {
				kept.Append(ch.Ray(i))
			}
		}
		if kept.Len() == 0 {
			return nil
		}
		return dst.WriteChunk(kept)
	})
}
