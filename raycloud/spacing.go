package raycloud

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/raycloud/spatialmath"
)

// DefaultSpacingExponent models points as spread over a surface.
const DefaultSpacingExponent = 2.0

// initialWidthScale inflates the first voxel width estimate; the rescaling
// pass only converges from an over-estimate.
const initialWidthScale = 5.0

// SpacingOptions configures point spacing estimation.
type SpacingOptions struct {
	// Exponent models the number of points as (cloud width / spacing)^Exponent.
	// Values towards 2.5 suit thick vegetation, 2.0 suits terrain and surfaces.
	Exponent float64
	// ChunkSize applies to the streamed estimate.
	ChunkSize int
}

func (o SpacingOptions) exponent() float64 {
	if o.Exponent > 0 {
		return o.Exponent
	}
	return DefaultSpacingExponent
}

// EstimatePointSpacing estimates the typical distance between neighbouring
// bounded ray ends.
func (c *Cloud) EstimatePointSpacing(opts SpacingOptions, logger golog.Logger) (float64, error) {
	bounds, ok := c.CalcBounds(BoundEnds, nil)
	if !ok {
		return 0, ErrEmptyCloud
	}
	numPoints := 0
	for i := range c.ends {
		if c.Bounded(i) {
			numPoints++
		}
	}
	width, err := initialSpacingWidth(bounds, numPoints, opts.exponent(), logger)
	if err != nil {
		return 0, err
	}
	occupied := mapset.NewThreadUnsafeSet[VoxelCoords]()
	for i := range c.ends {
		if c.Bounded(i) {
			occupied.Add(VoxelCoordsOf(c.ends[i], width))
		}
	}
	return rescaleSpacing(width, numPoints, occupied.Cardinality(), opts.exponent(), logger), nil
}

// EstimatePointSpacingFromSource is EstimatePointSpacing over a stream whose
// end bounds and bounded ray count are already known, such as from ReadInfo.
func EstimatePointSpacingFromSource(
	src Source,
	bounds spatialmath.Cuboid,
	numPoints int,
	opts SpacingOptions,
	logger golog.Logger,
) (float64, error) {
	if numPoints <= 0 || bounds.IsEmpty() {
		return 0, ErrEmptyCloud
	}
	width, err := initialSpacingWidth(bounds, numPoints, opts.exponent(), logger)
	if err != nil {
		return 0, err
	}
	occupied := mapset.NewThreadUnsafeSet[VoxelCoords]()
	err = ForEachChunk(src, opts.ChunkSize, func(ch *Chunk) error {
		for i := 0; i < ch.Len(); i++ {
			if ch.Bounded(i) {
				occupied.Add(VoxelCoordsOf(ch.Ends[i], width))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if occupied.Cardinality() == 0 {
		return 0, ErrEmptyCloud
	}
	return rescaleSpacing(width, numPoints, occupied.Cardinality(), opts.exponent(), logger), nil
}

// initialSpacingWidth is the first pass: a deliberately large voxel width from
// the cloud's mean width and point count. Flat axes are left out of the mean
// so planar and linear clouds still get a usable width.
func initialSpacingWidth(bounds spatialmath.Cuboid, numPoints int, exponent float64, logger golog.Logger) (float64, error) {
	ext := bounds.Extent()
	product, axes := 1.0, 0
	for _, e := range []float64{ext.X, ext.Y, ext.Z} {
		if e > 0 {
			product *= e
			axes++
		}
	}
	if axes == 0 {
		return 0, errors.New("cannot estimate point spacing: every bounded ray ends at the same point")
	}
	cloudWidth := math.Pow(product, 1/float64(axes))
	width := initialWidthScale * cloudWidth / math.Pow(float64(numPoints), 1/exponent)
	logger.Debugw("initial voxel width estimate", "width", width)
	return width, nil
}

// rescaleSpacing is the second pass: shrink the width until the measured points
// per voxel match the exponent model.
func rescaleSpacing(width float64, numPoints, numVoxels int, exponent float64, logger golog.Logger) float64 {
	pointsPerVoxel := float64(numPoints) / float64(numVoxels)
	spacing := width / math.Pow(pointsPerVoxel, 1/exponent)
	logger.Debugw("estimated point spacing", "spacing", spacing)
	return spacing
}
