package density

import (
	"github.com/edaniels/golog"

	"go.viam.com/raycloud/spatialgrid"
)

// DefaultMinRays is the evidence a voxel needs before it stops borrowing from
// its neighbours. Larger is more accurate but blurrier.
const DefaultMinRays = 10

// PriorStats summarises a neighbour prior pass.
type PriorStats struct {
	// HitVoxels counts interior voxels with at least one hit.
	HitVoxels int
	// Unsatisfied counts hit voxels still short of the minimum after borrowing
	// from all 26 neighbours.
	Unsatisfied int
}

// UnsatisfiedFraction is Unsatisfied over HitVoxels, 0 when nothing was hit.
func (s PriorStats) UnsatisfiedFraction() float64 {
	if s.HitVoxels == 0 {
		return 0
	}
	return float64(s.Unsatisfied) / float64(s.HitVoxels)
}

// AddNeighbourPriors tops up every interior voxel with fewer than minRays rays
// using the evidence of its face, then edge, then corner neighbours, stopping
// at the first shell that reaches minRays. That shell is scaled so the voxel
// ends at exactly minRays. Neighbours are read as they were before the pass.
// A minRays of zero or less borrows nothing.
func (v *Volume) AddNeighbourPriors(minRays float32, logger golog.Logger) PriorStats {
	snapshot := make([]Voxel, len(v.voxels))
	copy(snapshot, v.voxels)
	shells := spatialgrid.NeighbourShells()

	var stats PriorStats
	for z := 1; z < v.Dims[2]-1; z++ {
		for y := 1; y < v.Dims[1]-1; y++ {
			for x := 1; x < v.Dims[0]-1; x++ {
				k := spatialgrid.Key{X: x, Y: y, Z: z}
				idx := v.Index(k)
				centre := snapshot[idx]
				if centre.NumHits() > 0 {
					stats.HitVoxels++
				}
				needed := minRays - centre.NumRays()
				if needed <= 0 {
					continue
				}
				satisfied := false
				for _, shell := range shells {
					var borrowed Voxel
					for _, offset := range shell {
						borrowed.Add(snapshot[v.Index(k.Add(offset))])
					}
					if borrowed.NumRays() >= needed {
						v.voxels[idx].AddScaled(borrowed, needed/borrowed.NumRays())
						satisfied = true
						break
					}
					v.voxels[idx].Add(borrowed)
					needed -= borrowed.NumRays()
				}
				if !satisfied && centre.NumHits() > 0 {
					stats.Unsatisfied++
				}
			}
		}
	}

	unsatisfiedVoxels.Set(float64(stats.Unsatisfied))
	fraction := stats.UnsatisfiedFraction()
	logger.Infow("added neighbour priors", "min_rays", minRays, "hit_voxels", stats.HitVoxels, "unsatisfied_fraction", fraction)
	switch {
	case fraction > 0.5:
		logger.Warnw("most hit voxels have too few rays; consider a larger voxel width, a denser cloud or fewer minimum rays",
			"unsatisfied_fraction", fraction)
	case stats.HitVoxels > 0 && fraction < 0.01:
		logger.Infow("few hit voxels lack rays; a smaller voxel width or more minimum rays would give more detail",
			"unsatisfied_fraction", fraction)
	}
	return stats
}
