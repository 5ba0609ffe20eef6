package raycloud

import (
	"math"

	"go.viam.com/raycloud/spatialmath"
)

// Info summarises a ray cloud without holding it in memory.
type Info struct {
	// Ends bounds the ends of bounded rays.
	Ends spatialmath.Cuboid
	// Starts bounds every ray start.
	Starts spatialmath.Cuboid
	// Rays bounds every start and end.
	Rays         spatialmath.Cuboid
	NumBounded   int
	NumUnbounded int
	MinTime      float64
	MaxTime      float64
}

// NumRays is the total ray count.
func (i Info) NumRays() int {
	return i.NumBounded + i.NumUnbounded
}

// ReadInfo streams src once and summarises it.
func ReadInfo(src Source, chunkSize int) (Info, error) {
	info := Info{
		Ends:    spatialmath.NewEmptyCuboid(),
		Starts:  spatialmath.NewEmptyCuboid(),
		Rays:    spatialmath.NewEmptyCuboid(),
		MinTime: math.Inf(1),
		MaxTime: math.Inf(-1),
	}
	err := ForEachChunk(src, chunkSize, func(ch *Chunk) error {
		for i := 0; i < ch.Len(); i++ {
			if ch.Bounded(i) {
				info.Ends = info.Ends.Expand(ch.Ends[i])
				info.NumBounded++
			} else {
				info.NumUnbounded++
			}
			info.Starts = info.Starts.Expand(ch.Starts[i])
			info.Rays = info.Rays.Expand(ch.Starts[i]).Expand(ch.Ends[i])
			info.MinTime = math.Min(info.MinTime, ch.Times[i])
			info.MaxTime = math.Max(info.MaxTime, ch.Times[i])
		}
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	return info, nil
}
