package raycloud

import (
	"context"
	"image/color"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/raycloud/utils"
	"go.viam.com/raycloud/vis"
)

// minEigenvalue floors surfel eigenvalues so that flat neighbourhoods keep a
// small non-zero extent.
const minEigenvalue = 1e-10

// FailurePolicy decides what a bulk operation does when one ray's
// neighbourhood cannot be decomposed.
type FailurePolicy int

// The failure policies.
const (
	// SkipOnFailure marks the ray's surfel invalid and carries on.
	SkipOnFailure FailurePolicy = iota
	// AbortOnFailure fails the whole operation.
	AbortOnFailure
)

// Surfel is the local surface around a ray end, fitted to its neighbourhood.
type Surfel struct {
	Centroid r3.Vector
	// Normal is the eigenvector of the smallest eigenvalue, facing the sensor.
	Normal r3.Vector
	// Extents are the square roots of the eigenvalues, smallest first.
	Extents r3.Vector
	// Basis holds the eigenvectors matching Extents.
	Basis      [3]r3.Vector
	Neighbours []int
	Valid      bool
}

// SurfelOptions configures Surfels.
type SurfelOptions struct {
	// Neighbours is how many nearest bounded ends make up each neighbourhood.
	Neighbours int
	OnFailure  FailurePolicy
	// Searcher defaults to KDTreeSearcher.
	Searcher NeighbourSearcher
	Drawer   vis.Drawer
	Progress *utils.Progress
}

// DefaultSurfelNeighbours is the neighbourhood size used when none is given.
const DefaultSurfelNeighbours = 16

// Surfels fits a surfel to the neighbourhood of each bounded ray end. The result
// has one entry per ray; unbounded rays and skipped failures are not Valid.
// Neighbour indices are ray indices.
func (c *Cloud) Surfels(ctx context.Context, opts SurfelOptions, logger golog.Logger) ([]Surfel, error) {
	if opts.Neighbours <= 0 {
		opts.Neighbours = DefaultSurfelNeighbours
	}
	if opts.Searcher == nil {
		opts.Searcher = KDTreeSearcher{}
	}

	rayIDs := make([]int, 0, c.Len())
	points := make([]r3.Vector, 0, c.Len())
	for i := range c.ends {
		if c.Bounded(i) {
			rayIDs = append(rayIDs, i)
			points = append(points, c.ends[i])
		}
	}
	neighbours, err := opts.Searcher.NearestNeighbours(ctx, points, opts.Neighbours)
	if err != nil {
		return nil, errors.Wrap(err, "searching neighbours")
	}

	surfels := make([]Surfel, c.Len())
	failed := make([]bool, len(points))
	opts.Progress.Reset("surfels", uint64(len(points)))
	err = utils.GroupWorkParallel(ctx, len(points), nil, func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		var es mat.EigenSym
		var vecs mat.Dense
		return func(_, p int) {
			defer opts.Progress.Increment()
			ray := rayIDs[p]
			s := &surfels[ray]
			s.Neighbours = make([]int, len(neighbours[p]))
			hood := make([]r3.Vector, 0, len(neighbours[p])+1)
			hood = append(hood, points[p])
			for j, n := range neighbours[p] {
				s.Neighbours[j] = rayIDs[n.Index]
				hood = append(hood, points[n.Index])
			}
			if !fitSurfel(s, hood, c.ends[ray].Sub(c.starts[ray]), &es, &vecs) {
				failed[p] = true
			}
		}, nil
	})
	if err != nil {
		return nil, err
	}

	numFailed := 0
	for p, f := range failed {
		if !f {
			continue
		}
		numFailed++
		if opts.OnFailure == AbortOnFailure {
			return nil, errors.Wrapf(ErrEigenDecomposition, "surfel of ray %d", rayIDs[p])
		}
	}
	if numFailed > 0 {
		surfelFailures.Add(float64(numFailed))
		logger.Warnw("skipped rays whose neighbourhood could not be decomposed", "failed", numFailed, "rays", len(points))
	}

	if opts.Drawer != nil {
		ellipsoids := make([]vis.Ellipsoid, 0, len(points))
		for _, s := range surfels {
			if !s.Valid {
				continue
			}
			ellipsoids = append(ellipsoids, vis.Ellipsoid{
				Center: s.Centroid,
				Axes:   [3]r3.Vector{s.Basis[0].Mul(s.Extents.X), s.Basis[1].Mul(s.Extents.Y), s.Basis[2].Mul(s.Extents.Z)},
			})
		}
		opts.Drawer.DrawEllipsoids("surfels", ellipsoids, surfelColor)
	}
	return surfels, nil
}

var surfelColor = color.NRGBA{G: 200, B: 255, A: 255}

// fitSurfel fills s from the points of a neighbourhood, the query point first.
// It reports false when the scatter matrix cannot be decomposed.
func fitSurfel(s *Surfel, hood []r3.Vector, rayDir r3.Vector, es *mat.EigenSym, vecs *mat.Dense) bool {
	var centroid r3.Vector
	for _, p := range hood {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(hood)))

	var xx, xy, xz, yy, yz, zz float64
	for _, p := range hood {
		d := p.Sub(centroid)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	n := float64(len(hood))
	scatter := mat.NewSymDense(3, []float64{
		xx / n, xy / n, xz / n,
		xy / n, yy / n, yz / n,
		xz / n, yz / n, zz / n,
	})
	if !es.Factorize(scatter, true) {
		return false
	}
	values := es.Values(nil)
	es.VectorsTo(vecs)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	for j := 0; j < 3; j++ {
		s.Basis[j] = r3.Vector{X: vecs.At(0, j), Y: vecs.At(1, j), Z: vecs.At(2, j)}
	}
	normal := s.Basis[0]
	if rayDir.Dot(normal) > 0 {
		normal = normal.Mul(-1)
	}
	s.Centroid = centroid
	s.Normal = normal
	s.Extents = r3.Vector{
		X: math.Sqrt(math.Max(minEigenvalue, values[0])),
		Y: math.Sqrt(math.Max(minEigenvalue, values[1])),
		Z: math.Sqrt(math.Max(minEigenvalue, values[2])),
	}
	s.Valid = true
	return true
}

// GenerateNormals returns the surfel normal of every ray, zero where no surfel
// could be fitted.
func (c *Cloud) GenerateNormals(ctx context.Context, neighbours int, logger golog.Logger) ([]r3.Vector, error) {
	surfels, err := c.Surfels(ctx, SurfelOptions{Neighbours: neighbours}, logger)
	if err != nil {
		return nil, err
	}
	normals := make([]r3.Vector, len(surfels))
	for i, s := range surfels {
		normals[i] = s.Normal
	}
	return normals, nil
}
