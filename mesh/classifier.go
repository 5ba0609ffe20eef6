// Package mesh classifies rays against closed triangle meshes and extracts
// height fields from them.
package mesh

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/raycloud/raycloud"
	"go.viam.com/raycloud/spatialgrid"
	"go.viam.com/raycloud/spatialmath"
	"go.viam.com/raycloud/utils"
	"go.viam.com/raycloud/vis"
)

// DefaultVoxelWidth is the triangle grid voxel width used when none is given.
const DefaultVoxelWidth = 1.0

// Options configures a Classifier.
type Options struct {
	// VoxelWidth is the side of the voxels triangles are bucketed into, in
	// cloud units.
	VoxelWidth float64
	Drawer     vis.Drawer
	Progress   *utils.Progress
}

// Classifier answers containment queries against a closed, outward wound mesh.
type Classifier struct {
	mesh      *spatialmath.Mesh
	triangles []*spatialmath.Triangle
	normals   []r3.Vector
	grid      *spatialgrid.Grid[int]
	width     float64
	drawer    vis.Drawer
	progress  *utils.Progress
	logger    golog.Logger
}

// NewClassifier buckets the triangles of m into a grid over the mesh bounds.
func NewClassifier(m *spatialmath.Mesh, opts Options, logger golog.Logger) (*Classifier, error) {
	if m.NumTriangles() == 0 {
		return nil, errors.New("mesh has no triangles")
	}
	width := opts.VoxelWidth
	if width == 0 {
		width = DefaultVoxelWidth
	}
	c := &Classifier{
		mesh:      m,
		triangles: m.Triangles(),
		normals:   m.VertexNormals(),
		width:     width,
		drawer:    vis.OrNoop(opts.Drawer),
		progress:  opts.Progress,
		logger:    logger,
	}
	grid, err := spatialgrid.New[int](m.Bounds(), width)
	if err != nil {
		return nil, errors.Wrap(err, "building mesh triangle grid")
	}
	for i, tri := range c.triangles {
		b := tri.Bounds()
		grid.InsertBox(b.Min, b.Max, i)
	}
	c.grid = grid
	logger.Debugw("bucketed mesh triangles", "triangles", len(c.triangles), "dims", grid.Dims, "occupied", grid.Occupied())
	return c, nil
}

// crossings counts the triangles crossed by a segment dropped straight down
// from p to below the grid. Points whose column misses the grid, or that lie
// under it, cross nothing.
func (c *Classifier) crossings(p r3.Vector, visited mapset.Set[int]) int {
	k := c.grid.KeyOf(p)
	if k.X < 0 || k.Y < 0 || k.Z < 0 || k.X >= c.grid.Dims[0] || k.Y >= c.grid.Dims[1] {
		return 0
	}
	k.Z = utils.MinInt(k.Z, c.grid.Dims[2]-1)
	below := r3.Vector{X: p.X, Y: p.Y, Z: c.grid.Min.Z - c.width}
	visited.Clear()
	n := 0
	for z := k.Z; z >= 0; z-- {
		for _, ti := range c.grid.Cell(spatialgrid.Key{X: k.X, Y: k.Y, Z: z}) {
			// triangles spanning several cells of the column are tested once
			if !visited.Add(ti) {
				continue
			}
			if _, ok := c.triangles[ti].IntersectsSegment(p, below); ok {
				n++
			}
		}
	}
	return n
}

// Inside reports whether p lies inside the closed surface.
func (c *Classifier) Inside(p r3.Vector) bool {
	return c.crossings(p, mapset.NewThreadUnsafeSet[int]())%2 == 1
}

// SplitCloud puts every bounded ray whose end lies inside the surface, offset
// along its vertex normals by offset, into inside and every other ray into
// outside. A negative offset shrinks the surface: inside ends within |offset|
// of it move outside. A positive offset grows it: outside ends within offset
// of it move inside. Unbounded rays are always outside.
func (c *Classifier) SplitCloud(cloud *raycloud.Cloud, offset float64) (*raycloud.Cloud, *raycloud.Cloud, error) {
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return nil, nil, errors.Errorf("invalid mesh offset %v", offset)
	}
	var shell *spatialgrid.Grid[int]
	if offset != 0 {
		var err error
		if shell, err = c.shellGrid(offset); err != nil {
			return nil, nil, err
		}
	}

	c.progress.Reset("splitCloud", uint64(cloud.Len()))
	inside, outside := raycloud.New(), raycloud.New()
	visited := mapset.NewThreadUnsafeSet[int]()
	offsetSqr := offset * offset
	for i := 0; i < cloud.Len(); i++ {
		c.progress.Increment()
		if !cloud.Bounded(i) {
			outside.AddRayFrom(cloud, i)
			continue
		}
		end := cloud.End(i)
		in := c.crossings(end, visited)%2 == 1
		if shell != nil && in == (offset < 0) && c.nearSurface(shell, end, offsetSqr) {
			in = !in
		}
		if in {
			inside.AddRayFrom(cloud, i)
		} else {
			outside.AddRayFrom(cloud, i)
		}
	}
	c.logger.Infow("split cloud against mesh", "inside", inside.Len(), "rays", cloud.Len(), "offset", offset)
	c.drawer.DrawCloud("mesh inside", inside.Ends(), nil)
	return inside, outside, nil
}

// shellGrid buckets each triangle by the volume it sweeps when its corners are
// extruded along the vertex normals by offset, padded by |offset|.
func (c *Classifier) shellGrid(offset float64) (*spatialgrid.Grid[int], error) {
	pad := math.Abs(offset)
	sweeps := lo.Map(c.mesh.Indices(), func(ind [3]int, _ int) spatialmath.Cuboid {
		box := spatialmath.NewEmptyCuboid()
		for _, v := range ind {
			corner := c.mesh.Vertices()[v]
			box = box.Expand(corner).Expand(corner.Add(c.normals[v].Mul(offset)))
		}
		return box.Grow(pad)
	})
	bounds := spatialmath.NewEmptyCuboid()
	for _, b := range sweeps {
		bounds = bounds.Union(b)
	}
	shell, err := spatialgrid.New[int](bounds, c.width)
	if err != nil {
		return nil, errors.Wrap(err, "building mesh offset grid")
	}
	for i, b := range sweeps {
		shell.InsertBox(b.Min, b.Max, i)
	}
	return shell, nil
}

// nearSurface reports whether a triangle bucketed in p's shell cell lies
// within sqrt(distSqr) of p.
func (c *Classifier) nearSurface(shell *spatialgrid.Grid[int], p r3.Vector, distSqr float64) bool {
	k := shell.KeyOf(p)
	if !shell.Contains(k) {
		return false
	}
	for _, ti := range shell.Cell(k) {
		if c.triangles[ti].DistSqrToPoint(p) < distSqr {
			return true
		}
	}
	return false
}
