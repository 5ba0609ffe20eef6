package raycloud

import (
	"context"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/raycloud/utils"
	"go.viam.com/raycloud/vis"
)

// planeCloud returns a side x side grid of bounded rays ending on z = 0, all
// seen from a sensor above the middle.
func planeCloud(side int, spacing float64) *Cloud {
	c := New()
	sensor := r3.Vector{X: float64(side) * spacing / 2, Y: float64(side) * spacing / 2, Z: 10}
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			c.AddRay(Ray{
				Start: sensor,
				End:   r3.Vector{X: float64(i) * spacing, Y: float64(j) * spacing},
				Time:  float64(i*side + j),
				Color: opaque,
			})
		}
	}
	return c
}

type recordingDrawer struct {
	vis.Noop
	ellipsoids []vis.Ellipsoid
}

func (d *recordingDrawer) DrawEllipsoids(_ string, ells []vis.Ellipsoid, _ color.NRGBA) {
	d.ellipsoids = append(d.ellipsoids, ells...)
}

func TestNearestNeighbours(t *testing.T) {
	points := []r3.Vector{{}, {X: 1}, {X: 3}, {X: 6}}
	found, err := KDTreeSearcher{}.NearestNeighbours(context.Background(), points, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, found, test.ShouldHaveLength, 4)
	test.That(t, found[0], test.ShouldResemble, []Neighbour{{Index: 1, DistSqr: 1}, {Index: 2, DistSqr: 9}})
	test.That(t, found[3][0].Index, test.ShouldEqual, 2)
	for i, ns := range found {
		for _, n := range ns {
			test.That(t, n.Index, test.ShouldNotEqual, i)
		}
	}

	few, err := KDTreeSearcher{}.NearestNeighbours(context.Background(), points[:2], 5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, few[0], test.ShouldResemble, []Neighbour{{Index: 1, DistSqr: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = KDTreeSearcher{}.NearestNeighbours(ctx, points, 2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSurfels(t *testing.T) {
	logger := golog.NewTestLogger(t)
	c := planeCloud(10, 1)
	c.AddRay(Ray{Start: r3.Vector{Z: 10}, End: r3.Vector{Z: 30}, Color: unknown})

	drawer := &recordingDrawer{}
	progress := utils.NewProgress("", 0)
	surfels, err := c.Surfels(context.Background(), SurfelOptions{
		Neighbours: 8,
		Drawer:     drawer,
		Progress:   progress,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, surfels, test.ShouldHaveLength, c.Len())
	test.That(t, progress.Value(), test.ShouldEqual, uint64(100))

	for i := 0; i < 100; i++ {
		s := surfels[i]
		test.That(t, s.Valid, test.ShouldBeTrue)
		test.That(t, s.Neighbours, test.ShouldHaveLength, 8)
		// flat neighbourhoods face up towards the sensor
		test.That(t, s.Normal.Z, test.ShouldAlmostEqual, 1, 1e-6)
		test.That(t, s.Extents.X, test.ShouldAlmostEqual, math.Sqrt(minEigenvalue), 1e-9)
		test.That(t, s.Extents.Y, test.ShouldBeLessThanOrEqualTo, s.Extents.Z)
		test.That(t, s.Centroid.Z, test.ShouldAlmostEqual, 0)
	}
	test.That(t, surfels[100].Valid, test.ShouldBeFalse)
	test.That(t, drawer.ellipsoids, test.ShouldHaveLength, 100)

	normals, err := c.GenerateNormals(context.Background(), 8, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, normals[55].Z, test.ShouldAlmostEqual, 1, 1e-6)
	test.That(t, normals[100], test.ShouldResemble, r3.Vector{})
}

func TestSurfelNormalFacesSensor(t *testing.T) {
	c := planeCloud(6, 0.5)
	// looking up at the plane from below flips the normal
	for i := 0; i < c.Len(); i++ {
		r := c.Ray(i)
		r.Start.Z = -10
		c.SetRay(i, r)
	}
	surfels, err := c.Surfels(context.Background(), SurfelOptions{Neighbours: 6}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	for _, s := range surfels {
		test.That(t, s.Normal.Z, test.ShouldAlmostEqual, -1, 1e-6)
	}
}

func TestEstimatePointSpacing(t *testing.T) {
	logger := golog.NewTestLogger(t)

	flat := planeCloud(100, 0.1)
	spacing, err := flat.EstimatePointSpacing(SpacingOptions{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spacing, test.ShouldBeGreaterThan, 0.08)
	test.That(t, spacing, test.ShouldBeLessThan, 0.12)

	// the streamed estimate agrees with the in memory one
	src := NewMemorySource(flat)
	info, err := ReadInfo(src, 1000)
	test.That(t, err, test.ShouldBeNil)
	streamed, err := EstimatePointSpacingFromSource(src, info.Ends, info.NumBounded, SpacingOptions{ChunkSize: 1000}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, streamed, test.ShouldEqual, spacing)

	// the estimate scales with the cloud
	scaled := planeCloud(100, 1)
	bigger, err := scaled.EstimatePointSpacing(SpacingOptions{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bigger, test.ShouldAlmostEqual, spacing*10, spacing*0.5)

	volume := New()
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			for k := 0; k < 20; k++ {
				volume.AddRay(Ray{End: r3.Vector{X: float64(i) * 0.5, Y: float64(j) * 0.5, Z: float64(k) * 0.5}, Color: opaque})
			}
		}
	}
	spacing, err = volume.EstimatePointSpacing(SpacingOptions{Exponent: 3}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spacing, test.ShouldBeGreaterThan, 0.4)
	test.That(t, spacing, test.ShouldBeLessThan, 0.7)
}

func TestEstimatePointSpacingShrinksWithDensity(t *testing.T) {
	logger := golog.NewTestLogger(t)
	rng := rand.New(rand.NewSource(5))
	previous := math.Inf(1)
	for _, n := range []int{1000, 10000, 100000} {
		c := New()
		for i := 0; i < n; i++ {
			c.AddRay(Ray{
				Start: r3.Vector{X: 0.5, Y: 0.5, Z: 5},
				End:   r3.Vector{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()},
				Color: opaque,
			})
		}
		spacing, err := c.EstimatePointSpacing(SpacingOptions{}, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, spacing, test.ShouldBeGreaterThan, 0)
		test.That(t, spacing, test.ShouldBeLessThan, previous)
		previous = spacing
	}
}

func TestEstimatePointSpacingFailures(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := New().EstimatePointSpacing(SpacingOptions{}, logger)
	test.That(t, err, test.ShouldEqual, ErrEmptyCloud)

	unbounded := NewFromRays(Ray{End: r3.Vector{X: 1}, Color: unknown})
	_, err = unbounded.EstimatePointSpacing(SpacingOptions{}, logger)
	test.That(t, err, test.ShouldEqual, ErrEmptyCloud)

	same := NewFromRays(Ray{End: r3.Vector{X: 1}, Color: opaque}, Ray{End: r3.Vector{X: 1}, Color: opaque})
	_, err = same.EstimatePointSpacing(SpacingOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
