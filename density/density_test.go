package density

import (
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"

	"go.viam.com/raycloud/raycloud"
	"go.viam.com/raycloud/spatialgrid"
	"go.viam.com/raycloud/spatialmath"
)

var (
	opaque  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	unknown = color.NRGBA{R: 255, G: 255, B: 255}
)

func cube4(t *testing.T) *Volume {
	t.Helper()
	vol, err := NewVolume(spatialmath.NewCuboid(r3.Vector{}, r3.Vector{X: 4, Y: 4, Z: 4}), 1, [3]int{4, 4, 4})
	test.That(t, err, test.ShouldBeNil)
	return vol
}

func key(x, y, z int) spatialgrid.Key {
	return spatialgrid.Key{X: x, Y: y, Z: z}
}

func TestVoxel(t *testing.T) {
	var v Voxel
	test.That(t, v.Density(), test.ShouldEqual, 0.)
	v.AddMiss(1.5)
	v.AddHit(0.5)
	test.That(t, v.NumRays(), test.ShouldEqual, float32(2))
	test.That(t, v.NumHits(), test.ShouldEqual, float32(1))
	test.That(t, v.PathLength(), test.ShouldEqual, float32(2))
	test.That(t, v.Density(), test.ShouldEqual, 0.5)

	half := v.Scaled(0.5)
	test.That(t, half, test.ShouldResemble, Voxel{Hits: 0.5, Rays: 1, MissLength: 0.75, HitLength: 0.25})
	test.That(t, half.Density(), test.ShouldEqual, v.Density())
	v.AddScaled(v, 1)
	test.That(t, v, test.ShouldResemble, Voxel{Hits: 2, Rays: 4, MissLength: 3, HitLength: 1})
}

func walk(t *testing.T, vol *Volume, rays ...raycloud.Ray) {
	t.Helper()
	test.That(t, vol.CalculateDensities(raycloud.NewMemorySource(raycloud.NewFromRays(rays...)), 0), test.ShouldBeNil)
}

func TestCalculateDensities(t *testing.T) {
	t.Run("hit", func(t *testing.T) {
		vol := cube4(t)
		walk(t, vol, raycloud.Ray{Start: r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}, End: r3.Vector{X: 3.25, Y: 0.5, Z: 0.5}, Color: opaque})
		test.That(t, vol.Voxel(key(0, 0, 0)), test.ShouldResemble, Voxel{Rays: 1, MissLength: 0.5})
		test.That(t, vol.Voxel(key(1, 0, 0)), test.ShouldResemble, Voxel{Rays: 1, MissLength: 1})
		test.That(t, vol.Voxel(key(2, 0, 0)), test.ShouldResemble, Voxel{Rays: 1, MissLength: 1})
		test.That(t, vol.Voxel(key(3, 0, 0)), test.ShouldResemble, Voxel{Hits: 1, Rays: 1, HitLength: 0.25})
		test.That(t, vol.Voxel(key(3, 0, 0)).Density(), test.ShouldEqual, 4.)
		test.That(t, vol.Voxel(key(0, 1, 0)), test.ShouldResemble, Voxel{})
	})

	t.Run("backwards", func(t *testing.T) {
		vol := cube4(t)
		walk(t, vol, raycloud.Ray{Start: r3.Vector{X: 3.5, Y: 0.5, Z: 0.5}, End: r3.Vector{X: 0.25, Y: 0.5, Z: 0.5}, Color: opaque})
		test.That(t, vol.Voxel(key(3, 0, 0)).MissLength, test.ShouldEqual, float32(0.5))
		test.That(t, vol.Voxel(key(1, 0, 0)).MissLength, test.ShouldEqual, float32(1))
		test.That(t, vol.Voxel(key(0, 0, 0)), test.ShouldResemble, Voxel{Hits: 1, Rays: 1, HitLength: 0.75})
	})

	t.Run("unbounded", func(t *testing.T) {
		vol := cube4(t)
		walk(t, vol, raycloud.Ray{Start: r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}, End: r3.Vector{X: 3.25, Y: 0.5, Z: 0.5}, Color: unknown})
		test.That(t, vol.Voxel(key(3, 0, 0)), test.ShouldResemble, Voxel{Rays: 1, MissLength: 0.25})
	})

	t.Run("ends outside", func(t *testing.T) {
		vol := cube4(t)
		walk(t, vol, raycloud.Ray{Start: r3.Vector{X: -5, Y: 1.5, Z: 2.5}, End: r3.Vector{X: 10, Y: 1.5, Z: 2.5}, Color: opaque})
		var total Voxel
		for _, v := range vol.Voxels() {
			total.Add(v)
		}
		test.That(t, total.Hits, test.ShouldEqual, float32(0))
		test.That(t, total.Rays, test.ShouldEqual, float32(4))
		test.That(t, total.MissLength, test.ShouldEqual, float32(4))
	})

	t.Run("diagonal", func(t *testing.T) {
		vol := cube4(t)
		start := r3.Vector{X: 0.2, Y: 0.3, Z: 0.1}
		end := r3.Vector{X: 3.7, Y: 2.9, Z: 3.3}
		walk(t, vol, raycloud.Ray{Start: start, End: end, Color: opaque})
		var total Voxel
		for _, v := range vol.Voxels() {
			total.Add(v)
		}
		test.That(t, float64(total.PathLength()), test.ShouldAlmostEqual, end.Sub(start).Norm(), 1e-5)
		test.That(t, total.Hits, test.ShouldEqual, float32(1))
		test.That(t, vol.Voxel(key(3, 2, 3)).Hits, test.ShouldEqual, float32(1))
	})

	t.Run("misses and degenerate rays", func(t *testing.T) {
		vol := cube4(t)
		walk(t, vol,
			raycloud.Ray{Start: r3.Vector{X: -5, Y: -5, Z: -5}, End: r3.Vector{X: -1, Y: 10, Z: 2}, Color: opaque},
			raycloud.Ray{Start: r3.Vector{X: 1, Y: 1, Z: 1}, End: r3.Vector{X: 1, Y: 1, Z: 1}, Color: opaque},
		)
		for _, v := range vol.Voxels() {
			test.That(t, v, test.ShouldResemble, Voxel{})
		}
	})
}

func sumVoxels(vol *Volume) Voxel {
	var total Voxel
	for _, v := range vol.Voxels() {
		total.Add(v)
	}
	return total
}

func TestCalculateDensitiesEndsOnFaces(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	t.Run("ground returns on the min z face", func(t *testing.T) {
		bounds := spatialmath.NewCuboid(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})
		vol, err := NewVolumeForBounds(bounds, 0.5, false)
		test.That(t, err, test.ShouldBeNil)
		rays := make([]raycloud.Ray, 1000)
		expected := 0.0
		for i := range rays {
			end := r3.Vector{X: 10 * rng.Float64(), Y: 10 * rng.Float64()}
			rays[i] = raycloud.Ray{Start: r3.Vector{X: 5, Y: 5, Z: 10}, End: end, Color: opaque}
			expected += rays[i].Vector().Norm()
		}
		walk(t, vol, rays...)
		total := sumVoxels(vol)
		test.That(t, total.Hits, test.ShouldEqual, float32(len(rays)))
		test.That(t, float64(total.PathLength()), test.ShouldAlmostEqual, expected, expected*1e-4)
	})

	t.Run("min and max faces", func(t *testing.T) {
		vol := cube4(t)
		rays := make([]raycloud.Ray, 2000)
		expected := 0.0
		for i := range rays {
			start := r3.Vector{X: 0.5 + 3*rng.Float64(), Y: 0.5 + 3*rng.Float64(), Z: 0.5 + 3*rng.Float64()}
			coords := [3]float64{4 * rng.Float64(), 4 * rng.Float64(), 4 * rng.Float64()}
			coords[i%3] = float64(4 * ((i / 3) % 2))
			end := r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]}
			rays[i] = raycloud.Ray{Start: start, End: end, Color: opaque}
			expected += end.Sub(start).Norm()
		}
		walk(t, vol, rays...)
		total := sumVoxels(vol)
		test.That(t, total.Hits, test.ShouldEqual, float32(len(rays)))
		test.That(t, float64(total.PathLength()), test.ShouldAlmostEqual, expected, expected*1e-4)
	})
}

type brokenSource struct{}

func (brokenSource) Kind() string { return "broken" }

func (brokenSource) Open() (raycloud.Reader, error) {
	return nil, errors.New("no such cloud")
}

func TestCalculateDensitiesResetsOnError(t *testing.T) {
	vol := cube4(t)
	walk(t, vol, raycloud.Ray{Start: r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}, End: r3.Vector{X: 3.25, Y: 0.5, Z: 0.5}, Color: opaque})
	err := vol.CalculateDensities(brokenSource{}, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no such cloud")
	for _, v := range vol.Voxels() {
		test.That(t, v, test.ShouldResemble, Voxel{})
	}
}

func TestNewVolumeForBounds(t *testing.T) {
	bounds := spatialmath.NewCuboid(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 3, Y: 4, Z: 1})
	vol, err := NewVolumeForBounds(bounds, 1, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vol.Dims, test.ShouldResemble, [3]int{3, 4, 1})
	test.That(t, vol.Min, test.ShouldResemble, bounds.Min)

	padded, err := NewVolumeForBounds(bounds, 1, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, padded.Dims, test.ShouldResemble, [3]int{5, 6, 3})
	test.That(t, padded.Min, test.ShouldResemble, r3.Vector{})
	test.That(t, padded.Margin, test.ShouldEqual, 1)

	_, err = NewVolumeForBounds(bounds, 0, false)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewVolumeForBounds(spatialmath.NewEmptyCuboid(), 1, false)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewVolume(bounds, 1, [3]int{0, 1, 1})
	test.That(t, err, test.ShouldNotBeNil)
}

func cube3(t *testing.T, dims [3]int) *Volume {
	t.Helper()
	vol, err := NewVolume(spatialmath.NewCuboid(r3.Vector{}, r3.Vector{X: 1, Y: 1, Z: 1}), 1, dims)
	test.That(t, err, test.ShouldBeNil)
	return vol
}

func TestAddNeighbourPriors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	centre := key(1, 1, 1)

	t.Run("face shell is enough", func(t *testing.T) {
		vol := cube3(t, [3]int{3, 3, 3})
		for _, off := range spatialgrid.NeighbourShells()[spatialgrid.FaceShell] {
			vol.voxels[vol.Index(centre.Add(off))] = Voxel{Hits: 1, Rays: 2, MissLength: 1, HitLength: 1}
		}
		stats := vol.AddNeighbourPriors(10, logger)
		test.That(t, float64(vol.Voxel(centre).NumRays()), test.ShouldAlmostEqual, 10, 1e-4)
		test.That(t, float64(vol.Voxel(centre).NumHits()), test.ShouldAlmostEqual, 5, 1e-4)
		test.That(t, vol.Voxel(centre).Density(), test.ShouldAlmostEqual, 0.5, 1e-6)
		test.That(t, stats.HitVoxels, test.ShouldEqual, 0)
		// border voxels are not interior and stay as they were
		test.That(t, vol.Voxel(key(0, 1, 1)).NumRays(), test.ShouldEqual, float32(2))
	})

	t.Run("edge shell tops up", func(t *testing.T) {
		vol := cube3(t, [3]int{3, 3, 3})
		vol.voxels[vol.Index(centre)] = Voxel{Rays: 1, MissLength: 1}
		for _, shell := range spatialgrid.NeighbourShells() {
			for _, off := range shell {
				vol.voxels[vol.Index(centre.Add(off))] = Voxel{Rays: 1, MissLength: 1}
			}
		}
		vol.AddNeighbourPriors(10, logger)
		// 1 own ray, 6 from faces and 3 of the 12 edge rays
		test.That(t, float64(vol.Voxel(centre).NumRays()), test.ShouldAlmostEqual, 10, 1e-4)
		test.That(t, float64(vol.Voxel(centre).MissLength), test.ShouldAlmostEqual, 10, 1e-4)
	})

	t.Run("unsatisfied", func(t *testing.T) {
		obsLogger, logs := golog.NewObservedTestLogger(t)
		vol := cube3(t, [3]int{3, 3, 3})
		vol.voxels[vol.Index(centre)] = Voxel{Hits: 1, Rays: 1, HitLength: 0.5}
		stats := vol.AddNeighbourPriors(10, obsLogger)
		test.That(t, stats, test.ShouldResemble, PriorStats{HitVoxels: 1, Unsatisfied: 1})
		test.That(t, stats.UnsatisfiedFraction(), test.ShouldEqual, 1.)
		test.That(t, logs.FilterMessageSnippet("too few rays").Len(), test.ShouldEqual, 1)
		test.That(t, testutil.ToFloat64(unsatisfiedVoxels), test.ShouldEqual, 1.)
	})

	t.Run("reads a snapshot", func(t *testing.T) {
		vol := cube3(t, [3]int{4, 3, 3})
		vol.voxels[vol.Index(key(0, 1, 1))] = Voxel{Rays: 20, MissLength: 20}
		vol.AddNeighbourPriors(10, logger)
		test.That(t, float64(vol.Voxel(key(1, 1, 1)).NumRays()), test.ShouldAlmostEqual, 10, 1e-4)
		// the voxel next to it only sees its neighbour as it was before the pass
		test.That(t, vol.Voxel(key(2, 1, 1)).NumRays(), test.ShouldEqual, float32(0))
	})

	t.Run("satisfied voxels are untouched", func(t *testing.T) {
		vol := cube3(t, [3]int{3, 3, 3})
		for i := range vol.voxels {
			vol.voxels[i] = Voxel{Hits: 2, Rays: 12, MissLength: 1, HitLength: 1}
		}
		stats := vol.AddNeighbourPriors(0, logger)
		test.That(t, vol.Voxel(centre), test.ShouldResemble, Voxel{Hits: 2, Rays: 12, MissLength: 1, HitLength: 1})
		test.That(t, stats.UnsatisfiedFraction(), test.ShouldEqual, 0.)
	})

	t.Run("no threshold borrows nothing", func(t *testing.T) {
		vol := cube3(t, [3]int{3, 3, 3})
		for i := range vol.voxels {
			vol.voxels[i] = Voxel{Hits: 1, Rays: 2, MissLength: 1, HitLength: 1}
		}
		vol.voxels[vol.Index(centre)] = Voxel{}
		stats := vol.AddNeighbourPriors(0, logger)
		test.That(t, vol.Voxel(centre), test.ShouldResemble, Voxel{})
		test.That(t, stats.Unsatisfied, test.ShouldEqual, 0)
	})
}

func TestRender(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cloud := raycloud.New()
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			cloud.AddRay(raycloud.Ray{
				Start: r3.Vector{X: float64(x) + 0.5, Y: float64(y) + 0.5, Z: 3.9},
				End:   r3.Vector{X: float64(x) + 0.5, Y: float64(y) + 0.5, Z: 0.5},
				Color: opaque,
			})
		}
	}
	bounds := spatialmath.NewCuboid(r3.Vector{}, r3.Vector{X: 4, Y: 4, Z: 4})
	src := raycloud.NewMemorySource(cloud)

	img, err := Render(src, bounds, RenderOptions{View: ViewTop, PixelWidth: 1, MinRays: -1}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 5)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 5)
	// cloud y grows up the image
	test.That(t, img.NRGBAAt(0, 4), test.ShouldResemble, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	test.That(t, img.NRGBAAt(3, 1), test.ShouldResemble, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	test.That(t, img.NRGBAAt(4, 4).A, test.ShouldEqual, uint8(0))
	test.That(t, img.NRGBAAt(0, 0).A, test.ShouldEqual, uint8(0))

	rgb, err := Render(src, bounds, RenderOptions{View: ViewTop, Style: StyleGradient, PixelWidth: 1, MinRays: -1}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rgb.NRGBAAt(0, 4), test.ShouldResemble, color.NRGBA{B: 255, A: 255})

	side, err := Render(src, bounds, RenderOptions{View: ViewLeft, PixelWidth: 1}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, side.Bounds().Dx(), test.ShouldEqual, 5)

	noThreshold, err := Render(src, bounds, RenderOptions{View: ViewTop, PixelWidth: 1}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, noThreshold.Pix, test.ShouldResemble, img.Pix)

	_, err = Render(src, bounds, RenderOptions{PixelWidth: 0}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseViewDirection(t *testing.T) {
	for name, want := range map[string]ViewDirection{
		"top": ViewTop, "left": ViewLeft, "right": ViewRight, "front": ViewFront, "back": ViewBack,
	} {
		got, err := ParseViewDirection(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}
	_, err := ParseViewDirection("under")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestShade(t *testing.T) {
	test.That(t, shade(2, StyleGrey), test.ShouldResemble, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	test.That(t, shade(0.5, StyleGradient), test.ShouldResemble, color.NRGBA{G: 255, A: 255})
	test.That(t, shade(0, StyleGradient).R, test.ShouldEqual, uint8(0))
	test.That(t, brightnessScale([]float64{0, 0}), test.ShouldEqual, 1.)
	test.That(t, brightnessScale([]float64{1, 3, 0}), test.ShouldEqual, 4.)
	test.That(t, math.IsNaN(brightnessScale(nil)), test.ShouldBeFalse)
}
