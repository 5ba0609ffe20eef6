package raycloud

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/raycloud/spatialmath"
	"go.viam.com/raycloud/utils"
)

var (
	// ErrEmptyCloud is returned by estimators that need at least one bounded ray.
	ErrEmptyCloud = errors.New("ray cloud has no bounded rays")
	// ErrEigenDecomposition is returned when a neighbourhood covariance cannot be decomposed.
	ErrEigenDecomposition = errors.New("eigen decomposition failed")
)

// Cloud is an ordered, in-memory collection of rays. Its starts, ends, times and
// colours always have the same length and are only reordered together.
type Cloud struct {
	starts []r3.Vector
	ends   []r3.Vector
	times  []float64
	colors []color.NRGBA
}

// New returns an empty cloud.
func New() *Cloud {
	return &Cloud{}
}

// NewFromRays returns a cloud holding the given rays in order.
func NewFromRays(rays ...Ray) *Cloud {
	c := &Cloud{}
	for _, r := range rays {
		c.AddRay(r)
	}
	return c
}

// Len returns the number of rays.
func (c *Cloud) Len() int {
	return len(c.ends)
}

// Ray returns ray i.
func (c *Cloud) Ray(i int) Ray {
	return Ray{Start: c.starts[i], End: c.ends[i], Time: c.times[i], Color: c.colors[i]}
}

// Start returns the sensor origin of ray i.
func (c *Cloud) Start(i int) r3.Vector { return c.starts[i] }

// End returns the end point of ray i.
func (c *Cloud) End(i int) r3.Vector { return c.ends[i] }

// Time returns the timestamp of ray i.
func (c *Cloud) Time(i int) float64 { return c.times[i] }

// Color returns the colour of ray i.
func (c *Cloud) Color(i int) color.NRGBA { return c.colors[i] }

// Bounded reports whether ray i ended on a real return.
func (c *Cloud) Bounded(i int) bool {
	return c.colors[i].A != 0
}

// Ends returns the end points. The slice must not be modified.
func (c *Cloud) Ends() []r3.Vector {
	return c.ends
}

// AddRay appends a ray.
func (c *Cloud) AddRay(r Ray) {
	c.starts = append(c.starts, r.Start)
	c.ends = append(c.ends, r.End)
	c.times = append(c.times, r.Time)
	c.colors = append(c.colors, r.Color)
}

// AddRayFrom appends ray i of other.
func (c *Cloud) AddRayFrom(other *Cloud, i int) {
	c.AddRay(other.Ray(i))
}

// AddChunk appends every ray of ch.
func (c *Cloud) AddChunk(ch *Chunk) {
	c.starts = append(c.starts, ch.Starts...)
	c.ends = append(c.ends, ch.Ends...)
	c.times = append(c.times, ch.Times...)
	c.colors = append(c.colors, ch.Colors...)
}

// Resize truncates the cloud or pads it with zero (unbounded) rays.
func (c *Cloud) Resize(n int) {
	if n <= c.Len() {
		c.starts = c.starts[:n]
		c.ends = c.ends[:n]
		c.times = c.times[:n]
		c.colors = c.colors[:n]
		return
	}
	extra := n - c.Len()
	c.starts = append(c.starts, make([]r3.Vector, extra)...)
	c.ends = append(c.ends, make([]r3.Vector, extra)...)
	c.times = append(c.times, make([]float64, extra)...)
	c.colors = append(c.colors, make([]color.NRGBA, extra)...)
}

// Clear removes every ray.
func (c *Cloud) Clear() {
	c.Resize(0)
}

// SetRay overwrites ray i.
func (c *Cloud) SetRay(i int, r Ray) {
	c.starts[i], c.ends[i], c.times[i], c.colors[i] = r.Start, r.End, r.Time, r.Color
}

// chunk views the whole cloud as one chunk.
func (c *Cloud) chunk() *Chunk {
	return &Chunk{Starts: c.starts, Ends: c.ends, Times: c.times, Colors: c.colors}
}

// WriteChunk appends the chunk, letting a cloud act as an in-memory Writer.
func (c *Cloud) WriteChunk(ch *Chunk) error {
	c.AddChunk(ch)
	return nil
}

// Close does nothing; it completes the Writer interface.
func (c *Cloud) Close() error {
	return nil
}

// Load replaces the cloud's contents with every ray of src. On failure the
// cloud is left empty.
func (c *Cloud) Load(src Source) error {
	c.Clear()
	if err := ForEachChunk(src, DefaultChunkSize, c.WriteChunk); err != nil {
		c.Clear()
		return errors.Wrapf(err, "loading %s ray cloud", src.Kind())
	}
	return nil
}

// Save writes the cloud to w in chunks, then closes w.
func (c *Cloud) Save(w Writer) (err error) {
	defer func() {
		err = multierr.Combine(err, w.Close())
	}()
	all := c.chunk()
	for from := 0; from < c.Len(); from += DefaultChunkSize {
		to := utils.MinInt(from+DefaultChunkSize, c.Len())
		if err := w.WriteChunk(all.slice(from, to)); err != nil {
			return err
		}
	}
	return nil
}

// BoundFlags selects which ray points contribute to bounds.
type BoundFlags int

// The bound selections.
const (
	BoundEnds BoundFlags = 1 << iota
	BoundStarts
)

// CalcBounds returns the box around the selected points of the bounded rays. It
// returns false when the cloud has no bounded ray, which is distinct from the
// zero volume box of a single ray.
func (c *Cloud) CalcBounds(flags BoundFlags, progress *utils.Progress) (spatialmath.Cuboid, bool) {
	progress.Reset("calcBounds", uint64(c.Len()))
	bounds := spatialmath.NewEmptyCuboid()
	found := false
	for i := range c.ends {
		progress.Increment()
		if !c.Bounded(i) {
			continue
		}
		if flags&BoundEnds != 0 {
			bounds = bounds.Expand(c.ends[i])
			found = true
		}
		if flags&BoundStarts != 0 {
			bounds = bounds.Expand(c.starts[i])
			found = true
		}
	}
	return bounds, found
}

// Transform moves every ray by pose and shifts every time by timeDelta.
func (c *Cloud) Transform(pose spatialmath.Pose, timeDelta float64) {
	for i := range c.ends {
		c.starts[i] = pose.Transform(c.starts[i])
		c.ends[i] = pose.Transform(c.ends[i])
		c.times[i] += timeDelta
	}
}

// RemoveUnboundedRays drops every unbounded ray, keeping the order of the rest.
func (c *Cloud) RemoveUnboundedRays() {
	c.compact(c.Bounded)
}

// compact keeps the rays for which keep returns true, in order.
func (c *Cloud) compact(keep func(i int) bool) {
	n := 0
	for i := range c.ends {
		if !keep(i) {
			continue
		}
		c.starts[n], c.ends[n], c.times[n], c.colors[n] = c.starts[i], c.ends[i], c.times[i], c.colors[i]
		n++
	}
	c.Resize(n)
}

// Split partitions the cloud by pred. Rays for which pred is false go to the
// first cloud and the rest to the second, both in their original order.
func (c *Cloud) Split(pred func(r Ray) bool) (*Cloud, *Cloud) {
	first, second := New(), New()
	for i := range c.ends {
		r := c.Ray(i)
		if pred(r) {
			second.AddRay(r)
		} else {
			first.AddRay(r)
		}
	}
	return first, second
}

// NumMoments is the length of the Moments result.
const NumMoments = 22

// Moments summarises the cloud for regression checks: the per axis mean and
// population standard deviation of the starts, then of the ends, then of the
// times, then of the colour channels scaled to [0, 1].
func (c *Cloud) Moments() [NumMoments]float64 {
	var out [NumMoments]float64
	n := c.Len()
	if n == 0 {
		return out
	}
	buf := make([]float64, n)
	pos := 0
	emit := func(get func(i int) float64) (float64, float64) {
		for i := range buf {
			buf[i] = get(i)
		}
		return stat.PopMeanStdDev(buf, nil)
	}
	vectorMoments := func(vs []r3.Vector) {
		for axis := 0; axis < 3; axis++ {
			out[pos+axis], out[pos+3+axis] = emit(func(i int) float64 { return spatialmath.Component(vs[i], axis) })
		}
		pos += 6
	}
	vectorMoments(c.starts)
	vectorMoments(c.ends)
	out[pos], out[pos+1] = emit(func(i int) float64 { return c.times[i] })
	pos += 2
	channels := []func(col color.NRGBA) uint8{
		func(col color.NRGBA) uint8 { return col.R },
		func(col color.NRGBA) uint8 { return col.G },
		func(col color.NRGBA) uint8 { return col.B },
		func(col color.NRGBA) uint8 { return col.A },
	}
	for ch, get := range channels {
		out[pos+ch], out[pos+4+ch] = emit(func(i int) float64 { return float64(get(c.colors[i])) / 255 })
	}
	return out
}
