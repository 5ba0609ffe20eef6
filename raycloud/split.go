package raycloud

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/raycloud/spatialmath"
)

// SplitStream routes every ray of src to first when pred is false and to second
// otherwise, preserving file order, then closes both writers.
func SplitStream(src Source, first, second Writer, pred func(r Ray) bool, chunkSize int) (err error) {
	defer func() {
		err = multierr.Combine(err, first.Close(), second.Close())
	}()
	a, b := NewChunk(0), NewChunk(0)
	return ForEachChunk(src, chunkSize, func(ch *Chunk) error {
		a.Reset()
		b.Reset()
		for i := 0; i < ch.Len(); i++ {
			r := ch.Ray(i)
			if pred(r) {
				b.Append(r)
			} else {
				a.Append(r)
			}
		}
		if a.Len() > 0 {
			if err := first.WriteChunk(a); err != nil {
				return err
			}
		}
		if b.Len() > 0 {
			return second.WriteChunk(b)
		}
		return nil
	})
}

// TimeAfter selects rays later than threshold.
func TimeAfter(threshold float64) func(r Ray) bool {
	return func(r Ray) bool { return r.Time > threshold }
}

// EndOutside selects rays ending outside box.
func EndOutside(box spatialmath.Cuboid) func(r Ray) bool {
	return func(r Ray) bool { return !box.Contains(r.End) }
}

// EndOutsideCapsule selects rays ending further than radius from the segment a-b.
func EndOutsideCapsule(a, b r3.Vector, radius float64) func(r Ray) bool {
	r2 := radius * radius
	return func(r Ray) bool {
		closest := spatialmath.ClosestPointSegmentPoint(a, b, r.End)
		return r.End.Sub(closest).Norm2() > r2
	}
}

// EndAbovePlane selects rays ending on the side of the plane that normal points to.
func EndAbovePlane(point, normal r3.Vector) func(r Ray) bool {
	return func(r Ray) bool { return r.End.Sub(point).Dot(normal) > 0 }
}

// EndOutsideCylinder selects rays ending outside the solid cylinder of the given
// radius whose axis runs from a to b. The caps are flat.
func EndOutsideCylinder(a, b r3.Vector, radius float64) func(r Ray) bool {
	axis := b.Sub(a)
	l2 := axis.Norm2()
	r2 := radius * radius
	return func(r Ray) bool {
		if l2 == 0 {
			return true
		}
		d := r.End.Sub(a).Dot(axis) / l2
		if d < 0 || d > 1 {
			return true
		}
		return r.End.Sub(a.Add(axis.Mul(d))).Norm2() > r2
	}
}

// AlphaAbove selects rays whose alpha is greater than alpha, given in [0, 1].
// AlphaAbove(0) separates bounded rays from unbounded ones.
func AlphaAbove(alpha float64) func(r Ray) bool {
	limit := uint8(255 * math.Min(math.Max(alpha, 0), 1))
	return func(r Ray) bool { return r.Color.A > limit }
}

// Unbounded selects rays that saw nothing.
func Unbounded(r Ray) bool {
	return !r.Bounded()
}

// LongerThan selects rays longer than length.
func LongerThan(length float64) func(r Ray) bool {
	l2 := length * length
	return func(r Ray) bool { return r.Vector().Norm2() > l2 }
}

// DirectionBeyond selects rays whose unit direction reaches past the plane
// through v perpendicular to v. DirectionBeyond({0, 0, 0.8}) selects rays
// within about 37 degrees of straight up.
func DirectionBeyond(v r3.Vector) func(r Ray) bool {
	scaled := v.Mul(1 / v.Norm2())
	return func(r Ray) bool { return r.Vector().Normalize().Dot(scaled) > 1 }
}

// ColourBeyond is DirectionBeyond for colours: it selects rays whose RGB
// colour, each channel in [0, 1], reaches past the plane through v
// perpendicular to v.
func ColourBeyond(v r3.Vector) func(r Ray) bool {
	scaled := v.Mul(1 / v.Norm2())
	return func(r Ray) bool {
		rgb := r3.Vector{X: float64(r.Color.R), Y: float64(r.Color.G), Z: float64(r.Color.B)}.Mul(1.0 / 255)
		return rgb.Dot(scaled) > 1
	}
}

// ColourOtherThan selects rays whose RGB colour differs from col. Alpha is ignored.
func ColourOtherThan(col color.NRGBA) func(r Ray) bool {
	return func(r Ray) bool {
		return r.Color.R != col.R || r.Color.G != col.G || r.Color.B != col.B
	}
}

// GridCell names one cell of a grid split.
type GridCell struct {
	I, J, K int
}

func (g GridCell) String() string {
	return fmt.Sprintf("%d_%d_%d", g.I, g.J, g.K)
}

// GridSplitter assigns rays to the cells of a grid anchored at the origin by
// their end points, cell i spanning [i*width, (i+1)*width). A cell width of
// zero leaves that axis undivided. With a positive overlap a ray also belongs
// to every neighbouring cell whose box, grown by overlap, contains its end.
type GridSplitter struct {
	CellWidth r3.Vector
	Overlap   float64
}

// NewGridSplitter validates the cell widths and overlap.
func NewGridSplitter(cellWidth r3.Vector, overlap float64) (*GridSplitter, error) {
	if cellWidth.X < 0 || cellWidth.Y < 0 || cellWidth.Z < 0 {
		return nil, errors.Errorf("grid cell widths must not be negative, got %v", cellWidth)
	}
	if cellWidth.X == 0 && cellWidth.Y == 0 && cellWidth.Z == 0 {
		return nil, errors.New("at least one grid axis needs a positive cell width")
	}
	if overlap < 0 || math.IsNaN(overlap) {
		return nil, errors.Errorf("grid overlap must not be negative, got %v", overlap)
	}
	return &GridSplitter{CellWidth: cellWidth, Overlap: overlap}, nil
}

func axisRange(v, width, overlap float64) (int, int) {
	if width == 0 {
		return 0, 0
	}
	return int(math.Floor((v - overlap) / width)), int(math.Floor((v + overlap) / width))
}

// Cells returns the cells the end point p belongs to.
func (g *GridSplitter) Cells(p r3.Vector) []GridCell {
	i0, i1 := axisRange(p.X, g.CellWidth.X, g.Overlap)
	j0, j1 := axisRange(p.Y, g.CellWidth.Y, g.Overlap)
	k0, k1 := axisRange(p.Z, g.CellWidth.Z, g.Overlap)
	cells := make([]GridCell, 0, (i1-i0+1)*(j1-j0+1)*(k1-k0+1))
	for i := i0; i <= i1; i++ {
		for j := j0; j <= j1; j++ {
			for k := k0; k <= k1; k++ {
				cells = append(cells, GridCell{i, j, k})
			}
		}
	}
	return cells
}

// SplitGrid partitions the cloud into grid cells. Without overlap every ray
// lands in exactly one cell.
func (c *Cloud) SplitGrid(g *GridSplitter) map[GridCell]*Cloud {
	out := map[GridCell]*Cloud{}
	for i := range c.ends {
		for _, cell := range g.Cells(c.ends[i]) {
			dst, ok := out[cell]
			if !ok {
				dst = New()
				out[cell] = dst
			}
			dst.AddRayFrom(c, i)
		}
	}
	return out
}

// SortedCells returns the keys of a grid split in i, j, k order.
func SortedCells[T any](cells map[GridCell]T) []GridCell {
	keys := lo.Keys(cells)
	sort.Slice(keys, func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if ka.I != kb.I {
			return ka.I < kb.I
		}
		if ka.J != kb.J {
			return ka.J < kb.J
		}
		return ka.K < kb.K
	})
	return keys
}

// SplitGridStream streams src into one writer per occupied cell. Writers are
// opened on first use through open and all of them are closed before returning.
// It returns the number of rays written per cell.
func SplitGridStream(
	src Source,
	g *GridSplitter,
	chunkSize int,
	open func(cell GridCell) (Writer, error),
) (counts map[GridCell]int, err error) {
	writers := map[GridCell]Writer{}
	counts = map[GridCell]int{}
	defer func() {
		for _, cell := range SortedCells(writers) {
			err = multierr.Combine(err, writers[cell].Close())
		}
	}()
	pending := map[GridCell]*Chunk{}
	err = ForEachChunk(src, chunkSize, func(ch *Chunk) error {
		for _, buf := range pending {
			buf.Reset()
		}
		for i := 0; i < ch.Len(); i++ {
			for _, cell := range g.Cells(ch.Ends[i]) {
				buf, ok := pending[cell]
				if !ok {
					buf = NewChunk(0)
					pending[cell] = buf
				}
				buf.Append(ch.Ray(i))
			}
		}
		for _, cell := range SortedCells(pending) {
			buf := pending[cell]
			if buf.Len() == 0 {
				continue
			}
			w, ok := writers[cell]
			if !ok {
				var err error
				if w, err = open(cell); err != nil {
					return errors.Wrapf(err, "opening grid cell %v", cell)
				}
				writers[cell] = w
			}
			if err := w.WriteChunk(buf); err != nil {
				return err
			}
			counts[cell] += buf.Len()
		}
		return nil
	})
	return counts, err
}
