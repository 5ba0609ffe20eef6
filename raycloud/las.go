package raycloud

import (
	"image/color"
	"io"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// LAS point format 3 carries both GPS time and colour.
const lasPointFormat = 3

type lasSource struct {
	fn     string
	origin r3.Vector
}

// NewLASSource streams the returns of a LAS file as rays from origin. Every
// return becomes a bounded ray; GPS time is kept when the point format has it.
func NewLASSource(fn string, origin r3.Vector) Source {
	return &lasSource{fn: fn, origin: origin}
}

func (s *lasSource) Kind() string {
	return "las"
}

func (s *lasSource) Open() (Reader, error) {
	lf, err := lidario.NewLasFile(s.fn, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "reading las %q", s.fn)
	}
	return &lasReader{lf: lf, origin: s.origin}, nil
}

type lasReader struct {
	lf     *lidario.LasFile
	origin r3.Vector
	next   int
	chunk  *Chunk
}

type gpsTimer interface {
	GpsTimeData() float64
}

func (r *lasReader) ReadChunk(max int) (*Chunk, error) {
	if r.next >= r.lf.Header.NumberPoints {
		return nil, io.EOF
	}
	if r.chunk == nil {
		r.chunk = NewChunk(max)
	}
	r.chunk.Reset()
	for ; r.next < r.lf.Header.NumberPoints && r.chunk.Len() < max; r.next++ {
		p, err := r.lf.LasPoint(r.next)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		ray := Ray{
			Start: r.origin,
			End:   r3.Vector{X: data.X, Y: data.Y, Z: data.Z},
			Color: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		}
		if timed, ok := p.(gpsTimer); ok {
			ray.Time = timed.GpsTimeData()
		}
		if rgb := p.RgbData(); rgb != nil && (r.lf.Header.PointFormatID == 2 || r.lf.Header.PointFormatID == 3) {
			ray.Color.R = uint8(rgb.Red / 256)
			ray.Color.G = uint8(rgb.Green / 256)
			ray.Color.B = uint8(rgb.Blue / 256)
		}
		r.chunk.Append(ray)
	}
	return r.chunk, nil
}

func (r *lasReader) Close() error {
	return r.lf.Close()
}

type lasWriter struct {
	lf *lidario.LasFile
}

// NewLASWriter creates fn and writes the ends of bounded rays to it. LAS has no
// notion of a ray start, so starts and unbounded rays are dropped.
func NewLASWriter(fn string) (Writer, error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return nil, err
	}
	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: lasPointFormat}); err != nil {
		return nil, multierr.Combine(err, lf.Close())
	}
	return &lasWriter{lf: lf}, nil
}

func (w *lasWriter) WriteChunk(c *Chunk) error {
	written := 0
	for i := 0; i < c.Len(); i++ {
		if !c.Bounded(i) {
			continue
		}
		end, col := c.Ends[i], c.Colors[i]
		pr0 := &lidario.PointRecord0{
			X: end.X,
			Y: end.Y,
			Z: end.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			PointSourceID: 1,
		}
		lp := &lidario.PointRecord3{
			PointRecord0: pr0,
			GPSTime:      c.Times[i],
			RGB: &lidario.RgbData{
				Red:   uint16(col.R) * 256,
				Green: uint16(col.G) * 256,
				Blue:  uint16(col.B) * 256,
			},
		}
		if err := w.lf.AddLasPoint(lp); err != nil {
			return err
		}
		written++
	}
	instrumentRaysWritten(written)
	return nil
}

func (w *lasWriter) Close() error {
	return w.lf.Close()
}
