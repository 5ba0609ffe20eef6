package raycloud

import (
	"bufio"
	"image/color"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/raycloud/ply"
)

// Ray PLY files store one vertex per ray at its end point. The normal holds
// start - end so the start can be recovered, and a zero alpha marks the ray
// unbounded.
var rayElement = ply.Element{
	Name: "vertex",
	Properties: []ply.Property{
		{Name: "x", Type: "double"},
		{Name: "y", Type: "double"},
		{Name: "z", Type: "double"},
		{Name: "time", Type: "double"},
		{Name: "nx", Type: "float"},
		{Name: "ny", Type: "float"},
		{Name: "nz", Type: "float"},
		{Name: "red", Type: "uchar"},
		{Name: "green", Type: "uchar"},
		{Name: "blue", Type: "uchar"},
		{Name: "alpha", Type: "uchar"},
	},
}

type plySource struct {
	fn string
}

// NewPLYSource streams rays from a ray PLY file.
func NewPLYSource(fn string) Source {
	return &plySource{fn: fn}
}

func (s *plySource) Kind() string {
	return "ply"
}

func (s *plySource) Open() (Reader, error) {
	//nolint:gosec
	f, err := os.Open(s.fn)
	if err != nil {
		return nil, err
	}
	r, err := newPLYReader(f)
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "reading ray ply %q", s.fn), f.Close())
	}
	return r, nil
}

// plyColumns maps the ray fields to property positions; -1 marks an absent one.
type plyColumns struct {
	pos, normal [3]int
	time        int
	rgba        [4]int
}

type plyReader struct {
	f       io.Closer
	r       *ply.Reader
	vertex  *ply.Element
	columns plyColumns
	next    int
	row     ply.Row
	chunk   *Chunk
}

func newPLYReader(f io.ReadCloser) (*plyReader, error) {
	r, err := ply.NewReader(f)
	if err != nil {
		return nil, err
	}
	var vertex *ply.Element
	for i := range r.Header.Elements {
		el := &r.Header.Elements[i]
		if el.Name == "vertex" {
			vertex = el
			break
		}
		if err := r.SkipElement(el); err != nil {
			return nil, err
		}
	}
	if vertex == nil {
		return nil, errors.New("no vertex element")
	}

	var cols plyColumns
	for i, name := range []string{"x", "y", "z"} {
		if cols.pos[i] = vertex.PropertyIndex(name); cols.pos[i] < 0 {
			return nil, errors.Errorf("vertex element has no %q property", name)
		}
	}
	for i, name := range []string{"nx", "ny", "nz"} {
		if cols.normal[i] = vertex.PropertyIndex(name); cols.normal[i] < 0 {
			return nil, errors.New("vertex element has no ray normals, so it is a point cloud rather than a ray cloud")
		}
	}
	cols.time = vertex.PropertyIndex("time")
	if cols.time < 0 {
		cols.time = vertex.PropertyIndex("timestamp")
	}
	for i, name := range []string{"red", "green", "blue", "alpha"} {
		cols.rgba[i] = vertex.PropertyIndex(name)
	}
	for _, idx := range append(cols.pos[:], cols.normal[:]...) {
		if vertex.Properties[idx].IsList {
			return nil, errors.Errorf("vertex property %q is a list", vertex.Properties[idx].Name)
		}
	}
	return &plyReader{f: f, r: r, vertex: vertex, columns: cols}, nil
}

func (r *plyReader) ReadChunk(max int) (*Chunk, error) {
	if r.next >= r.vertex.Count {
		return nil, io.EOF
	}
	if r.chunk == nil {
		r.chunk = NewChunk(max)
	}
	r.chunk.Reset()
	for ; r.next < r.vertex.Count && r.chunk.Len() < max; r.next++ {
		if err := r.r.ReadRow(r.vertex, &r.row); err != nil {
			return nil, errors.Wrapf(err, "ray %d", r.next)
		}
		r.chunk.Append(r.columns.ray(r.row.Values))
	}
	return r.chunk, nil
}

func (r *plyReader) Close() error {
	return r.f.Close()
}

func (c plyColumns) ray(v []float64) Ray {
	end := r3.Vector{X: v[c.pos[0]], Y: v[c.pos[1]], Z: v[c.pos[2]]}
	normal := r3.Vector{X: v[c.normal[0]], Y: v[c.normal[1]], Z: v[c.normal[2]]}
	ray := Ray{
		Start: end.Add(normal),
		End:   end,
		Color: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	}
	if c.time >= 0 {
		ray.Time = v[c.time]
	}
	channels := [4]*uint8{&ray.Color.R, &ray.Color.G, &ray.Color.B, &ray.Color.A}
	for i, idx := range c.rgba {
		if idx >= 0 {
			*channels[i] = uint8(v[idx])
		}
	}
	return ray
}

type plyWriter struct {
	f      *os.File
	w      *ply.Writer
	header ply.Header
	count  int
	row    ply.Row
}

// NewPLYWriter creates fn and writes rays to it as binary little endian ray PLY.
func NewPLYWriter(fn string) (Writer, error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return nil, err
	}
	pw := &plyWriter{
		f: f,
		header: ply.Header{
			Format:    ply.BinaryLittleEndian,
			Comments:  []string{"ray cloud"},
			Elements:  []ply.Element{rayElement},
			PadCounts: true,
		},
		row: ply.Row{Values: make([]float64, len(rayElement.Properties))},
	}
	if _, err := pw.header.WriteTo(f); err != nil {
		return nil, multierr.Combine(err, f.Close())
	}
	pw.w = ply.NewWriter(f, ply.BinaryLittleEndian)
	return pw, nil
}

func (w *plyWriter) WriteChunk(c *Chunk) error {
	el := &w.header.Elements[0]
	for i := 0; i < c.Len(); i++ {
		end := c.Ends[i]
		normal := c.Starts[i].Sub(end)
		col := c.Colors[i]
		values := w.row.Values
		values[0], values[1], values[2] = end.X, end.Y, end.Z
		values[3] = c.Times[i]
		values[4], values[5], values[6] = normal.X, normal.Y, normal.Z
		values[7], values[8], values[9], values[10] = float64(col.R), float64(col.G), float64(col.B), float64(col.A)
		if err := w.w.WriteRow(el, &w.row); err != nil {
			return err
		}
	}
	w.count += c.Len()
	instrumentRaysWritten(c.Len())
	return nil
}

// Close finishes the body and rewrites the header with the final ray count.
func (w *plyWriter) Close() (err error) {
	defer func() {
		err = multierr.Combine(err, w.f.Close())
	}()
	if err := w.w.Flush(); err != nil {
		return err
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	w.header.Elements[0].Count = w.count
	bw := bufio.NewWriter(w.f)
	if _, err := w.header.WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}
