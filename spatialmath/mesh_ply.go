package spatialmath

import (
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/raycloud/ply"
)

// NewMeshFromPLYFile reads a mesh from a PLY file.
func NewMeshFromPLYFile(fn string) (*Mesh, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	m, err := ReadMeshPLY(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading mesh %q", fn)
	}
	return m, nil
}

// ReadMeshPLY decodes the vertex and face elements of a PLY stream. Faces with
// more than three corners are split into a triangle fan.
func ReadMeshPLY(in io.Reader) (*Mesh, error) {
	r, err := ply.NewReader(in)
	if err != nil {
		return nil, err
	}
	var (
		verts   []r3.Vector
		indices [][3]int
		row     ply.Row
	)
	for i := range r.Header.Elements {
		el := &r.Header.Elements[i]
		switch el.Name {
		case "vertex":
			xi, yi, zi := el.PropertyIndex("x"), el.PropertyIndex("y"), el.PropertyIndex("z")
			if xi < 0 || yi < 0 || zi < 0 {
				return nil, errors.New("mesh vertex element needs x, y and z")
			}
			verts = make([]r3.Vector, 0, el.Count)
			for j := 0; j < el.Count; j++ {
				if err := r.ReadRow(el, &row); err != nil {
					return nil, err
				}
				verts = append(verts, r3.Vector{X: row.Values[xi], Y: row.Values[yi], Z: row.Values[zi]})
			}
		case "face":
			li := el.PropertyIndex("vertex_indices")
			if li < 0 {
				li = el.PropertyIndex("vertex_index")
			}
			if li < 0 || !el.Properties[li].IsList {
				return nil, errors.New("mesh face element needs a vertex_indices list")
			}
			indices = make([][3]int, 0, el.Count)
			for j := 0; j < el.Count; j++ {
				if err := r.ReadRow(el, &row); err != nil {
					return nil, err
				}
				poly := row.Lists[li]
				for k := 2; k < len(poly); k++ {
					indices = append(indices, [3]int{int(poly[0]), int(poly[k-1]), int(poly[k])})
				}
			}
		default:
			if err := r.SkipElement(el); err != nil {
				return nil, err
			}
		}
	}
	return NewMesh(verts, indices)
}

// WriteMeshPLY encodes the mesh as a binary little endian PLY.
func WriteMeshPLY(m *Mesh, out io.Writer) error {
	h := &ply.Header{
		Format: ply.BinaryLittleEndian,
		Elements: []ply.Element{
			{Name: "vertex", Count: len(m.vertices), Properties: []ply.Property{
				{Name: "x", Type: "double"}, {Name: "y", Type: "double"}, {Name: "z", Type: "double"},
			}},
			{Name: "face", Count: len(m.indices), Properties: []ply.Property{
				{Name: "vertex_indices", Type: "int", IsList: true, CountType: "uchar"},
			}},
		},
	}
	if _, err := h.WriteTo(out); err != nil {
		return err
	}
	w := ply.NewWriter(out, h.Format)
	row := ply.Row{Values: make([]float64, 3), Lists: make([][]float64, 3)}
	for _, v := range m.vertices {
		row.Values[0], row.Values[1], row.Values[2] = v.X, v.Y, v.Z
		if err := w.WriteRow(&h.Elements[0], &row); err != nil {
			return err
		}
	}
	face := ply.Row{Values: make([]float64, 1), Lists: [][]float64{make([]float64, 3)}}
	for _, ind := range m.indices {
		for j := 0; j < 3; j++ {
			face.Lists[0][j] = float64(ind[j])
		}
		if err := w.WriteRow(&h.Elements[1], &face); err != nil {
			return err
		}
	}
	return w.Flush()
}
