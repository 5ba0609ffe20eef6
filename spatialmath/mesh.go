package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Mesh is an indexed triangle surface. Containment queries assume the surface
// is closed and consistently wound, with normals facing out.
type Mesh struct {
	vertices []r3.Vector
	indices  [][3]int
}

// NewMesh returns a mesh over the given vertices and index triples. Every
// index must reference an existing vertex.
func NewMesh(vertices []r3.Vector, indices [][3]int) (*Mesh, error) {
	for i, tri := range indices {
		for _, idx := range tri {
			if idx < 0 || idx >= len(vertices) {
				return nil, errors.Errorf("triangle %d references vertex %d but mesh has %d vertices", i, idx, len(vertices))
			}
		}
	}
	return &Mesh{vertices: vertices, indices: indices}, nil
}

// Vertices returns the vertex list.
func (m *Mesh) Vertices() []r3.Vector {
	return m.vertices
}

// Indices returns the triangle index list.
func (m *Mesh) Indices() [][3]int {
	return m.indices
}

// NumTriangles returns the length of the index list.
func (m *Mesh) NumTriangles() int {
	return len(m.indices)
}

// Triangle builds triangle i with a unit normal.
func (m *Mesh) Triangle(i int) *Triangle {
	ind := m.indices[i]
	return NewTriangle(m.vertices[ind[0]], m.vertices[ind[1]], m.vertices[ind[2]])
}

// Triangles builds every triangle of the mesh.
func (m *Mesh) Triangles() []*Triangle {
	tris := make([]*Triangle, len(m.indices))
	for i := range m.indices {
		tris[i] = m.Triangle(i)
	}
	return tris
}

// Bounds returns the box around every referenced vertex.
func (m *Mesh) Bounds() Cuboid {
	bounds := NewEmptyCuboid()
	for _, ind := range m.indices {
		for _, idx := range ind {
			bounds = bounds.Expand(m.vertices[idx])
		}
	}
	return bounds
}

// VertexNormals averages the area weighted face normals around each vertex.
// Unreferenced vertices get a zero normal.
func (m *Mesh) VertexNormals() []r3.Vector {
	normals := make([]r3.Vector, len(m.vertices))
	for _, ind := range m.indices {
		a, b, c := m.vertices[ind[0]], m.vertices[ind[1]], m.vertices[ind[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range ind {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// Reduce drops vertices that no triangle references, renumbering the index list.
func (m *Mesh) Reduce() {
	newIDs := make([]int, len(m.vertices))
	for i := range newIDs {
		newIDs[i] = -1
	}
	verts := make([]r3.Vector, 0, len(m.vertices))
	for t := range m.indices {
		for j := 0; j < 3; j++ {
			old := m.indices[t][j]
			if newIDs[old] == -1 {
				newIDs[old] = len(verts)
				verts = append(verts, m.vertices[old])
			}
			m.indices[t][j] = newIDs[old]
		}
	}
	m.vertices = verts
}

// Transform returns a copy of the mesh with every vertex moved by pose.
func (m *Mesh) Transform(pose Pose) *Mesh {
	verts := make([]r3.Vector, len(m.vertices))
	for i, v := range m.vertices {
		verts[i] = pose.Transform(v)
	}
	indices := make([][3]int, len(m.indices))
	copy(indices, m.indices)
	return &Mesh{vertices: verts, indices: indices}
}

// Moments returns the per axis vertex mean followed by the per axis population
// standard deviation.
func (m *Mesh) Moments() [6]float64 {
	var out [6]float64
	if len(m.vertices) == 0 {
		return out
	}
	axis := make([]float64, len(m.vertices))
	for a := 0; a < 3; a++ {
		for i, v := range m.vertices {
			axis[i] = [3]float64{v.X, v.Y, v.Z}[a]
		}
		out[a], out[a+3] = stat.PopMeanStdDev(axis, nil)
	}
	return out
}

// NewCubeMesh returns a closed, outward facing cube of the given side centered at center.
func NewCubeMesh(center r3.Vector, side float64) *Mesh {
	h := side / 2
	verts := make([]r3.Vector, 0, 8)
	for i := 0; i < 8; i++ {
		off := r3.Vector{X: -h, Y: -h, Z: -h}
		if i&1 != 0 {
			off.X = h
		}
		if i&2 != 0 {
			off.Y = h
		}
		if i&4 != 0 {
			off.Z = h
		}
		verts = append(verts, center.Add(off))
	}
	indices := [][3]int{
		{0, 2, 3}, {0, 3, 1}, // -z
		{4, 5, 7}, {4, 7, 6}, // +z
		{0, 1, 5}, {0, 5, 4}, // -y
		{2, 6, 7}, {2, 7, 3}, // +y
		{0, 4, 6}, {0, 6, 2}, // -x
		{1, 3, 7}, {1, 7, 5}, // +x
	}
	return &Mesh{vertices: verts, indices: indices}
}
