package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// TriangleMesh is an indexed triangle mesh. Points are shared between
// triangles; Normals is either empty or holds one normal per point.
type TriangleMesh struct {
	// Points holds the vertex positions
	Points []r3.Vec

	// Triangles holds three point indices per face
	Triangles [][3]int

	// Normals holds optional per-vertex normals
	Normals []r3.Vec
}

// NumPoints returns the number of vertices.
func (m *TriangleMesh) NumPoints() int {
	return len(m.Points)
}

// NumTriangles returns the number of faces.
func (m *TriangleMesh) NumTriangles() int {
	return len(m.Triangles)
}

// IsEmpty reports whether the mesh has no vertices.
func (m *TriangleMesh) IsEmpty() bool {
	return m == nil || len(m.Points) == 0
}

// Clone returns a deep copy of the mesh.
func (m *TriangleMesh) Clone() *TriangleMesh {
	c := &TriangleMesh{
		Points:    make([]r3.Vec, len(m.Points)),
		Triangles: make([][3]int, len(m.Triangles)),
	}
	copy(c.Points, m.Points)
	copy(c.Triangles, m.Triangles)
	if len(m.Normals) > 0 {
		c.Normals = make([]r3.Vec, len(m.Normals))
		copy(c.Normals, m.Normals)
	}
	return c
}

// Translated returns a copy of the mesh moved by v.
func (m *TriangleMesh) Translated(v r3.Vec) *TriangleMesh {
	c := m.Clone()
	for i := range c.Points {
		c.Points[i] = r3.Add(c.Points[i], v)
	}
	return c
}

// Bounds returns the axis-aligned bounding box of the vertices.
// An empty mesh yields a zero box.
func (m *TriangleMesh) Bounds() r3.Box {
	if len(m.Points) == 0 {
		return r3.Box{}
	}
	min := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range m.Points {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return r3.Box{Min: min, Max: max}
}

// Append merges o into m, offsetting o's triangle indices.
func (m *TriangleMesh) Append(o *TriangleMesh) {
	if o == nil {
		return
	}
	offset := len(m.Points)
	m.Points = append(m.Points, o.Points...)
	for _, tri := range o.Triangles {
		m.Triangles = append(m.Triangles, [3]int{tri[0] + offset, tri[1] + offset, tri[2] + offset})
	}
	// Normals only survive when both sides carry them
	if len(m.Normals) == offset && len(o.Normals) == len(o.Points) {
		m.Normals = append(m.Normals, o.Normals...)
	} else {
		m.Normals = nil
	}
}

// ComputeNormals fills Normals with area-weighted vertex normals.
func (m *TriangleMesh) ComputeNormals() {
	normals := make([]r3.Vec, len(m.Points))
	for _, tri := range m.Triangles {
		a, b, c := m.Points[tri[0]], m.Points[tri[1]], m.Points[tri[2]]
		// the cross product length is twice the area, which gives the weighting
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		for _, idx := range tri {
			normals[idx] = r3.Add(normals[idx], n)
		}
	}
	for i, n := range normals {
		if l := r3.Norm(n); l > 0 {
			normals[i] = r3.Scale(1/l, n)
		}
	}
	m.Normals = normals
}

// PolyLine is a set of line segments over a shared point list. It carries the
// control polygon, iso-contours and slice intersections.
type PolyLine struct {
	Points []r3.Vec
	Lines  [][2]int
}

// NumLines returns the number of segments.
func (p *PolyLine) NumLines() int {
	return len(p.Lines)
}

// Length returns the summed length of all segments.
func (p *PolyLine) Length() float64 {
	total := 0.0
	for _, l := range p.Lines {
		total += r3.Norm(r3.Sub(p.Points[l[1]], p.Points[l[0]]))
	}
	return total
}
