package scene

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
	"resectionplan/pkg/proximity"
)

// ErrDegeneratePlane is returned for a plane with a zero normal.
var ErrDegeneratePlane = errors.New("plane normal is zero")

// Plane is a slice plane through Origin.
type Plane struct {
	Origin r3.Vec
	Normal r3.Vec
}

// SliceIntersection returns the polyline where plane cuts the displayed
// surface of a bound entity, as shown in 2D slice views.
func (b *Binding) SliceIntersection(id string, plane Plane) (*models.PolyLine, error) {
	p, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	return Intersect(p.Widget.Surface(), plane)
}

// Intersect cuts mesh with plane. The cut is the zero iso-line of the signed
// distance to the plane.
func Intersect(mesh *models.TriangleMesh, plane Plane) (*models.PolyLine, error) {
	l := r3.Norm(plane.Normal)
	if l == 0 {
		return nil, ErrDegeneratePlane
	}
	n := r3.Scale(1/l, plane.Normal)
	signed := make([]float64, mesh.NumPoints())
	for i, v := range mesh.Points {
		signed[i] = r3.Dot(r3.Sub(v, plane.Origin), n)
	}
	return proximity.Contour(mesh, signed, 0), nil
}
