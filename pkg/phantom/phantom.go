// Package phantom builds synthetic anatomy from signed distance fields so
// plans can be exercised without patient data.
package phantom

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/logging"
	"resectionplan/internal/models"
	"resectionplan/pkg/stl"
)

// DefaultCells is the marching cubes resolution along the longest axis.
const DefaultCells = 48

// ErrInvalidShape is returned for non-positive dimensions.
var ErrInvalidShape = errors.New("invalid phantom dimensions")

func vec(v r3.Vec) v3.Vec { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Tumor is a sphere of the given radius.
func Tumor(center r3.Vec, radius float64) (sdf.SDF3, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("%w: tumor radius %g", ErrInvalidShape, radius)
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, err
	}
	return sdf.Transform3D(s, sdf.Translate3d(vec(center))), nil
}

// Vessel is a cylinder of the given length running along z.
func Vessel(center r3.Vec, radius, length float64) (sdf.SDF3, error) {
	if radius <= 0 || length <= 0 {
		return nil, fmt.Errorf("%w: vessel radius %g length %g", ErrInvalidShape, radius, length)
	}
	s, err := sdf.Cylinder3D(length, radius, 0)
	if err != nil {
		return nil, err
	}
	return sdf.Transform3D(s, sdf.Translate3d(vec(center))), nil
}

// Parenchyma is a rounded box centred at the origin.
func Parenchyma(size r3.Vec) (sdf.SDF3, error) {
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("%w: parenchyma size %v", ErrInvalidShape, size)
	}
	round := 0.2 * math.Min(size.X, math.Min(size.Y, size.Z))
	return sdf.Box3D(vec(size), round)
}

// Mesh tessellates s with uniform marching cubes and welds the result into
// an indexed mesh.
func Mesh(s sdf.SDF3, cells int) *models.TriangleMesh {
	if cells <= 0 {
		cells = DefaultCells
	}
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))
	facets := make([]stl.Triangle, 0, len(triangles))
	for _, tri := range triangles {
		n := tri.Normal()
		facets = append(facets, stl.Triangle{
			Normal:  [3]float32{float32(n.X), float32(n.Y), float32(n.Z)},
			Vertex1: [3]float32{float32(tri[0].X), float32(tri[0].Y), float32(tri[0].Z)},
			Vertex2: [3]float32{float32(tri[1].X), float32(tri[1].Y), float32(tri[1].Z)},
			Vertex3: [3]float32{float32(tri[2].X), float32(tri[2].Y), float32(tri[2].Z)},
		})
	}
	mesh := stl.ToMesh(facets)
	logging.Logger().Debug("phantom meshed", "cells", cells, "points", mesh.NumPoints(), "triangles", mesh.NumTriangles())
	return mesh
}

// Spec describes a complete synthetic case: one organ, tumours inside it and
// an optional vessel.
type Spec struct {
	Size   r3.Vec
	Tumors []Sphere
	Vessel *Cylinder
	Cells  int
}

// Sphere is a tumour description.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// Cylinder is a vessel description.
type Cylinder struct {
	Center r3.Vec
	Radius float64
	Length float64
}

// DefaultSpec is a 160x120x80 mm organ with one tumour off-centre and a
// vessel through the other half.
func DefaultSpec() Spec {
	return Spec{
		Size:   r3.Vec{X: 160, Y: 120, Z: 80},
		Tumors: []Sphere{{Center: r3.Vec{X: 35, Y: 20, Z: 0}, Radius: 15}},
		Vessel: &Cylinder{Center: r3.Vec{X: -35}, Radius: 6, Length: 70},
		Cells:  DefaultCells,
	}
}

// Build meshes every structure of spec into anatomy with IDs "parenchyma",
// "tumor-1".. and "vessel".
func Build(spec Spec) ([]*models.Anatomy, error) {
	var out []*models.Anatomy

	organ, err := Parenchyma(spec.Size)
	if err != nil {
		return nil, err
	}
	out = append(out, models.NewAnatomy("parenchyma", models.Parenchyma, Mesh(organ, spec.Cells)))

	for i, t := range spec.Tumors {
		s, err := Tumor(t.Center, t.Radius)
		if err != nil {
			return nil, fmt.Errorf("tumor %d: %w", i+1, err)
		}
		id := fmt.Sprintf("tumor-%d", i+1)
		out = append(out, models.NewAnatomy(id, models.Tumor, Mesh(s, spec.Cells)))
	}

	if v := spec.Vessel; v != nil {
		s, err := Vessel(v.Center, v.Radius, v.Length)
		if err != nil {
			return nil, err
		}
		out = append(out, models.NewAnatomy("vessel", models.Vessel, Mesh(s, spec.Cells)))
	}
	return out, nil
}
