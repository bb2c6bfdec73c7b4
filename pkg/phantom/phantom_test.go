package phantom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
)

func TestTumorMesh(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping marching cubes in short mode")
	}
	center := r3.Vec{X: 1, Y: -0.5, Z: 0.25}
	s, err := Tumor(center, 0.3)
	require.NoError(t, err)

	mesh := Mesh(s, 24)
	require.False(t, mesh.IsEmpty())
	assert.Greater(t, mesh.NumTriangles(), 100)
	for _, p := range mesh.Points {
		d := r3.Norm(r3.Sub(p, center))
		assert.InDelta(t, 0.3, d, 0.05)
	}
}

func TestParenchymaBounds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping marching cubes in short mode")
	}
	s, err := Parenchyma(r3.Vec{X: 2, Y: 1, Z: 1})
	require.NoError(t, err)

	b := Mesh(s, 32).Bounds()
	assert.InDelta(t, -1, b.Min.X, 0.1)
	assert.InDelta(t, 1, b.Max.X, 0.1)
	assert.InDelta(t, -0.5, b.Min.Y, 0.1)
	assert.InDelta(t, 0.5, b.Max.Z, 0.1)
}

func TestVesselMesh(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping marching cubes in short mode")
	}
	s, err := Vessel(r3.Vec{}, 0.1, 1)
	require.NoError(t, err)

	b := Mesh(s, 32).Bounds()
	assert.InDelta(t, 0.5, b.Max.Z, 0.1)
	assert.InDelta(t, 0.1, b.Max.X, 0.05)
	assert.Less(t, math.Abs(b.Min.X+b.Max.X), 0.05)
}

func TestInvalidShapes(t *testing.T) {
	_, err := Tumor(r3.Vec{}, 0)
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = Vessel(r3.Vec{}, 0.1, -1)
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = Parenchyma(r3.Vec{X: 1, Y: 0, Z: 1})
	assert.ErrorIs(t, err, ErrInvalidShape)

	spec := DefaultSpec()
	spec.Tumors = append(spec.Tumors, Sphere{Radius: -1})
	_, err = Build(spec)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestBuildDefault(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping marching cubes in short mode")
	}
	spec := DefaultSpec()
	spec.Cells = 20
	anatomy, err := Build(spec)
	require.NoError(t, err)
	require.Len(t, anatomy, 3)

	assert.Equal(t, "parenchyma", anatomy[0].ID())
	assert.Equal(t, models.Parenchyma, anatomy[0].Structure())
	assert.Equal(t, "tumor-1", anatomy[1].ID())
	assert.Equal(t, models.Tumor, anatomy[1].Structure())
	assert.Equal(t, "vessel", anatomy[2].ID())
	for _, a := range anatomy {
		assert.False(t, a.Mesh().IsEmpty(), a.ID())
	}
}
