package bezier

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func evaluatorFor(t *testing.T, net *ControlNet, rx, ry int) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(rx, ry)
	require.NoError(t, err)
	rows, cols := net.Dims()
	require.NoError(t, e.SetControlPoints(rows, cols, net.Points()))
	return e
}

func TestFlatNetGivesFlatSurface(t *testing.T) {
	for _, dims := range [][2]int{{2, 2}, {3, 4}, {4, 4}, {6, 3}} {
		for _, res := range [][2]int{{1, 1}, {2, 7}, {25, 25}} {
			net, err := NewControlNet(dims[0], dims[1])
			require.NoError(t, err)
			mesh := evaluatorFor(t, net, res[0], res[1]).Evaluate()

			require.Equal(t, res[0]*res[1], mesh.NumPoints())
			for _, p := range mesh.Points {
				if p.Z != 0 {
					t.Fatalf("%v grid at %v resolution: point %v off plane", dims, res, p)
				}
			}
		}
	}
}

func TestTriangleCount(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	mesh := evaluatorFor(t, net, 10, 7).Evaluate()
	assert.Equal(t, 2*9*6, mesh.NumTriangles())

	mesh = evaluatorFor(t, net, 1, 7).Evaluate()
	assert.Equal(t, 0, mesh.NumTriangles())
}

func TestCornerInterpolation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, dims := range [][2]int{{2, 2}, {4, 4}, {3, 5}} {
		net, _ := NewControlNet(dims[0], dims[1])
		pts := net.Points()
		for k := range pts {
			pts[k] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64() * 10}
		}
		require.NoError(t, net.SetPoints(pts))

		const rx, ry = 9, 13
		mesh := evaluatorFor(t, net, rx, ry).Evaluate()
		m, n := dims[0], dims[1]

		assert.InDelta(t, 0, r3.Norm(r3.Sub(mesh.Points[0], net.Point(0, 0))), 1e-12)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(mesh.Points[(rx-1)*ry], net.Point(m-1, 0))), 1e-12)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(mesh.Points[ry-1], net.Point(0, n-1))), 1e-12)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(mesh.Points[rx*ry-1], net.Point(m-1, n-1))), 1e-12)
	}
}

func TestPointMatchesSamples(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	net.SetPoint(1, 2, r3.Vec{X: 0, Y: 0.2, Z: 3})
	e := evaluatorFor(t, net, 5, 5)
	mesh := e.Evaluate()

	p := e.Point(0.25, 0.75)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(p, mesh.Points[1*5+3])), 1e-12)
	assert.Greater(t, p.Z, 0.0)
}

func TestTranslationInvariance(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	net.SetPoint(2, 1, r3.Vec{X: 0.1, Y: -0.2, Z: 1.5})
	before := evaluatorFor(t, net, 12, 12).Evaluate()

	v := r3.Vec{X: 1, Y: -2, Z: 0.5}
	net.TranslateAll(v)
	after := evaluatorFor(t, net, 12, 12).Evaluate()

	for k := range before.Points {
		want := r3.Add(before.Points[k], v)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(want, after.Points[k])), 1e-12)
	}
}

func TestErrorsKeepPreviousState(t *testing.T) {
	_, err := NewEvaluator(0, 10)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	net, _ := NewControlNet(4, 4)
	e := evaluatorFor(t, net, 4, 4)
	first := e.Evaluate()

	assert.ErrorIs(t, e.SetResolution(3, 0), ErrInvalidResolution)
	assert.ErrorIs(t, e.SetControlPoints(1, 4, make([]r3.Vec, 4)), ErrInvalidGrid)
	assert.ErrorIs(t, e.SetControlPoints(4, 4, make([]r3.Vec, 15)), ErrInvalidGrid)

	rx, ry := e.Resolution()
	assert.Equal(t, 4, rx)
	assert.Equal(t, 4, ry)
	assert.False(t, e.Dirty())
	assert.Same(t, first, e.Evaluate())
}

func TestEvaluateIsDirtyDriven(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	e := evaluatorFor(t, net, 8, 8)
	first := e.Evaluate()
	assert.Same(t, first, e.Evaluate())

	net.SetPoint(1, 1, r3.Vec{Z: 1})
	require.NoError(t, e.SetControlPoints(4, 4, net.Points()))
	second := e.Evaluate()
	assert.NotSame(t, first, second)
	assert.Equal(t, 0.0, first.Points[9].Z, "earlier snapshot must not change")

	require.NoError(t, e.SetResolution(8, 8))
	assert.Same(t, second, e.Evaluate())
}

func TestNormals(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	e := evaluatorFor(t, net, 6, 6)
	assert.Empty(t, e.Evaluate().Normals)

	e.SetComputeNormals(true)
	mesh := e.Evaluate()
	require.Len(t, mesh.Normals, 36)
	for _, n := range mesh.Normals {
		assert.InDelta(t, 1.0, n.Z, 1e-12)
	}
}

func TestEmptyEvaluator(t *testing.T) {
	e, err := NewEvaluator(3, 3)
	require.NoError(t, err)
	assert.True(t, e.Evaluate().IsEmpty())
	assert.Equal(t, r3.Vec{}, e.Point(0.5, 0.5))
}
