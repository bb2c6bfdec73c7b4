package bezier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDefaultGrid(t *testing.T) {
	net, err := NewControlNet(4, 4)
	require.NoError(t, err)

	assert.Equal(t, r3.Vec{X: -0.5, Y: -0.5}, net.Point(0, 0))
	assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5}, net.Point(3, 3))
	assert.InDelta(t, -0.5+1.0/3, net.Point(1, 0).X, 1e-12)
	assert.InDelta(t, -0.5+2.0/3, net.Point(0, 2).Y, 1e-12)
	for _, p := range net.Points() {
		assert.Equal(t, 0.0, p.Z)
	}
}

func TestInvalidGridKeepsPrevious(t *testing.T) {
	_, err := NewControlNet(1, 4)
	assert.ErrorIs(t, err, ErrInvalidGrid)

	net, err := NewControlNet(3, 3)
	require.NoError(t, err)
	net.SetPoint(1, 1, r3.Vec{Z: 2})

	assert.ErrorIs(t, net.Resize(0, 5), ErrInvalidGrid)
	rows, cols := net.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 2.0, net.Point(1, 1).Z)

	assert.ErrorIs(t, net.SetPoints(make([]r3.Vec, 4)), ErrInvalidGrid)
	assert.Equal(t, 2.0, net.Point(1, 1).Z)
}

func TestPartition(t *testing.T) {
	tests := []struct {
		m, n             int
		boundary, inside int
	}{
		{4, 4, 12, 4},
		{2, 2, 4, 0},
		{3, 5, 12, 3},
		{5, 5, 16, 9},
	}
	for _, tt := range tests {
		net, err := NewControlNet(tt.m, tt.n)
		require.NoError(t, err)

		b, in := net.BoundaryIndices(), net.InteriorIndices()
		assert.Len(t, b, tt.boundary, "%dx%d boundary", tt.m, tt.n)
		assert.Len(t, in, tt.inside, "%dx%d interior", tt.m, tt.n)

		for _, idx := range b {
			assert.Equal(t, Boundary, net.GroupOf(idx))
		}
		for _, idx := range in {
			assert.Equal(t, Interior, net.GroupOf(idx))
		}
	}

	net, _ := NewControlNet(4, 4)
	assert.Equal(t, []Index{{1, 1}, {1, 2}, {2, 1}, {2, 2}}, net.InteriorIndices())
}

func TestPartitionRebuiltOnResize(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	assert.Len(t, net.InteriorIndices(), 4)

	require.NoError(t, net.Resize(2, 2))
	assert.Empty(t, net.InteriorIndices())
	assert.Len(t, net.BoundaryIndices(), 4)
}

func TestLinesDependOnlyOnSize(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	lines := net.Lines()
	assert.Len(t, lines, 24)

	net.TranslateAll(r3.Vec{X: 3})
	net.SetPoint(2, 2, r3.Vec{Z: 9})
	assert.Equal(t, lines, net.Lines())

	for _, l := range lines {
		a, b := net.IndexOf(l[0]), net.IndexOf(l[1])
		dr, dc := b.Row-a.Row, b.Col-a.Col
		assert.Equal(t, 1, dr+dc, "line %v must join neighbours", l)
	}
}

func TestTranslate(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	before := net.Points()
	v := r3.Vec{X: 0.25, Y: -1, Z: 2}

	net.Translate(net.Members(Interior), v)
	for k, p := range net.Points() {
		idx := net.IndexOf(k)
		if net.GroupOf(idx) == Interior {
			assert.Equal(t, r3.Add(before[k], v), p)
		} else {
			assert.Equal(t, before[k], p)
		}
	}
}

func TestModifiedCounter(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	m := net.Modified()
	net.SetPoint(0, 0, r3.Vec{})
	assert.Greater(t, net.Modified(), m)
}

func TestPlace(t *testing.T) {
	net, _ := NewControlNet(3, 3)
	net.Place(r3.Box{Min: r3.Vec{X: 0, Y: 10, Z: 2}, Max: r3.Vec{X: 20, Y: 30, Z: 6}})

	assert.Equal(t, r3.Vec{X: 0, Y: 10, Z: 4}, net.Point(0, 0))
	assert.Equal(t, r3.Vec{X: 10, Y: 20, Z: 4}, net.Point(1, 1))
	assert.Equal(t, r3.Vec{X: 20, Y: 30, Z: 4}, net.Point(2, 2))
}

func TestOutOfRangePanics(t *testing.T) {
	net, _ := NewControlNet(4, 4)
	assert.Panics(t, func() { net.Point(4, 0) })
	assert.Panics(t, func() { net.SetPoint(0, -1, r3.Vec{}) })
	assert.Panics(t, func() { net.GroupOf(Index{Row: 0, Col: 7}) })
}
