// Package bezier implements tensor-product Bézier surfaces: the control net
// that a user edits and the evaluator that samples it into a triangle mesh.
package bezier

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidGrid is returned for grids smaller than 2×2 or point slices whose
// length does not match the grid size.
var ErrInvalidGrid = errors.New("invalid control grid")

// Index addresses a control point by row and column.
type Index struct {
	Row, Col int
}

// Group is one of the two disjoint sets used for symmetric edits.
type Group int

const (
	// Boundary holds every point on the first or last row or column
	Boundary Group = iota
	// Interior holds everything else
	Interior
)

func (g Group) String() string {
	if g == Interior {
		return "interior"
	}
	return "boundary"
}

// ControlNet owns an M×N grid of control points stored row-major. The grid
// size only changes through Resize; every other operation edits positions.
type ControlNet struct {
	rows, cols int
	points     []r3.Vec

	// derived from (rows, cols) only
	lines       [][2]int
	boundary    []Index
	interior    []Index
	partitioned bool

	modified uint64
}

// NewControlNet creates an m×n net laid out as the default planar grid.
func NewControlNet(m, n int) (*ControlNet, error) {
	c := &ControlNet{}
	if err := c.Resize(m, n); err != nil {
		return nil, err
	}
	return c, nil
}

// Resize changes the grid size and resets every point to the default flat
// grid: centred on the origin, spanning -0.5..0.5 in x along rows and in y
// along columns, at z = 0. On error the previous grid is kept.
func (c *ControlNet) Resize(m, n int) error {
	if m < 2 || n < 2 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGrid, m, n)
	}
	c.rows, c.cols = m, n
	c.points = make([]r3.Vec, m*n)
	c.Place(r3.Box{
		Min: r3.Vec{X: -0.5, Y: -0.5},
		Max: r3.Vec{X: 0.5, Y: 0.5},
	})
	c.lines = buildLines(m, n)
	c.boundary, c.interior = nil, nil
	c.partitioned = false
	return nil
}

// Place lays the planar grid over the x/y extent of bounds at the box's mid
// height. The grid size is unchanged.
func (c *ControlNet) Place(bounds r3.Box) {
	dx := (bounds.Max.X - bounds.Min.X) / float64(c.rows-1)
	dy := (bounds.Max.Y - bounds.Min.Y) / float64(c.cols-1)
	z := (bounds.Min.Z + bounds.Max.Z) / 2
	for i := 0; i < c.rows; i++ {
		for j := 0; j < c.cols; j++ {
			c.points[i*c.cols+j] = r3.Vec{
				X: bounds.Min.X + float64(i)*dx,
				Y: bounds.Min.Y + float64(j)*dy,
				Z: z,
			}
		}
	}
	c.modified++
}

// buildLines connects horizontally and vertically adjacent points.
func buildLines(m, n int) [][2]int {
	lines := make([][2]int, 0, m*(n-1)+n*(m-1))
	for i := 0; i < m; i++ {
		for j := 0; j < n-1; j++ {
			lines = append(lines, [2]int{i*n + j, i*n + j + 1})
		}
	}
	for j := 0; j < n; j++ {
		for i := 0; i < m-1; i++ {
			lines = append(lines, [2]int{i*n + j, (i+1)*n + j})
		}
	}
	return lines
}

// Dims returns the grid size.
func (c *ControlNet) Dims() (rows, cols int) {
	return c.rows, c.cols
}

// Len returns the number of control points.
func (c *ControlNet) Len() int {
	return len(c.points)
}

// Modified returns a counter incremented on every position or size change.
func (c *ControlNet) Modified() uint64 {
	return c.modified
}

// Flat converts an index into its row-major offset. It panics when the
// index is outside the grid.
func (c *ControlNet) Flat(idx Index) int {
	if idx.Row < 0 || idx.Row >= c.rows || idx.Col < 0 || idx.Col >= c.cols {
		panic(fmt.Sprintf("bezier: index (%d,%d) out of range for %dx%d grid", idx.Row, idx.Col, c.rows, c.cols))
	}
	return idx.Row*c.cols + idx.Col
}

// IndexOf converts a row-major offset back into an Index.
func (c *ControlNet) IndexOf(flat int) Index {
	if flat < 0 || flat >= len(c.points) {
		panic(fmt.Sprintf("bezier: flat index %d out of range for %d points", flat, len(c.points)))
	}
	return Index{Row: flat / c.cols, Col: flat % c.cols}
}

// Point returns the position of control point (i, j).
func (c *ControlNet) Point(i, j int) r3.Vec {
	return c.points[c.Flat(Index{Row: i, Col: j})]
}

// SetPoint moves control point (i, j) to p.
func (c *ControlNet) SetPoint(i, j int, p r3.Vec) {
	c.points[c.Flat(Index{Row: i, Col: j})] = p
	c.modified++
}

// Points returns a copy of all positions in row-major order.
func (c *ControlNet) Points() []r3.Vec {
	out := make([]r3.Vec, len(c.points))
	copy(out, c.points)
	return out
}

// SetPoints replaces all positions. The slice must hold rows*cols points in
// row-major order.
func (c *ControlNet) SetPoints(pts []r3.Vec) error {
	if len(pts) != len(c.points) {
		return fmt.Errorf("%w: got %d points for %dx%d grid", ErrInvalidGrid, len(pts), c.rows, c.cols)
	}
	copy(c.points, pts)
	c.modified++
	return nil
}

// Lines returns the control polygon connectivity as pairs of flat indices.
// The returned slice is shared and must not be modified.
func (c *ControlNet) Lines() [][2]int {
	return c.lines
}

func (c *ControlNet) partition() {
	if c.partitioned {
		return
	}
	c.boundary = c.boundary[:0]
	c.interior = c.interior[:0]
	for i := 0; i < c.rows; i++ {
		for j := 0; j < c.cols; j++ {
			idx := Index{Row: i, Col: j}
			if c.groupOf(idx) == Boundary {
				c.boundary = append(c.boundary, idx)
			} else {
				c.interior = append(c.interior, idx)
			}
		}
	}
	c.partitioned = true
}

func (c *ControlNet) groupOf(idx Index) Group {
	if idx.Row == 0 || idx.Row == c.rows-1 || idx.Col == 0 || idx.Col == c.cols-1 {
		return Boundary
	}
	return Interior
}

// BoundaryIndices returns the perimeter indices in row-major order.
func (c *ControlNet) BoundaryIndices() []Index {
	c.partition()
	return append([]Index(nil), c.boundary...)
}

// InteriorIndices returns the non-perimeter indices in row-major order.
func (c *ControlNet) InteriorIndices() []Index {
	c.partition()
	return append([]Index(nil), c.interior...)
}

// GroupOf returns the group containing idx.
func (c *ControlNet) GroupOf(idx Index) Group {
	c.Flat(idx)
	return c.groupOf(idx)
}

// Members returns every index of group g.
func (c *ControlNet) Members(g Group) []Index {
	if g == Interior {
		return c.InteriorIndices()
	}
	return c.BoundaryIndices()
}

// Translate adds v to each listed point.
func (c *ControlNet) Translate(indices []Index, v r3.Vec) {
	for _, idx := range indices {
		k := c.Flat(idx)
		c.points[k] = r3.Add(c.points[k], v)
	}
	c.modified++
}

// TranslateAll adds v to every point.
func (c *ControlNet) TranslateAll(v r3.Vec) {
	for k := range c.points {
		c.points[k] = r3.Add(c.points[k], v)
	}
	c.modified++
}
