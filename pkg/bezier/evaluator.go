package bezier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/combin"

	"resectionplan/internal/logging"
	"resectionplan/internal/models"
)

// ErrInvalidResolution is returned when a sample count is below 1.
var ErrInvalidResolution = errors.New("invalid surface resolution")

// basisTable holds B_k^degree(u_i) for every sample i and every k.
type basisTable struct {
	degree  int
	samples int
	values  [][]float64
}

// Evaluator samples an M×N Bézier surface into a triangle mesh of Rx×Ry
// vertices. Sample (i, j) sits at s = i/(Rx-1), t = j/(Ry-1) and is stored at
// vertex i*Ry + j. The mesh is rebuilt only when the control points, the
// resolution or the normals flag changed since the last Evaluate.
type Evaluator struct {
	rows, cols int
	points     []r3.Vec

	rx, ry         int
	computeNormals bool

	binomials map[int][]float64
	basisS    *basisTable
	basisT    *basisTable
	topology  [][3]int

	dirty bool
	mesh  *models.TriangleMesh
}

// NewEvaluator creates an evaluator sampling rx×ry vertices. It has no
// control points until SetControlPoints is called.
func NewEvaluator(rx, ry int) (*Evaluator, error) {
	e := &Evaluator{binomials: make(map[int][]float64)}
	if err := e.SetResolution(rx, ry); err != nil {
		return nil, err
	}
	return e, nil
}

// SetControlPoints replaces the control grid. pts must hold rows*cols points
// in row-major order. On error the previous grid is kept.
func (e *Evaluator) SetControlPoints(rows, cols int, pts []r3.Vec) error {
	if rows < 2 || cols < 2 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGrid, rows, cols)
	}
	if len(pts) != rows*cols {
		return fmt.Errorf("%w: got %d points for %dx%d grid", ErrInvalidGrid, len(pts), rows, cols)
	}
	e.rows, e.cols = rows, cols
	e.points = append(e.points[:0], pts...)
	e.dirty = true
	return nil
}

// SetResolution sets the number of samples along s and t. On error the
// previous resolution is kept.
func (e *Evaluator) SetResolution(rx, ry int) error {
	if rx < 1 || ry < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidResolution, rx, ry)
	}
	if rx == e.rx && ry == e.ry {
		return nil
	}
	e.rx, e.ry = rx, ry
	e.topology = gridTopology(rx, ry)
	e.dirty = true
	return nil
}

// Resolution returns the sample counts.
func (e *Evaluator) Resolution() (rx, ry int) {
	return e.rx, e.ry
}

// SetComputeNormals toggles per-vertex normals on the evaluated mesh.
func (e *Evaluator) SetComputeNormals(on bool) {
	if on != e.computeNormals {
		e.computeNormals = on
		e.dirty = true
	}
}

// Dirty reports whether the next Evaluate will resample the surface.
func (e *Evaluator) Dirty() bool {
	return e.dirty
}

// Evaluate returns the sampled surface. Each resample produces a new mesh;
// callers must treat it as read-only since its triangle list is shared by
// every mesh of the same resolution. Without control points it returns an
// empty mesh.
func (e *Evaluator) Evaluate() *models.TriangleMesh {
	if len(e.points) == 0 {
		return &models.TriangleMesh{}
	}
	if !e.dirty && e.mesh != nil {
		return e.mesh
	}

	e.basisS = e.basis(e.basisS, e.rows-1, e.rx)
	e.basisT = e.basis(e.basisT, e.cols-1, e.ry)

	pts := make([]r3.Vec, e.rx*e.ry)
	for i := 0; i < e.rx; i++ {
		bs := e.basisS.values[i]
		for j := 0; j < e.ry; j++ {
			pts[i*e.ry+j] = e.blend(bs, e.basisT.values[j])
		}
	}

	mesh := &models.TriangleMesh{Points: pts, Triangles: e.topology}
	if e.computeNormals {
		mesh.ComputeNormals()
	}
	e.mesh = mesh
	e.dirty = false
	return mesh
}

// Point evaluates the surface at a single parameter pair in [0,1]².
func (e *Evaluator) Point(s, t float64) r3.Vec {
	if len(e.points) == 0 {
		return r3.Vec{}
	}
	return e.blend(e.bernstein(e.rows-1, s), e.bernstein(e.cols-1, t))
}

func (e *Evaluator) blend(bs, bt []float64) r3.Vec {
	var p r3.Vec
	for a, wa := range bs {
		if wa == 0 {
			continue
		}
		row := e.points[a*e.cols : (a+1)*e.cols]
		for b, wb := range bt {
			if wb == 0 {
				continue
			}
			p = r3.Add(p, r3.Scale(wa*wb, row[b]))
		}
	}
	return p
}

// binomial returns C(n, k) for k = 0..n, cached per degree.
func (e *Evaluator) binomial(n int) []float64 {
	if c, ok := e.binomials[n]; ok {
		return c
	}
	c := make([]float64, n+1)
	for k := range c {
		c[k] = float64(combin.Binomial(n, k))
	}
	e.binomials[n] = c
	return c
}

func (e *Evaluator) bernstein(n int, u float64) []float64 {
	coeff := e.binomial(n)
	out := make([]float64, n+1)
	for k := range out {
		out[k] = coeff[k] * math.Pow(u, float64(k)) * math.Pow(1-u, float64(n-k))
	}
	return out
}

// basis returns a table for (degree, samples), reusing prev when it matches.
func (e *Evaluator) basis(prev *basisTable, degree, samples int) *basisTable {
	if prev != nil && prev.degree == degree && prev.samples == samples {
		return prev
	}
	logging.Logger().Debug("rebuilding bernstein table", "degree", degree, "samples", samples)
	t := &basisTable{degree: degree, samples: samples, values: make([][]float64, samples)}
	for i := range t.values {
		t.values[i] = e.bernstein(degree, sampleParam(i, samples))
	}
	return t
}

// sampleParam maps sample i of n onto [0,1]. A single sample sits at 0.
func sampleParam(i, n int) float64 {
	if n == 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

// gridTopology triangulates an rx×ry vertex grid, two triangles per cell.
func gridTopology(rx, ry int) [][3]int {
	if rx < 2 || ry < 2 {
		return nil
	}
	tris := make([][3]int, 0, 2*(rx-1)*(ry-1))
	for i := 0; i < rx-1; i++ {
		for j := 0; j < ry-1; j++ {
			a := i*ry + j
			b := a + ry
			tris = append(tris, [3]int{a, b, b + 1}, [3]int{a, b + 1, a + 1})
		}
	}
	return tris
}
