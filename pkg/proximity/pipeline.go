// Package proximity measures how close a surface mesh comes to a set of
// target meshes. It produces a per-vertex distance field, a two-colour map
// with a hard step at the safety margin, and the iso-contour at the margin.
package proximity

import (
	"errors"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"resectionplan/internal/logging"
	"resectionplan/internal/models"
)

var (
	// ErrNoTargets is returned when no target has any vertices. The previous
	// result, if any, is returned alongside it.
	ErrNoTargets = errors.New("no target meshes")

	// ErrEmptySurface is returned when the surface mesh has no vertices.
	ErrEmptySurface = errors.New("empty surface mesh")

	// ErrNoResult is returned by Recolor before the first successful Run.
	ErrNoResult = errors.New("no distance field computed")
)

// Target is an anatomical mesh the surface is measured against. Modified
// must increase whenever the mesh changes.
type Target interface {
	ID() string
	Mesh() *models.TriangleMesh
	Modified() uint64
}

// Side classifies a vertex against the margin.
type Side int

const (
	// TooClose means the vertex is nearer than the margin
	TooClose Side = iota
	// OnMargin means the vertex sits exactly at the margin
	OnMargin
	// Safe means the vertex is farther than the margin
	Safe
)

func (s Side) String() string {
	switch s {
	case TooClose:
		return "too-close"
	case OnMargin:
		return "on-margin"
	default:
		return "safe"
	}
}

// Stats summarises a distance field.
type Stats struct {
	Min, Max, Mean, StdDev float64

	// Closest is the vertex with the smallest distance
	Closest int

	// CloseFraction is the share of vertices nearer than the margin
	CloseFraction float64
}

// Result is one immutable output of the pipeline.
type Result struct {
	// Mesh is the measured surface
	Mesh *models.TriangleMesh

	// Distances holds one unsigned distance per surface vertex
	Distances []float64

	// Colors holds one ramp colour per surface vertex
	Colors []colorful.Color

	// Contour is the iso-line at ContourValue
	Contour *models.PolyLine

	// ContourValue equals the margin used for this result
	ContourValue float64

	Stats Stats
}

// Side classifies vertex i against the contour value.
func (r *Result) Side(i int) Side {
	d := r.Distances[i]
	switch {
	case d < r.ContourValue:
		return TooClose
	case d > r.ContourValue:
		return Safe
	default:
		return OnMargin
	}
}

// Pipeline computes distance maps. It keeps the k-d tree cache and the last
// result; it is not safe for concurrent use.
type Pipeline struct {
	ramp  Ramp
	index *Index
	last  *Result
}

// NewPipeline creates a pipeline colouring with ramp.
func NewPipeline(ramp Ramp) *Pipeline {
	return &Pipeline{ramp: ramp, index: NewIndex()}
}

// SetRamp changes the colours used by subsequent runs.
func (p *Pipeline) SetRamp(r Ramp) {
	p.ramp = r
}

// Ramp returns the colour ramp.
func (p *Pipeline) Ramp() Ramp {
	return p.ramp
}

// Index exposes the k-d tree cache.
func (p *Pipeline) Index() *Index {
	return p.index
}

// Last returns the most recent result, or nil.
func (p *Pipeline) Last() *Result {
	return p.last
}

// Invalidate drops every cached tree. Call it when the target set is
// reassigned.
func (p *Pipeline) Invalidate() {
	p.index.Invalidate()
}

// Run measures mesh against the union of targets' vertices and derives the
// colours and the contour at margin. On ErrNoTargets or ErrEmptySurface the
// previous result is returned unchanged together with the error.
func (p *Pipeline) Run(mesh *models.TriangleMesh, targets []Target, margin float64) (*Result, error) {
	if mesh.IsEmpty() {
		logging.Logger().Warn("proximity skipped", "reason", ErrEmptySurface)
		return p.last, ErrEmptySurface
	}
	trees := p.index.sync(targets)
	if len(trees) == 0 {
		logging.Logger().Warn("proximity skipped, keeping previous distances", "reason", ErrNoTargets)
		return p.last, ErrNoTargets
	}

	distances := make([]float64, mesh.NumPoints())
	for i, v := range mesh.Points {
		distances[i] = nearest(trees, v)
	}

	p.last = p.derive(mesh, distances, margin)
	logging.Logger().Debug("proximity computed",
		"vertices", len(distances), "targets", len(trees), "min", p.last.Stats.Min, "margin", margin)
	return p.last, nil
}

// Recolor rebuilds colours and contour of the last result for a new margin,
// reusing its distances.
func (p *Pipeline) Recolor(margin float64) (*Result, error) {
	if p.last == nil {
		return nil, ErrNoResult
	}
	p.last = p.derive(p.last.Mesh, p.last.Distances, margin)
	return p.last, nil
}

func (p *Pipeline) derive(mesh *models.TriangleMesh, distances []float64, margin float64) *Result {
	stops := p.ramp.Stops(margin)
	colors := make([]colorful.Color, len(distances))
	for i, d := range distances {
		colors[i] = Interpolate(stops, d)
	}
	return &Result{
		Mesh:         mesh,
		Distances:    distances,
		Colors:       colors,
		Contour:      Contour(mesh, distances, margin),
		ContourValue: margin,
		Stats:        computeStats(distances, margin),
	}
}

func computeStats(distances []float64, margin float64) Stats {
	if len(distances) == 0 {
		return Stats{}
	}
	near := 0
	for _, d := range distances {
		if d < margin {
			near++
		}
	}
	s := Stats{
		Min:           floats.Min(distances),
		Max:           floats.Max(distances),
		Mean:          stat.Mean(distances, nil),
		Closest:       floats.MinIdx(distances),
		CloseFraction: float64(near) / float64(len(distances)),
	}
	if len(distances) > 1 {
		s.StdDev = stat.StdDev(distances, nil)
	}
	return s
}
