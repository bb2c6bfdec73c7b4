package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
	"resectionplan/pkg/proximity"
)

// Resection is the planning record for one resection surface: its margin,
// its persisted control points and the structures it is measured against.
type Resection struct {
	id      string
	name    string
	margin  float64
	visible bool

	rows, cols int
	points     []r3.Vec

	parenchyma *models.Anatomy
	tumors     []*models.Anatomy
}

// NewResection creates a visible resection without control points.
func NewResection(id, name string, margin float64) *Resection {
	return &Resection{id: id, name: name, margin: margin, visible: true}
}

func (r *Resection) ID() string      { return r.id }
func (r *Resection) Kind() Kind      { return KindResection }
func (r *Resection) Name() string    { return r.name }
func (r *Resection) Margin() float64 { return r.margin }
func (r *Resection) Visible() bool   { return r.visible }

// SetMargin changes the safety margin. Callers notify the binding with
// MarginChanged.
func (r *Resection) SetMargin(m float64) { r.margin = m }

// SetVisible shows or hides the resection.
func (r *Resection) SetVisible(on bool) { r.visible = on }

// ControlPoints implements ResectionEntity.
func (r *Resection) ControlPoints() (rows, cols int, pts []r3.Vec) {
	return r.rows, r.cols, append([]r3.Vec(nil), r.points...)
}

// SetControlPoints implements ResectionEntity.
func (r *Resection) SetControlPoints(rows, cols int, pts []r3.Vec) {
	r.rows, r.cols = rows, cols
	r.points = append(r.points[:0], pts...)
}

// SetParenchyma sets the organ the resection cuts through.
func (r *Resection) SetParenchyma(a *models.Anatomy) { r.parenchyma = a }

// Parenchyma returns the organ, or nil.
func (r *Resection) Parenchyma() *models.Anatomy { return r.parenchyma }

// AddTumor adds a target tumour. It reports false when a tumour with the
// same ID is already present.
func (r *Resection) AddTumor(a *models.Anatomy) bool {
	for _, t := range r.tumors {
		if t.ID() == a.ID() {
			return false
		}
	}
	r.tumors = append(r.tumors, a)
	return true
}

// RemoveTumor removes the tumour with the given ID.
func (r *Resection) RemoveTumor(id string) bool {
	for i, t := range r.tumors {
		if t.ID() == id {
			r.tumors = append(r.tumors[:i], r.tumors[i+1:]...)
			return true
		}
	}
	return false
}

// Tumors returns the target tumours in insertion order.
func (r *Resection) Tumors() []*models.Anatomy {
	return append([]*models.Anatomy(nil), r.tumors...)
}

// Targets returns the parenchyma followed by every tumour. Distances are
// taken to the union of their vertices.
func (r *Resection) Targets() []proximity.Target {
	var out []proximity.Target
	if r.parenchyma != nil {
		out = append(out, r.parenchyma)
	}
	for _, t := range r.tumors {
		out = append(out, t)
	}
	return out
}
