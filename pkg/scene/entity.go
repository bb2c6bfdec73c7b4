package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
	"resectionplan/pkg/proximity"
)

// Kind is declared by every entity entering the binding.
type Kind int

const (
	KindOther Kind = iota
	KindResection
	KindAnatomy
)

func (k Kind) String() string {
	switch k {
	case KindResection:
		return "resection"
	case KindAnatomy:
		return "anatomy"
	default:
		return "other"
	}
}

// Entity is anything living in the host scene.
type Entity interface {
	ID() string
	Kind() Kind
}

// ResectionEntity is implemented by entities of KindResection. The binding
// reads its state and writes edited control points back; it never owns it.
type ResectionEntity interface {
	Entity

	Name() string
	Margin() float64
	Visible() bool

	// ControlPoints returns the persisted grid; pts is empty when none
	// was stored yet
	ControlPoints() (rows, cols int, pts []r3.Vec)
	SetControlPoints(rows, cols int, pts []r3.Vec)

	// Targets returns the meshes the surface is measured against
	Targets() []proximity.Target
}

// AnatomyEntity exposes an anatomy mesh to the scene.
type AnatomyEntity struct {
	*models.Anatomy
}

// Kind implements Entity.
func (AnatomyEntity) Kind() Kind { return KindAnatomy }
