package widget

import (
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
	"resectionplan/pkg/bezier"
)

// ActorKind tells a renderer how to draw an Actor.
type ActorKind int

const (
	// HandleActor is a sphere at Center with Radius
	HandleActor ActorKind = iota
	// PolygonActor is a set of tubes along Lines with Radius
	PolygonActor
	// SurfaceActor is the evaluated surface Mesh in a single Color
	SurfaceActor
	// ContourActor is an iso-line in Lines
	ContourActor
	// ColoredSurfaceActor is a Mesh with per-vertex Colors
	ColoredSurfaceActor
)

func (k ActorKind) String() string {
	switch k {
	case HandleActor:
		return "handle"
	case PolygonActor:
		return "polygon"
	case SurfaceActor:
		return "surface"
	case ContourActor:
		return "contour"
	default:
		return "colored-surface"
	}
}

// Actor is a renderable item. Widgets and bindings own their actors and
// update the fields in place; renderers read them on Render.
type Actor struct {
	Kind ActorKind

	// Owner names the widget or resection the actor belongs to
	Owner string

	// Index is the control point a handle stands for
	Index bezier.Index

	Center r3.Vec
	Radius float64

	Mesh   *models.TriangleMesh
	Lines  *models.PolyLine
	Colors []colorful.Color
	Color  colorful.Color

	Highlighted bool
	Visible     bool
}

// Renderer displays actors.
type Renderer interface {
	AddActor(a *Actor)
	RemoveActor(a *Actor)
	Render()
}

// Picker converts between display and world coordinates and picks the
// nearest registered actor under a display position.
type Picker interface {
	// WorldToDisplay returns display x, y and a depth in Z
	WorldToDisplay(p r3.Vec) r3.Vec
	// DisplayToWorld unprojects display x, y at depth z
	DisplayToWorld(x, y, z float64) r3.Vec

	AddPickable(a *Actor)
	RemovePickable(a *Actor)

	// Pick returns the nearest pickable actor under (x, y) and the world
	// position that was hit.
	Pick(x, y float64) (*Actor, r3.Vec, bool)

	// WorldPerPixel returns the world length covered by one pixel at p.
	WorldPerPixel(p r3.Vec) float64
}
