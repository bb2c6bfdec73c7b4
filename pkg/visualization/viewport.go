// Package visualization provides a headless viewport: an orthographic camera
// that projects and picks widget actors and rasterises them into snapshot
// images.
package visualization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/pkg/widget"
)

// Camera is an orthographic camera looking along one world axis.
type Camera struct {
	// Center is the world point shown in the middle of the viewport
	Center r3.Vec

	// Axis is "x", "y" or "z"; the camera sits on the positive side of the
	// axis looking towards negative values
	Axis string

	// Scale is the number of pixels per world unit
	Scale float64
}

// Viewport implements widget.Renderer and widget.Picker without a window.
type Viewport struct {
	width  int
	height int

	camera             Camera
	right, up, forward r3.Vec

	actors    []*widget.Actor
	pickables []*widget.Actor

	frames int
}

// NewViewport creates a width×height viewport looking down the z axis at
// the origin, one pixel per world unit.
func NewViewport(width, height int) *Viewport {
	v := &Viewport{width: width, height: height}
	// cannot fail for the z axis
	_ = v.SetCamera(Camera{Axis: "z", Scale: 1})
	return v
}

// Size returns the viewport size in pixels.
func (v *Viewport) Size() (width, height int) {
	return v.width, v.height
}

// Camera returns the current camera.
func (v *Viewport) Camera() Camera {
	return v.camera
}

// SetCamera replaces the camera.
func (v *Viewport) SetCamera(c Camera) error {
	if c.Scale <= 0 {
		return fmt.Errorf("camera scale must be positive, got %v", c.Scale)
	}
	switch c.Axis {
	case "x", "X":
		v.right, v.up, v.forward = r3.Vec{Y: 1}, r3.Vec{Z: 1}, r3.Vec{X: -1}
	case "y", "Y":
		v.right, v.up, v.forward = r3.Vec{Z: 1}, r3.Vec{X: 1}, r3.Vec{Y: -1}
	case "z", "Z":
		v.right, v.up, v.forward = r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: -1}
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", c.Axis)
	}
	v.camera = c
	return nil
}

// Fit centres the camera on bounds and scales it so the box fills most of
// the viewport.
func (v *Viewport) Fit(bounds r3.Box) {
	size := r3.Sub(bounds.Max, bounds.Min)
	extentX := math.Abs(r3.Dot(size, v.right))
	extentY := math.Abs(r3.Dot(size, v.up))
	scale := math.Inf(1)
	if extentX > 0 {
		scale = 0.9 * float64(v.width) / extentX
	}
	if extentY > 0 {
		scale = math.Min(scale, 0.9*float64(v.height)/extentY)
	}
	if math.IsInf(scale, 1) {
		scale = 1
	}
	v.camera.Center = r3.Scale(0.5, r3.Add(bounds.Min, bounds.Max))
	v.camera.Scale = scale
}

// WorldToDisplay returns pixel coordinates with y pointing down, and the
// depth along the view direction in Z. Larger depths are farther away.
func (v *Viewport) WorldToDisplay(p r3.Vec) r3.Vec {
	rel := r3.Sub(p, v.camera.Center)
	return r3.Vec{
		X: float64(v.width)/2 + r3.Dot(rel, v.right)*v.camera.Scale,
		Y: float64(v.height)/2 - r3.Dot(rel, v.up)*v.camera.Scale,
		Z: r3.Dot(rel, v.forward),
	}
}

// DisplayToWorld inverts WorldToDisplay.
func (v *Viewport) DisplayToWorld(x, y, z float64) r3.Vec {
	p := v.camera.Center
	p = r3.Add(p, r3.Scale((x-float64(v.width)/2)/v.camera.Scale, v.right))
	p = r3.Add(p, r3.Scale((float64(v.height)/2-y)/v.camera.Scale, v.up))
	return r3.Add(p, r3.Scale(z, v.forward))
}

// WorldPerPixel is constant for an orthographic camera.
func (v *Viewport) WorldPerPixel(r3.Vec) float64 {
	return 1 / v.camera.Scale
}

// AddActor adds a to the scene. Adding twice is a no-op.
func (v *Viewport) AddActor(a *widget.Actor) {
	v.actors = addUnique(v.actors, a)
}

// RemoveActor removes a from the scene.
func (v *Viewport) RemoveActor(a *widget.Actor) {
	v.actors = remove(v.actors, a)
	v.pickables = remove(v.pickables, a)
}

// Actors returns the actors in insertion order.
func (v *Viewport) Actors() []*widget.Actor {
	return append([]*widget.Actor(nil), v.actors...)
}

// Render counts a frame. Images are produced on demand by Snapshot.
func (v *Viewport) Render() {
	v.frames++
}

// Frames returns how many times Render was called.
func (v *Viewport) Frames() int {
	return v.frames
}

// AddPickable makes a pickable.
func (v *Viewport) AddPickable(a *widget.Actor) {
	v.pickables = addUnique(v.pickables, a)
}

// RemovePickable stops a from being picked.
func (v *Viewport) RemovePickable(a *widget.Actor) {
	v.pickables = remove(v.pickables, a)
}

// Pickables returns the registered pickable actors.
func (v *Viewport) Pickables() []*widget.Actor {
	return append([]*widget.Actor(nil), v.pickables...)
}

// Pick casts a ray through display position (x, y) and returns the visible
// pickable actor hit nearest to the camera. Handles are spheres and the
// control polygon is a set of tubes.
func (v *Viewport) Pick(x, y float64) (*widget.Actor, r3.Vec, bool) {
	origin := v.DisplayToWorld(x, y, 0)
	var (
		best      *widget.Actor
		bestDepth = math.Inf(1)
	)
	for _, a := range v.pickables {
		if !a.Visible {
			continue
		}
		var (
			depth float64
			hit   bool
		)
		switch a.Kind {
		case widget.HandleActor:
			depth, hit = v.raySphere(origin, a.Center, a.Radius)
		case widget.PolygonActor:
			depth, hit = v.rayTubes(origin, a)
		}
		if hit && depth < bestDepth {
			best, bestDepth = a, depth
		}
	}
	if best == nil {
		return nil, r3.Vec{}, false
	}
	return best, r3.Add(origin, r3.Scale(bestDepth, v.forward)), true
}

func (v *Viewport) raySphere(origin, centre r3.Vec, radius float64) (float64, bool) {
	oc := r3.Sub(origin, centre)
	b := r3.Dot(oc, v.forward)
	disc := b*b - (r3.Dot(oc, oc) - radius*radius)
	if disc < 0 {
		return 0, false
	}
	return -b - math.Sqrt(disc), true
}

func (v *Viewport) rayTubes(origin r3.Vec, a *widget.Actor) (float64, bool) {
	if a.Lines == nil {
		return 0, false
	}
	best, hit := math.Inf(1), false
	for _, l := range a.Lines.Lines {
		p0, p1 := a.Lines.Points[l[0]], a.Lines.Points[l[1]]
		// closest approach measured in the image plane
		q0, q1 := v.project(r3.Sub(p0, origin)), v.project(r3.Sub(p1, origin))
		seg := r3.Sub(q1, q0)
		s := 0.0
		if l2 := r3.Dot(seg, seg); l2 > 0 {
			s = math.Max(0, math.Min(1, -r3.Dot(q0, seg)/l2))
		}
		d := r3.Norm(r3.Add(q0, r3.Scale(s, seg)))
		if d > a.Radius {
			continue
		}
		p := r3.Add(p0, r3.Scale(s, r3.Sub(p1, p0)))
		depth := r3.Dot(r3.Sub(p, origin), v.forward) - math.Sqrt(a.Radius*a.Radius-d*d)
		if depth < best {
			best, hit = depth, true
		}
	}
	return best, hit
}

// project drops the view-direction component of a vector.
func (v *Viewport) project(p r3.Vec) r3.Vec {
	return r3.Sub(p, r3.Scale(r3.Dot(p, v.forward), v.forward))
}

func addUnique(list []*widget.Actor, a *widget.Actor) []*widget.Actor {
	for _, x := range list {
		if x == a {
			return list
		}
	}
	return append(list, a)
}

func remove(list []*widget.Actor, a *widget.Actor) []*widget.Actor {
	for i, x := range list {
		if x == a {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
