// Package widget implements the interactive Bézier surface widget: handles
// for every control point, a control polygon, and the evaluated surface,
// driven by a small state machine over pick, drag and release events.
package widget

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/logging"
	"resectionplan/internal/models"
	"resectionplan/pkg/bezier"
	"resectionplan/pkg/config"
)

var (
	// ErrNoRenderer is returned when the widget has no renderer to draw into.
	ErrNoRenderer = errors.New("no renderer")

	// ErrNoPicker is returned when the widget has no picker to pick with.
	ErrNoPicker = errors.New("no picker")
)

// Options configures a widget.
type Options struct {
	Rows, Cols int

	// Resolution is the sample count of the displayed surface
	Resolution [2]int

	ContinuousUpdate bool
	ComputeNormals   bool

	HandleSize       float64
	HandleSizeFactor float64
	HandlePixels     float64
	TubeSizeFactor   float64
	AutoSize         bool

	MultiInteraction       bool
	TranslationInteraction bool

	HandleColor   colorful.Color
	SelectedColor colorful.Color
	PolygonColor  colorful.Color
	SurfaceColor  colorful.Color
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig builds widget options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Rows:                   cfg.Grid.Rows,
		Cols:                   cfg.Grid.Cols,
		Resolution:             cfg.Surface.DisplayResolution,
		ContinuousUpdate:       cfg.Surface.ContinuousUpdate,
		ComputeNormals:         cfg.Surface.ComputeNormals,
		HandleSize:             cfg.Widget.HandleSize,
		HandleSizeFactor:       cfg.Widget.HandleSizeFactor,
		HandlePixels:           cfg.Widget.HandlePixels,
		TubeSizeFactor:         cfg.Widget.TubeSizeFactor,
		AutoSize:               cfg.Widget.AutoSize,
		MultiInteraction:       cfg.Widget.MultiInteraction,
		TranslationInteraction: cfg.Widget.TranslationInteraction,
		HandleColor:            colorful.Color{R: 1, G: 1, B: 1},
		SelectedColor:          colorful.Color{R: 1, G: 0, B: 0},
		PolygonColor:           colorful.Color{R: 0.8, G: 0.8, B: 0.8},
		SurfaceColor:           colorful.Color{R: 0.9, G: 0.7, B: 0.2},
	}
}

// Widget ties a control net, its evaluator and the picking/rendering
// collaborators together. It is not safe for concurrent use.
type Widget struct {
	name string
	opts Options

	net  *bezier.ControlNet
	eval *bezier.Evaluator

	renderer Renderer
	picker   Picker

	handles []*Actor
	polygon *Actor
	surface *Actor
	owned   map[*Actor]bool

	state     State
	active    bezier.Index
	group     bezier.Group
	pickDepth float64
	lastX     float64
	lastY     float64

	handleRadius float64

	// part flags and the master switch; a part is shown when both are set
	showHandles bool
	showPolygon bool
	showSurface bool
	visible     bool
	overlaid    bool

	// what is currently registered with the picker
	handlesPickable bool
	polygonPickable bool

	onInteraction    []func()
	onInteractionEnd []func()
}

// New creates a detached widget with the default planar grid.
func New(name string, opts Options) (*Widget, error) {
	net, err := bezier.NewControlNet(opts.Rows, opts.Cols)
	if err != nil {
		return nil, fmt.Errorf("widget %s: %w", name, err)
	}
	eval, err := bezier.NewEvaluator(opts.Resolution[0], opts.Resolution[1])
	if err != nil {
		return nil, fmt.Errorf("widget %s: %w", name, err)
	}
	eval.SetComputeNormals(opts.ComputeNormals)

	w := &Widget{
		name:         name,
		opts:         opts,
		net:          net,
		eval:         eval,
		owned:        make(map[*Actor]bool),
		handleRadius: opts.HandleSize,
		showHandles:  true,
		showPolygon:  true,
		showSurface:  true,
		visible:      true,
	}
	w.polygon = &Actor{Kind: PolygonActor, Owner: name, Color: opts.PolygonColor, Visible: true}
	w.surface = &Actor{Kind: SurfaceActor, Owner: name, Color: opts.SurfaceColor, Visible: true}
	w.owned[w.polygon] = true
	w.owned[w.surface] = true
	w.rebuildHandles()
	w.SizeHandles()
	w.markDirty()
	return w, nil
}

// Name returns the widget name used as actor owner.
func (w *Widget) Name() string { return w.name }

// State returns the current interaction state.
func (w *Widget) State() State { return w.state }

// Net returns the control net. Edits made directly must be followed by
// Refresh.
func (w *Widget) Net() *bezier.ControlNet { return w.net }

// Options returns the widget options.
func (w *Widget) Options() Options { return w.opts }

// Attached reports whether the widget has both collaborators.
func (w *Widget) Attached() bool { return w.renderer != nil && w.picker != nil }

// OnInteraction registers fn to run after every continuous-update move.
func (w *Widget) OnInteraction(fn func()) {
	w.onInteraction = append(w.onInteraction, fn)
}

// OnInteractionEnd registers fn to run after every release.
func (w *Widget) OnInteractionEnd(fn func()) {
	w.onInteractionEnd = append(w.onInteractionEnd, fn)
}

// Attach adds the widget's actors to r and registers handles and the
// control polygon with p.
func (w *Widget) Attach(r Renderer, p Picker) error {
	if r == nil {
		logging.Logger().Warn("widget not attached", "widget", w.name, "reason", ErrNoRenderer)
		return ErrNoRenderer
	}
	if p == nil {
		logging.Logger().Warn("widget not attached", "widget", w.name, "reason", ErrNoPicker)
		return ErrNoPicker
	}
	if w.Attached() {
		w.Detach()
	}
	w.renderer, w.picker = r, p

	for _, h := range w.handles {
		r.AddActor(h)
	}
	r.AddActor(w.polygon)
	r.AddActor(w.surface)
	w.registerPickables()
	w.SizeHandles()
	w.updateSurface()
	return nil
}

// Detach removes every actor and pickable registration. The widget returns
// to Idle.
func (w *Widget) Detach() {
	if !w.Attached() {
		return
	}
	w.unregisterPickables()
	for _, h := range w.handles {
		w.renderer.RemoveActor(h)
	}
	w.renderer.RemoveActor(w.polygon)
	w.renderer.RemoveActor(w.surface)
	w.renderer, w.picker = nil, nil
	w.state = Idle
	w.updateHighlight()
}

func (w *Widget) registerPickables() {
	w.handlesPickable, w.polygonPickable = false, false
	w.syncPickables()
}

func (w *Widget) unregisterPickables() {
	if w.handlesPickable {
		for _, h := range w.handles {
			w.picker.RemovePickable(h)
		}
	}
	if w.polygonPickable {
		w.picker.RemovePickable(w.polygon)
	}
	w.handlesPickable, w.polygonPickable = false, false
}

// syncPickables brings the picker registrations in line with the effective
// visibility, touching the picker only where the state differs.
func (w *Widget) syncPickables() {
	if w.picker == nil {
		return
	}
	if on := w.handlesShown(); on != w.handlesPickable {
		for _, h := range w.handles {
			if on {
				w.picker.AddPickable(h)
			} else {
				w.picker.RemovePickable(h)
			}
		}
		w.handlesPickable = on
	}
	if on := w.polygonShown(); on != w.polygonPickable {
		if on {
			w.picker.AddPickable(w.polygon)
		} else {
			w.picker.RemovePickable(w.polygon)
		}
		w.polygonPickable = on
	}
}

// Handle dispatches one input event. A pick that hits nothing of this
// widget is not an error; the state simply stays Idle.
func (w *Widget) Handle(ev Event) error {
	if w.renderer == nil {
		logging.Logger().Warn("event ignored", "widget", w.name, "reason", ErrNoRenderer)
		return ErrNoRenderer
	}
	if w.picker == nil {
		logging.Logger().Warn("event ignored", "widget", w.name, "reason", ErrNoPicker)
		return ErrNoPicker
	}

	switch e := ev.(type) {
	case PickAttempt:
		w.pick(e)
	case Drag:
		w.drag(e)
	case Release:
		w.release()
	default:
		return fmt.Errorf("widget %s: unknown event %T", w.name, ev)
	}
	return nil
}

func (w *Widget) pick(e PickAttempt) {
	if w.state != Idle {
		return
	}
	actor, pos, ok := w.picker.Pick(e.X, e.Y)
	if !ok || !w.owned[actor] {
		return
	}

	switch actor.Kind {
	case HandleActor:
		switch {
		case e.Button == Primary:
			w.state = DraggingSingleHandle
		case w.opts.MultiInteraction:
			w.state = DraggingGroup
			w.group = w.net.GroupOf(actor.Index)
		default:
			return
		}
		w.active = actor.Index
	case PolygonActor:
		if !w.opts.TranslationInteraction {
			return
		}
		w.state = DraggingWholeNet
	default:
		return
	}

	w.pickDepth = w.picker.WorldToDisplay(pos).Z
	w.lastX, w.lastY = e.X, e.Y
	logging.Logger().Debug("interaction started", "widget", w.name, "state", w.state, "index", w.active)
	w.updateHighlight()
	w.renderer.Render()
}

func (w *Widget) drag(e Drag) {
	if w.state == Idle {
		return
	}
	from := w.picker.DisplayToWorld(w.lastX, w.lastY, w.pickDepth)
	to := w.picker.DisplayToWorld(e.X, e.Y, w.pickDepth)
	w.lastX, w.lastY = e.X, e.Y
	w.Move(r3.Sub(to, from))
}

// Move applies a world-space motion to the point set selected by the
// current state. It does nothing while Idle.
func (w *Widget) Move(v r3.Vec) {
	switch w.state {
	case DraggingSingleHandle:
		w.net.Translate([]bezier.Index{w.active}, v)
	case DraggingGroup:
		w.net.Translate(w.net.Members(w.group), v)
	case DraggingWholeNet:
		w.net.TranslateAll(v)
	default:
		return
	}
	w.markDirty()
	w.updateControlActors()
	if w.opts.ContinuousUpdate {
		w.updateSurface()
		for _, fn := range w.onInteraction {
			fn()
		}
	}
	if w.renderer != nil {
		w.renderer.Render()
	}
}

func (w *Widget) release() {
	if w.state == Idle {
		return
	}
	logging.Logger().Debug("interaction ended", "widget", w.name, "state", w.state)
	w.state = Idle
	w.updateHighlight()
	w.updateSurface()
	for _, fn := range w.onInteractionEnd {
		fn()
	}
	w.renderer.Render()
}

// Highlighted returns the indices of highlighted handles and whether the
// control polygon is highlighted.
func (w *Widget) Highlighted() (handles []bezier.Index, polygon bool) {
	for _, h := range w.handles {
		if h.Highlighted {
			handles = append(handles, h.Index)
		}
	}
	return handles, w.polygon.Highlighted
}

func (w *Widget) updateHighlight() {
	var selected map[bezier.Index]bool
	switch w.state {
	case DraggingSingleHandle:
		selected = map[bezier.Index]bool{w.active: true}
	case DraggingGroup:
		selected = make(map[bezier.Index]bool)
		for _, idx := range w.net.Members(w.group) {
			selected[idx] = true
		}
	}
	for _, h := range w.handles {
		h.Highlighted = selected[h.Index]
		h.Color = w.opts.HandleColor
		if h.Highlighted {
			h.Color = w.opts.SelectedColor
		}
	}
	w.polygon.Highlighted = w.state == DraggingWholeNet
	w.polygon.Color = w.opts.PolygonColor
	if w.polygon.Highlighted {
		w.polygon.Color = w.opts.SelectedColor
	}
}

// Surface evaluates the surface if needed and returns it.
func (w *Widget) Surface() *models.TriangleMesh {
	return w.eval.Evaluate()
}

// ControlPoints returns the grid size and a copy of the positions.
func (w *Widget) ControlPoints() (rows, cols int, pts []r3.Vec) {
	rows, cols = w.net.Dims()
	return rows, cols, w.net.Points()
}

// SetControlPoints loads an external grid. The widget must be Idle.
func (w *Widget) SetControlPoints(rows, cols int, pts []r3.Vec) error {
	if w.state != Idle {
		return fmt.Errorf("widget %s: cannot load control points while %s", w.name, w.state)
	}
	if len(pts) != rows*cols {
		return fmt.Errorf("widget %s: %w: got %d points for %dx%d grid", w.name, bezier.ErrInvalidGrid, len(pts), rows, cols)
	}
	if r, c := w.net.Dims(); r != rows || c != cols {
		if err := w.net.Resize(rows, cols); err != nil {
			return fmt.Errorf("widget %s: %w", w.name, err)
		}
		w.replaceHandles()
	}
	if err := w.net.SetPoints(pts); err != nil {
		return fmt.Errorf("widget %s: %w", w.name, err)
	}
	w.Refresh()
	return nil
}

// Place lays the default planar grid over bounds.
func (w *Widget) Place(bounds r3.Box) {
	w.net.Place(bounds)
	w.Refresh()
	w.SizeHandles()
}

// Refresh re-reads the control net after direct edits and redraws.
func (w *Widget) Refresh() {
	w.markDirty()
	w.updateControlActors()
	w.updateSurface()
	if w.renderer != nil {
		w.renderer.Render()
	}
}

// SetResolution changes the displayed sample count.
func (w *Widget) SetResolution(rx, ry int) error {
	if err := w.eval.SetResolution(rx, ry); err != nil {
		return fmt.Errorf("widget %s: %w", w.name, err)
	}
	w.opts.Resolution = [2]int{rx, ry}
	w.updateSurface()
	return nil
}

// SetContinuousUpdate toggles re-evaluation on every move.
func (w *Widget) SetContinuousUpdate(on bool) { w.opts.ContinuousUpdate = on }

// SetMultiInteraction toggles group drags with the secondary button.
func (w *Widget) SetMultiInteraction(on bool) { w.opts.MultiInteraction = on }

// SetTranslationInteraction toggles whole-net drags on the polygon.
func (w *Widget) SetTranslationInteraction(on bool) { w.opts.TranslationInteraction = on }

// HandleRadius returns the current handle radius in world units.
func (w *Widget) HandleRadius() float64 { return w.handleRadius }

// TubeRadius returns the control polygon tube radius.
func (w *Widget) TubeRadius() float64 { return w.opts.TubeSizeFactor * w.handleRadius }

// SizeHandles recomputes the handle radius. With AutoSize the radius keeps
// HandlePixels on screen at the net's centre; otherwise it is HandleSize.
func (w *Widget) SizeHandles() {
	w.handleRadius = w.opts.HandleSize
	if w.opts.AutoSize && w.picker != nil {
		if wpp := w.picker.WorldPerPixel(w.centre()); wpp > 0 {
			w.handleRadius = wpp * w.opts.HandlePixels * w.opts.HandleSizeFactor
		}
	}
	for _, h := range w.handles {
		h.Radius = w.handleRadius
	}
	w.polygon.Radius = w.TubeRadius()
}

func (w *Widget) centre() r3.Vec {
	var c r3.Vec
	pts := w.net.Points()
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}

func (w *Widget) handlesShown() bool { return w.visible && w.showHandles }
func (w *Widget) polygonShown() bool { return w.visible && w.showPolygon }

// SetHandlesVisible shows or hides the handles. Hidden handles cannot be
// picked.
func (w *Widget) SetHandlesVisible(on bool) {
	w.showHandles = on
	w.applyVisibility()
}

// SetPolygonVisible shows or hides the control polygon.
func (w *Widget) SetPolygonVisible(on bool) {
	w.showPolygon = on
	w.applyVisibility()
}

// SetSurfaceVisible shows or hides the evaluated surface.
func (w *Widget) SetSurfaceVisible(on bool) {
	w.showSurface = on
	w.applyVisibility()
}

// HandlesVisible reports the handle flag set by SetHandlesVisible.
func (w *Widget) HandlesVisible() bool { return w.showHandles }

// PolygonVisible reports the polygon flag set by SetPolygonVisible.
func (w *Widget) PolygonVisible() bool { return w.showPolygon }

// SurfaceVisible reports the surface flag set by SetSurfaceVisible.
func (w *Widget) SurfaceVisible() bool { return w.showSurface }

// SetSurfaceOverlaid keeps the evaluated surface hidden while another actor
// draws it, e.g. a distance-coloured copy.
func (w *Widget) SetSurfaceOverlaid(on bool) {
	w.overlaid = on
	w.applyVisibility()
}

// SetVisible shows or hides the whole widget. Parts hidden with their own
// setters stay hidden when the widget is shown again.
func (w *Widget) SetVisible(on bool) {
	w.visible = on
	w.applyVisibility()
	if w.renderer != nil {
		w.renderer.Render()
	}
}

// Visible reports the master visibility set by SetVisible.
func (w *Widget) Visible() bool { return w.visible }

func (w *Widget) applyVisibility() {
	for _, h := range w.handles {
		h.Visible = w.handlesShown()
	}
	w.polygon.Visible = w.polygonShown()
	w.surface.Visible = w.visible && w.showSurface && !w.overlaid
	w.syncPickables()
}

// Actors returns every actor the widget owns.
func (w *Widget) Actors() []*Actor {
	out := append([]*Actor(nil), w.handles...)
	return append(out, w.polygon, w.surface)
}

func (w *Widget) markDirty() {
	rows, cols := w.net.Dims()
	// the net always holds rows*cols points, so this cannot fail
	_ = w.eval.SetControlPoints(rows, cols, w.net.Points())
}

func (w *Widget) updateSurface() {
	w.surface.Mesh = w.eval.Evaluate()
}

func (w *Widget) rebuildHandles() {
	for _, h := range w.handles {
		delete(w.owned, h)
	}
	rows, cols := w.net.Dims()
	w.handles = make([]*Actor, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			h := &Actor{
				Kind:    HandleActor,
				Owner:   w.name,
				Index:   bezier.Index{Row: i, Col: j},
				Radius:  w.handleRadius,
				Color:   w.opts.HandleColor,
				Visible: w.handlesShown(),
			}
			w.handles = append(w.handles, h)
			w.owned[h] = true
		}
	}
	w.updateControlActors()
}

// replaceHandles swaps the handle actors after a resize, keeping the
// collaborator registrations in step.
func (w *Widget) replaceHandles() {
	if w.Attached() {
		for _, h := range w.handles {
			if w.handlesPickable {
				w.picker.RemovePickable(h)
			}
			w.renderer.RemoveActor(h)
		}
		w.handlesPickable = false
	}
	w.rebuildHandles()
	if w.Attached() {
		for _, h := range w.handles {
			w.renderer.AddActor(h)
		}
		w.syncPickables()
	}
}

func (w *Widget) updateControlActors() {
	pts := w.net.Points()
	for k, h := range w.handles {
		h.Center = pts[k]
	}
	w.polygon.Lines = &models.PolyLine{Points: pts, Lines: w.net.Lines()}
}
