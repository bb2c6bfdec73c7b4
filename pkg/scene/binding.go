// Package scene keeps one surface widget and one proximity pipeline alive
// per resection entity and routes entity changes and input events to them.
package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/logging"
	"resectionplan/internal/models"
	"resectionplan/pkg/bezier"
	"resectionplan/pkg/config"
	"resectionplan/pkg/proximity"
	"resectionplan/pkg/widget"
)

var (
	// ErrAlreadyBound is returned, as a warning, when an entity that already
	// has a pair is added again.
	ErrAlreadyBound = errors.New("entity already bound")

	// ErrNotBound is returned for IDs without a pair.
	ErrNotBound = errors.New("entity not bound")

	// ErrNilEntity is returned when no entity is given.
	ErrNilEntity = errors.New("nil entity")
)

// Options configures every pair a binding creates.
type Options struct {
	Widget widget.Options

	// DistanceResolution is the sample count of the surface measured by
	// the proximity pipeline
	DistanceResolution [2]int

	Ramp         proximity.Ramp
	ContourColor colorful.Color

	// PlaceOnTargets lays a new net over the targets' bounds when the
	// entity has no stored control points
	PlaceOnTargets bool
}

// OptionsFromConfig builds binding options from the application config.
// The config must have passed Validate.
func OptionsFromConfig(cfg *config.Config) Options {
	near, far, contour := cfg.Colors()
	return Options{
		Widget:             widget.OptionsFromConfig(cfg),
		DistanceResolution: cfg.Surface.DistanceResolution,
		Ramp:               proximity.Ramp{Near: near, Far: far, Upper: cfg.Proximity.UpperDistance},
		ContourColor:       contour,
	}
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// Pair is the widget and pipeline bound to one resection entity.
type Pair struct {
	Entity   ResectionEntity
	Widget   *widget.Widget
	Pipeline *proximity.Pipeline

	distance *bezier.Evaluator
	colored  *widget.Actor
	contour  *widget.Actor

	// lastErr is the outcome of the latest proximity run
	lastErr error
}

// Result returns the latest proximity result, which may be stale, or nil.
func (p *Pair) Result() *proximity.Result {
	return p.Pipeline.Last()
}

// Err returns the error of the latest proximity run.
func (p *Pair) Err() error {
	return p.lastErr
}

// Actors returns every actor of the pair.
func (p *Pair) Actors() []*widget.Actor {
	return append(p.Widget.Actors(), p.colored, p.contour)
}

// Binding owns the registry of pairs, keyed by entity ID. It is not safe
// for concurrent use.
type Binding struct {
	opts     Options
	renderer widget.Renderer
	picker   widget.Picker

	pairs  map[string]*Pair
	active *Pair
}

// NewBinding creates an empty binding drawing into r and picking with p.
func NewBinding(r widget.Renderer, p widget.Picker, opts Options) *Binding {
	return &Binding{
		opts:     opts,
		renderer: r,
		picker:   p,
		pairs:    make(map[string]*Pair),
	}
}

// Len returns the number of pairs.
func (b *Binding) Len() int { return len(b.pairs) }

// Pair looks up the pair of an entity.
func (b *Binding) Pair(id string) (*Pair, bool) {
	p, ok := b.pairs[id]
	return p, ok
}

// IDs returns the bound entity IDs in sorted order.
func (b *Binding) IDs() []string {
	ids := make([]string, 0, len(b.pairs))
	for id := range b.pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Add creates the pair for a resection entity. Entities of other kinds are
// ignored. Adding a bound entity again returns ErrAlreadyBound and changes
// nothing.
func (b *Binding) Add(e Entity) error {
	if e == nil {
		logging.Logger().Warn("add rejected", "reason", ErrNilEntity)
		return ErrNilEntity
	}
	if e.Kind() != KindResection {
		logging.Logger().Debug("entity ignored", "entity", e.ID(), "kind", e.Kind())
		return nil
	}
	res, ok := e.(ResectionEntity)
	if !ok {
		return fmt.Errorf("entity %s declares %s kind without resection accessors", e.ID(), e.Kind())
	}
	if _, dup := b.pairs[e.ID()]; dup {
		logging.Logger().Warn("duplicate add ignored", "entity", e.ID())
		return fmt.Errorf("%w: %s", ErrAlreadyBound, e.ID())
	}
	if b.renderer == nil {
		logging.Logger().Warn("add rejected", "entity", e.ID(), "reason", widget.ErrNoRenderer)
		return widget.ErrNoRenderer
	}
	if b.picker == nil {
		logging.Logger().Warn("add rejected", "entity", e.ID(), "reason", widget.ErrNoPicker)
		return widget.ErrNoPicker
	}

	w, err := widget.New(e.ID(), b.opts.Widget)
	if err != nil {
		return err
	}
	distance, err := bezier.NewEvaluator(b.opts.DistanceResolution[0], b.opts.DistanceResolution[1])
	if err != nil {
		return fmt.Errorf("entity %s: %w", e.ID(), err)
	}
	p := &Pair{
		Entity:   res,
		Widget:   w,
		Pipeline: proximity.NewPipeline(b.opts.Ramp),
		distance: distance,
		colored:  &widget.Actor{Kind: widget.ColoredSurfaceActor, Owner: e.ID(), Visible: true},
		contour:  &widget.Actor{Kind: widget.ContourActor, Owner: e.ID(), Color: b.opts.ContourColor, Visible: true},
	}

	b.loadControlPoints(p)
	if err := w.Attach(b.renderer, b.picker); err != nil {
		return err
	}
	b.renderer.AddActor(p.colored)
	b.renderer.AddActor(p.contour)

	w.OnInteraction(func() { b.recompute(p) })
	w.OnInteractionEnd(func() {
		rows, cols, pts := p.Widget.ControlPoints()
		p.Entity.SetControlPoints(rows, cols, pts)
		b.recompute(p)
	})

	b.pairs[e.ID()] = p
	b.applyVisibility(p)
	b.recompute(p)
	logging.Logger().Info("resection bound", "entity", e.ID(), "name", res.Name())
	return nil
}

func (b *Binding) loadControlPoints(p *Pair) {
	rows, cols, pts := p.Entity.ControlPoints()
	if len(pts) > 0 {
		if err := p.Widget.SetControlPoints(rows, cols, pts); err != nil {
			logging.Logger().Warn("stored control points rejected, using defaults",
				"entity", p.Entity.ID(), "error", err)
		} else {
			return
		}
	}
	if b.opts.PlaceOnTargets {
		if bounds, ok := targetBounds(p.Entity.Targets()); ok {
			p.Widget.Place(bounds)
		}
	}
}

func targetBounds(targets []proximity.Target) (r3.Box, bool) {
	merged := &models.TriangleMesh{}
	for _, t := range targets {
		if m := t.Mesh(); !m.IsEmpty() {
			merged.Points = append(merged.Points, m.Points...)
		}
	}
	if merged.IsEmpty() {
		return r3.Box{}, false
	}
	return merged.Bounds(), true
}

// Remove releases the pair of an entity and removes all of its actors and
// pickable registrations.
func (b *Binding) Remove(id string) error {
	p, ok := b.pairs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotBound, id)
	}
	p.Widget.Detach()
	b.renderer.RemoveActor(p.colored)
	b.renderer.RemoveActor(p.contour)
	delete(b.pairs, id)
	if b.active == p {
		b.active = nil
	}
	b.renderer.Render()
	logging.Logger().Info("resection released", "entity", id)
	return nil
}

// Close removes every pair.
func (b *Binding) Close() {
	for _, id := range b.IDs() {
		// cannot fail, the id comes from the registry
		_ = b.Remove(id)
	}
}

// ChangeKind names an entity property.
type ChangeKind int

const (
	MarginChange ChangeKind = iota
	TargetsChange
	VisibilityChange
	GeometryChange
)

func (k ChangeKind) String() string {
	switch k {
	case MarginChange:
		return "margin"
	case TargetsChange:
		return "targets"
	case VisibilityChange:
		return "visibility"
	default:
		return "geometry"
	}
}

// Change reports that a property of a bound entity changed.
type Change struct {
	ID   string
	Kind ChangeKind
}

// Apply routes a change to its handler.
func (b *Binding) Apply(c Change) error {
	switch c.Kind {
	case MarginChange:
		return b.MarginChanged(c.ID)
	case TargetsChange:
		return b.TargetsChanged(c.ID)
	case VisibilityChange:
		return b.VisibilityChanged(c.ID)
	case GeometryChange:
		return b.GeometryChanged(c.ID)
	default:
		return fmt.Errorf("unknown change kind %d", c.Kind)
	}
}

func (b *Binding) lookup(id string) (*Pair, error) {
	p, ok := b.pairs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, id)
	}
	return p, nil
}

// MarginChanged recolours and recontours with the entity's new margin,
// reusing the distance field when there is one.
func (b *Binding) MarginChanged(id string) error {
	p, err := b.lookup(id)
	if err != nil {
		return err
	}
	res, err := p.Pipeline.Recolor(p.Entity.Margin())
	if errors.Is(err, proximity.ErrNoResult) {
		return b.recompute(p)
	}
	b.show(p, res)
	return nil
}

// TargetsChanged drops the pair's cached target indexes and recomputes
// distances against the entity's current targets.
func (b *Binding) TargetsChanged(id string) error {
	p, err := b.lookup(id)
	if err != nil {
		return err
	}
	p.Pipeline.Invalidate()
	return b.recompute(p)
}

// VisibilityChanged shows or hides every actor of the pair.
func (b *Binding) VisibilityChanged(id string) error {
	p, err := b.lookup(id)
	if err != nil {
		return err
	}
	b.applyVisibility(p)
	b.renderer.Render()
	return nil
}

// GeometryChanged reloads control points stored on the entity.
func (b *Binding) GeometryChanged(id string) error {
	p, err := b.lookup(id)
	if err != nil {
		return err
	}
	rows, cols, pts := p.Entity.ControlPoints()
	if err := p.Widget.SetControlPoints(rows, cols, pts); err != nil {
		return err
	}
	return b.recompute(p)
}

// Recompute reruns the proximity pipeline of one pair.
func (b *Binding) Recompute(id string) error {
	p, err := b.lookup(id)
	if err != nil {
		return err
	}
	return b.recompute(p)
}

func (b *Binding) recompute(p *Pair) error {
	rows, cols, pts := p.Widget.ControlPoints()
	if err := p.distance.SetControlPoints(rows, cols, pts); err != nil {
		return err
	}
	res, err := p.Pipeline.Run(p.distance.Evaluate(), p.Entity.Targets(), p.Entity.Margin())
	p.lastErr = err
	b.show(p, res)
	if err != nil && !errors.Is(err, proximity.ErrNoTargets) {
		return err
	}
	return nil
}

// show pushes a result into the pair's actors. Without any result the
// plain widget surface stays visible.
func (b *Binding) show(p *Pair, res *proximity.Result) {
	if res != nil {
		p.colored.Mesh = res.Mesh
		p.colored.Colors = res.Colors
		p.contour.Lines = res.Contour
	}
	b.applyVisibility(p)
	b.renderer.Render()
}

func (b *Binding) applyVisibility(p *Pair) {
	on := p.Entity.Visible()
	hasResult := p.Pipeline.Last() != nil
	// the widget keeps its own part flags; only the master switch is driven
	// by the entity
	if p.Widget.Visible() != on {
		p.Widget.SetVisible(on)
	}
	p.Widget.SetSurfaceOverlaid(hasResult)
	p.colored.Visible = on && hasResult && p.Widget.SurfaceVisible()
	p.contour.Visible = on && hasResult
}

// HandleInput routes an input event. While a widget is dragging it gets
// every event; otherwise a pick is offered to each widget in ID order until
// one starts an interaction.
func (b *Binding) HandleInput(ev widget.Event) error {
	if b.active != nil {
		err := b.active.Widget.Handle(ev)
		if b.active.Widget.State() == widget.Idle {
			b.active = nil
		}
		return err
	}
	if _, ok := ev.(widget.PickAttempt); !ok {
		return nil
	}
	for _, id := range b.IDs() {
		p := b.pairs[id]
		if err := p.Widget.Handle(ev); err != nil {
			return err
		}
		if p.Widget.State() != widget.Idle {
			b.active = p
			return nil
		}
	}
	return nil
}

// Active returns the pair currently being dragged, or nil.
func (b *Binding) Active() *Pair {
	return b.active
}
