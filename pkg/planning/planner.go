// Package planning runs a complete resection planning pass: it loads the
// target anatomy, binds resection surfaces to it, replays recorded edits and
// exports the resulting surfaces, safety-margin contours and plan.
package planning

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"resectionplan/internal/logging"
	"resectionplan/internal/models"
	"resectionplan/pkg/config"
	"resectionplan/pkg/phantom"
	"resectionplan/pkg/proximity"
	"resectionplan/pkg/scene"
	"resectionplan/pkg/stl"
	"resectionplan/pkg/storage"
	"resectionplan/pkg/visualization"
)

// ErrNoTargets is returned when neither target files nor a phantom were given.
var ErrNoTargets = errors.New("no target anatomy: give target files or use a phantom")

// Params holds the planning parameters.
type Params struct {
	// ConfigFile is an optional YAML or TOML configuration file. Defaults are
	// used when it is empty or missing.
	ConfigFile string

	// Targets lists the STL meshes to plan against.
	Targets []TargetFile

	// Phantom replaces Targets with synthetic anatomy.
	Phantom *phantom.Spec

	// PlanFile is an optional plan to resume. Resections and their control
	// points are restored from it.
	PlanFile string

	// SessionFile is an optional recorded session replayed after setup.
	SessionFile string

	// OutputDir receives the surfaces, contours, plan and snapshot.
	OutputDir string

	// Axis is the camera axis of the snapshot viewport ("x", "y" or "z").
	Axis string

	// Out receives progress messages. Defaults to os.Stdout.
	Out io.Writer
}

// Metrics summarises the proximity result of one resection.
type Metrics struct {
	ID     string
	Name   string
	Margin float64
	proximity.Stats

	// Violations is the number of sampled vertices closer than the margin
	Violations int

	// ContourLength is the length of the margin iso-line
	ContourLength float64
}

// Planner drives the planning steps:
// 1. Loading configuration
// 2. Loading target anatomy
// 3. Building the viewport and binding
// 4. Adding resections
// 5. Replaying the recorded session
// 6. Exporting results
type Planner struct {
	params *Params
	out    io.Writer

	mu       sync.Mutex
	cfg      *config.Config
	anatomy  []*models.Anatomy
	files    map[string]TargetFile
	view     *visualization.Viewport
	binding  *scene.Binding
	entities map[string]*scene.Resection
	metrics  []Metrics
}

// NewPlanner creates a planner for params.
func NewPlanner(params *Params) *Planner {
	out := params.Out
	if out == nil {
		out = os.Stdout
	}
	return &Planner{
		params:   params,
		out:      out,
		files:    make(map[string]TargetFile),
		entities: make(map[string]*scene.Resection),
	}
}

// Process runs the complete planning pipeline.
func (p *Planner) Process() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, "Step 1: Loading configuration...")
	cfg, err := config.LoadConfig(p.params.ConfigFile)
	if err != nil {
		return err
	}
	p.cfg = cfg

	fmt.Fprintln(p.out, "Step 2: Loading target anatomy...")
	if err := p.loadAnatomy(); err != nil {
		return err
	}

	fmt.Fprintln(p.out, "Step 3: Building viewport and binding...")
	if err := p.buildScene(); err != nil {
		return err
	}

	fmt.Fprintln(p.out, "Step 4: Adding resections...")
	if err := p.addResections(); err != nil {
		return err
	}

	if p.params.SessionFile != "" {
		fmt.Fprintln(p.out, "Step 5: Replaying session...")
		session, err := LoadSession(p.params.SessionFile)
		if err != nil {
			return err
		}
		if err := p.replay(session); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(p.out, "Step 5: No session to replay")
	}

	fmt.Fprintln(p.out, "Step 6: Exporting results...")
	return p.export()
}

func (p *Planner) loadAnatomy() error {
	targets := p.params.Targets
	if len(targets) == 0 && p.params.Phantom == nil && p.params.PlanFile != "" {
		var err error
		if targets, err = planTargets(p.params.PlanFile); err != nil {
			return err
		}
	}

	switch {
	case len(targets) > 0:
		for _, f := range targets {
			a, err := f.Load()
			if err != nil {
				return fmt.Errorf("failed to load target %s: %w", f.ID, err)
			}
			p.anatomy = append(p.anatomy, a)
			p.files[f.ID] = f
			fmt.Fprintf(p.out, "Loaded %s %s: %d triangles\n", a.Structure(), a.ID(), a.Mesh().NumTriangles())
		}
	case p.params.Phantom != nil:
		anatomy, err := phantom.Build(*p.params.Phantom)
		if err != nil {
			return fmt.Errorf("failed to build phantom: %w", err)
		}
		p.anatomy = anatomy
		fmt.Fprintf(p.out, "Built phantom with %d structures\n", len(anatomy))
	default:
		return ErrNoTargets
	}
	return nil
}

// planTargets resolves the anatomy files referenced by a plan relative to
// the plan's directory.
func planTargets(planFile string) ([]TargetFile, error) {
	plan, err := storage.Load(planFile)
	if err != nil {
		return nil, err
	}
	var out []TargetFile
	for _, s := range plan.Anatomy {
		if s.Path == "" {
			continue
		}
		st, err := models.ParseStructure(s.Structure)
		if err != nil {
			return nil, err
		}
		path := s.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(planFile), path)
		}
		out = append(out, TargetFile{ID: s.ID, Structure: st, Path: path})
	}
	return out, nil
}

func (p *Planner) buildScene() error {
	p.view = visualization.NewViewport(p.cfg.Output.SnapshotWidth, p.cfg.Output.SnapshotHeight)
	axis := p.params.Axis
	if axis == "" {
		axis = "z"
	}
	if err := p.view.SetCamera(visualization.Camera{Axis: axis, Scale: 1}); err != nil {
		return err
	}
	merged := &models.TriangleMesh{}
	for _, a := range p.anatomy {
		merged.Points = append(merged.Points, a.Mesh().Points...)
	}
	p.view.Fit(merged.Bounds())

	opts := scene.OptionsFromConfig(p.cfg)
	opts.PlaceOnTargets = true
	p.binding = scene.NewBinding(p.view, p.view, opts)
	return nil
}

func (p *Planner) anatomyByID(id string) *models.Anatomy {
	for _, a := range p.anatomy {
		if a.ID() == id {
			return a
		}
	}
	return nil
}

// assignTargets attaches anatomy to a resection. With no IDs every
// parenchyma and tumour is used.
func (p *Planner) assignTargets(res *scene.Resection, ids []string) error {
	var list []*models.Anatomy
	if len(ids) == 0 {
		list = p.anatomy
	} else {
		for _, id := range ids {
			a := p.anatomyByID(id)
			if a == nil {
				return fmt.Errorf("resection %s: unknown target %s", res.ID(), id)
			}
			list = append(list, a)
		}
	}
	for _, a := range list {
		switch a.Structure() {
		case models.Parenchyma:
			res.SetParenchyma(a)
		case models.Tumor:
			res.AddTumor(a)
		}
	}
	return nil
}

func (p *Planner) addResections() error {
	var records []storage.Record
	if p.params.PlanFile != "" {
		plan, err := storage.Load(p.params.PlanFile)
		if err != nil {
			return err
		}
		records = plan.Resections
	}
	if len(records) == 0 {
		records = []storage.Record{{
			ID:      "resection-1",
			Name:    "Resection 1",
			Margin:  p.cfg.Proximity.DefaultMargin,
			Visible: true,
		}}
	}

	for _, rec := range records {
		res, err := rec.Resection()
		if err != nil {
			return err
		}
		if err := p.assignTargets(res, rec.Targets); err != nil {
			return err
		}
		if err := p.binding.Add(res); err != nil {
			return fmt.Errorf("failed to add resection %s: %w", rec.ID, err)
		}
		p.entities[res.ID()] = res
		fmt.Fprintf(p.out, "Added resection %s (margin %.1f mm, %d targets)\n", res.ID(), res.Margin(), len(res.Targets()))
	}
	return nil
}

func (p *Planner) replay(s *Session) error {
	for i, st := range s.Steps {
		if ev, ok := st.Event(p.view); ok {
			if err := p.binding.HandleInput(ev); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			continue
		}
		res, ok := p.entities[st.Resection]
		if !ok {
			return fmt.Errorf("step %d: unknown resection %s", i+1, st.Resection)
		}
		var change scene.ChangeKind
		switch st.Action {
		case ActionMargin:
			res.SetMargin(*st.Value)
			change = scene.MarginChange
		case ActionShow, ActionHide:
			res.SetVisible(st.Action == ActionShow)
			change = scene.VisibilityChange
		}
		if err := p.binding.Apply(scene.Change{ID: res.ID(), Kind: change}); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	fmt.Fprintf(p.out, "Replayed %d steps\n", len(s.Steps))
	return nil
}

func (p *Planner) export() error {
	if err := os.MkdirAll(p.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	plan := &storage.Plan{}
	for _, a := range p.anatomy {
		ref := storage.Structure{ID: a.ID(), Structure: a.Structure().String()}
		if f, ok := p.files[a.ID()]; ok {
			if abs, err := filepath.Abs(f.Path); err == nil {
				ref.Path = abs
			}
		}
		plan.Anatomy = append(plan.Anatomy, ref)
	}

	p.metrics = p.metrics[:0]
	for _, id := range p.binding.IDs() {
		pair, _ := p.binding.Pair(id)
		plan.Put(storage.RecordFrom(pair.Entity))

		surface := filepath.Join(p.params.OutputDir, id+"_surface.stl")
		if err := stl.WriteMesh(surface, pair.Widget.Surface()); err != nil {
			return fmt.Errorf("failed to save surface of %s: %w", id, err)
		}
		if p.cfg.Output.Verbose {
			fmt.Fprintf(p.out, "Saved %s\n", surface)
		}

		res := pair.Result()
		if res == nil {
			logging.Logger().Warn("no proximity result", "entity", id, "err", pair.Err())
			continue
		}
		contour := filepath.Join(p.params.OutputDir, id+"_contour.yaml")
		if err := storage.SaveContour(contour, id, res.ContourValue, res.Contour); err != nil {
			return fmt.Errorf("failed to save contour of %s: %w", id, err)
		}
		if p.cfg.Output.Verbose {
			img := p.view.ExtractContourImage(id)
			if err := visualization.SaveImage(img, filepath.Join(p.params.OutputDir, id+"_contour.jpg")); err != nil {
				fmt.Fprintf(p.out, "Warning: Failed to save contour image of %s: %v\n", id, err)
			}
		}
		p.metrics = append(p.metrics, metricsFor(pair, res))
	}

	if err := storage.Save(filepath.Join(p.params.OutputDir, "plan.yaml"), plan); err != nil {
		return err
	}
	if err := p.view.SaveSnapshot(filepath.Join(p.params.OutputDir, "snapshot.jpg")); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	for _, m := range p.metrics {
		fmt.Fprintf(p.out, "%s: min %.2f mm, mean %.2f mm, %d vertices inside %.1f mm margin\n",
			m.ID, m.Min, m.Mean, m.Violations, m.Margin)
	}
	return nil
}

func metricsFor(pair *scene.Pair, res *proximity.Result) Metrics {
	m := Metrics{
		ID:     pair.Entity.ID(),
		Name:   pair.Entity.Name(),
		Margin: res.ContourValue,
		Stats:  res.Stats,
	}
	for i := range res.Distances {
		if res.Side(i) == proximity.TooClose {
			m.Violations++
		}
	}
	if res.Contour != nil {
		m.ContourLength = res.Contour.Length()
	}
	return m
}

// GetMetrics returns the metrics of the last export, one per resection with
// a proximity result.
func (p *Planner) GetMetrics() []Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Metrics(nil), p.metrics...)
}

// MinimumDistance returns the smallest distance over every resection, or
// false when there are no results.
func (p *Planner) MinimumDistance() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.metrics) == 0 {
		return 0, false
	}
	min := p.metrics[0].Min
	for _, m := range p.metrics[1:] {
		min = math.Min(min, m.Min)
	}
	return min, true
}

// WatchedFiles returns the target files loaded from disk.
func (p *Planner) WatchedFiles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, a := range p.anatomy {
		if f, ok := p.files[a.ID()]; ok {
			out = append(out, f.Path)
		}
	}
	return out
}

// Reload re-reads a changed target file, recomputes every resection that
// measures against it and exports again.
func (p *Planner) Reload(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	for id, f := range p.files {
		fabs, err := filepath.Abs(f.Path)
		if err != nil || fabs != abs {
			continue
		}
		mesh, err := stl.Parse(f.Path)
		if err != nil {
			return fmt.Errorf("failed to reload %s: %w", id, err)
		}
		a := p.anatomyByID(id)
		a.SetMesh(mesh)
		fmt.Fprintf(p.out, "Reloaded %s: %d triangles\n", id, mesh.NumTriangles())

		for _, rid := range p.binding.IDs() {
			if !measures(p.entities[rid], id) {
				continue
			}
			if err := p.binding.TargetsChanged(rid); err != nil {
				return err
			}
		}
		return p.export()
	}
	return fmt.Errorf("%s is not a loaded target", path)
}

func measures(res *scene.Resection, id string) bool {
	if res == nil {
		return false
	}
	for _, t := range res.Targets() {
		if t.ID() == id {
			return true
		}
	}
	return false
}

// Binding exposes the scene binding for callers that edit interactively.
func (p *Planner) Binding() *scene.Binding {
	return p.binding
}

// Viewport returns the headless viewport.
func (p *Planner) Viewport() *visualization.Viewport {
	return p.view
}
