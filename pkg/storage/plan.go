// Package storage persists resection plans as YAML documents.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"resectionplan/internal/models"
	"resectionplan/pkg/scene"
)

// FormatVersion is written into every saved plan.
const FormatVersion = 1

// ErrMalformed is returned for a record whose control point count does not
// match its grid.
var ErrMalformed = errors.New("malformed plan record")

// Plan is the on-disk document.
type Plan struct {
	Version    int         `yaml:"version"`
	Anatomy    []Structure `yaml:"anatomy,omitempty"`
	Resections []Record    `yaml:"resections"`
}

// Structure references a target mesh by file.
type Structure struct {
	ID        string `yaml:"id"`
	Structure string `yaml:"structure"`
	Path      string `yaml:"path,omitempty"`
}

// Record is one resection: its grid, its control points in row-major order,
// its margin and the IDs of the structures it is measured against.
type Record struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name,omitempty"`
	Rows    int          `yaml:"rows"`
	Cols    int          `yaml:"cols"`
	Points  [][3]float64 `yaml:"points,flow"`
	Margin  float64      `yaml:"margin"`
	Visible bool         `yaml:"visible"`
	Targets []string     `yaml:"targets,omitempty"`
}

// RecordFrom captures the persisted state of a resection entity.
func RecordFrom(e scene.ResectionEntity) Record {
	rows, cols, pts := e.ControlPoints()
	rec := Record{
		ID:      e.ID(),
		Name:    e.Name(),
		Rows:    rows,
		Cols:    cols,
		Points:  make([][3]float64, len(pts)),
		Margin:  e.Margin(),
		Visible: e.Visible(),
	}
	for i, p := range pts {
		rec.Points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	for _, t := range e.Targets() {
		rec.Targets = append(rec.Targets, t.ID())
	}
	return rec
}

// Validate checks that the point list matches the grid.
func (r Record) Validate() error {
	if len(r.Points) == 0 {
		return nil
	}
	if r.Rows < 1 || r.Cols < 1 || len(r.Points) != r.Rows*r.Cols {
		return fmt.Errorf("%w: %s has %d points for a %dx%d grid", ErrMalformed, r.ID, len(r.Points), r.Rows, r.Cols)
	}
	return nil
}

// ControlPoints returns the stored points as vectors.
func (r Record) ControlPoints() []r3.Vec {
	out := make([]r3.Vec, len(r.Points))
	for i, p := range r.Points {
		out[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	return out
}

// Apply copies margin, visibility and control points into res. Targets are
// resolved by the caller since they reference meshes loaded elsewhere.
func (r Record) Apply(res *scene.Resection) error {
	if err := r.Validate(); err != nil {
		return err
	}
	res.SetMargin(r.Margin)
	res.SetVisible(r.Visible)
	if len(r.Points) > 0 {
		res.SetControlPoints(r.Rows, r.Cols, r.ControlPoints())
	}
	return nil
}

// Resection builds a new scene resection from the record.
func (r Record) Resection() (*scene.Resection, error) {
	res := scene.NewResection(r.ID, r.Name, r.Margin)
	if err := r.Apply(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Find returns the record with the given ID.
func (p *Plan) Find(id string) (Record, bool) {
	for _, r := range p.Resections {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Put inserts or replaces a record by ID.
func (p *Plan) Put(rec Record) {
	for i, r := range p.Resections {
		if r.ID == rec.ID {
			p.Resections[i] = rec
			return
		}
	}
	p.Resections = append(p.Resections, rec)
}

// Save writes the plan to filename, creating parent directories.
func Save(filename string, p *Plan) error {
	p.Version = FormatVersion
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create plan directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

// Load reads and validates a plan file.
func Load(filename string) (*Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	if p.Version > FormatVersion {
		return nil, fmt.Errorf("plan version %d is newer than supported version %d", p.Version, FormatVersion)
	}
	for _, r := range p.Resections {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Contour is the YAML form of an iso-line.
type Contour struct {
	Owner  string       `yaml:"owner"`
	Value  float64      `yaml:"value"`
	Length float64      `yaml:"length"`
	Points [][3]float64 `yaml:"points,flow"`
	Lines  [][2]int     `yaml:"lines,flow"`
}

// SaveContour writes a polyline next to a plan.
func SaveContour(filename, owner string, value float64, line *models.PolyLine) error {
	c := Contour{Owner: owner, Value: value}
	if line != nil {
		c.Length = line.Length()
		c.Lines = line.Lines
		for _, p := range line.Points {
			c.Points = append(c.Points, [3]float64{p.X, p.Y, p.Z})
		}
	}
	data, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("failed to encode contour: %w", err)
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create contour directory: %w", err)
		}
	}
	return os.WriteFile(filename, data, 0644)
}
