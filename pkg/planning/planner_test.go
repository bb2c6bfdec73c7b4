package planning

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
	"resectionplan/pkg/config"
	"resectionplan/pkg/stl"
	"resectionplan/pkg/storage"
)

// octahedron returns a closed mesh of radius r around c.
func octahedron(c r3.Vec, r float64) *models.TriangleMesh {
	pts := []r3.Vec{
		{X: r}, {X: -r}, {Y: r}, {Y: -r}, {Z: r}, {Z: -r},
	}
	for i := range pts {
		pts[i] = r3.Add(pts[i], c)
	}
	return &models.TriangleMesh{
		Points: pts,
		Triangles: [][3]int{
			{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
			{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
		},
	}
}

// slab returns a square at height z.
func slab(half, z float64) *models.TriangleMesh {
	return &models.TriangleMesh{
		Points: []r3.Vec{
			{X: -half, Y: -half, Z: z}, {X: half, Y: -half, Z: z},
			{X: half, Y: half, Z: z}, {X: -half, Y: half, Z: z},
		},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

type fixture struct {
	dir    string
	config string
	liver  string
	tumor  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		liver:  filepath.Join(dir, "liver.stl"),
		tumor:  filepath.Join(dir, "tumor.stl"),
	}

	cfg := config.DefaultConfig()
	cfg.Surface.DisplayResolution = [2]int{12, 12}
	cfg.Surface.DistanceResolution = [2]int{8, 8}
	cfg.Output.SnapshotWidth = 128
	cfg.Output.SnapshotHeight = 128
	require.NoError(t, config.SaveConfig(cfg, f.config))

	require.NoError(t, stl.WriteMesh(f.liver, slab(50, -20)))
	require.NoError(t, stl.WriteMesh(f.tumor, octahedron(r3.Vec{X: 20, Y: 20}, 5)))
	return f
}

func (f fixture) params(out string) *Params {
	return &Params{
		ConfigFile: f.config,
		Targets: []TargetFile{
			{ID: "liver", Structure: models.Parenchyma, Path: f.liver},
			{ID: "tumor", Structure: models.Tumor, Path: f.tumor},
		},
		OutputDir: filepath.Join(f.dir, out),
		Out:       &bytes.Buffer{},
	}
}

func TestNewPlanner(t *testing.T) {
	p := NewPlanner(&Params{})
	assert.NotNil(t, p)
	assert.Equal(t, os.Stdout, p.out)
	assert.Empty(t, p.GetMetrics())
	_, ok := p.MinimumDistance()
	assert.False(t, ok)
}

func TestProcessWritesOutputs(t *testing.T) {
	f := newFixture(t)
	params := f.params("out")
	var log bytes.Buffer
	params.Out = &log

	p := NewPlanner(params)
	require.NoError(t, p.Process())

	for _, name := range []string{"resection-1_surface.stl", "resection-1_contour.yaml", "plan.yaml", "snapshot.jpg"} {
		_, err := os.Stat(filepath.Join(params.OutputDir, name))
		assert.NoError(t, err, name)
	}
	for _, step := range []string{"Step 1:", "Step 4:", "Step 6:"} {
		assert.Contains(t, log.String(), step)
	}

	metrics := p.GetMetrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, "resection-1", metrics[0].ID)
	assert.Equal(t, 10.0, metrics[0].Margin)
	// the net sits halfway between the slab and the tumour top
	assert.Greater(t, metrics[0].Min, 0.0)
	assert.Less(t, metrics[0].Min, 20.0)

	min, ok := p.MinimumDistance()
	require.True(t, ok)
	assert.Equal(t, metrics[0].Min, min)

	plan, err := storage.Load(filepath.Join(params.OutputDir, "plan.yaml"))
	require.NoError(t, err)
	require.Len(t, plan.Resections, 1)
	assert.Equal(t, []string{"liver", "tumor"}, plan.Resections[0].Targets)
	assert.Len(t, plan.Resections[0].Points, 16)
	assert.Len(t, plan.Anatomy, 2)
}

func TestProcessReplaysSession(t *testing.T) {
	f := newFixture(t)
	session := filepath.Join(f.dir, "session.yaml")
	// the corner handle sits at the targets' min x/y and mid height
	require.NoError(t, os.WriteFile(session, []byte(`steps:
  - action: press
    world: [-50, -50, -7.5]
  - action: drag
    world: [-50, -40, -7.5]
  - action: release
  - action: margin
    resection: resection-1
    value: 4
`), 0644))

	params := f.params("out")
	params.SessionFile = session
	p := NewPlanner(params)
	require.NoError(t, p.Process())

	metrics := p.GetMetrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, 4.0, metrics[0].Margin)

	plan, err := storage.Load(filepath.Join(params.OutputDir, "plan.yaml"))
	require.NoError(t, err)
	corner := plan.Resections[0].Points[0]
	assert.InDelta(t, -50, corner[0], 1e-6)
	assert.InDelta(t, -40, corner[1], 1e-6)
	assert.InDelta(t, -7.5, corner[2], 1e-6)
	assert.Equal(t, 4.0, plan.Resections[0].Margin)
}

func TestProcessResumesPlan(t *testing.T) {
	f := newFixture(t)
	first := NewPlanner(f.params("first"))
	require.NoError(t, first.Process())

	resumed := NewPlanner(&Params{
		ConfigFile: f.config,
		PlanFile:   filepath.Join(f.dir, "first", "plan.yaml"),
		OutputDir:  filepath.Join(f.dir, "second"),
		Out:        &bytes.Buffer{},
	})
	require.NoError(t, resumed.Process())

	a, b := first.GetMetrics(), resumed.GetMetrics()
	require.Len(t, b, 1)
	assert.InDelta(t, a[0].Min, b[0].Min, 1e-9)
	assert.InDelta(t, a[0].Mean, b[0].Mean, 1e-9)
}

func TestReloadRecomputes(t *testing.T) {
	f := newFixture(t)
	p := NewPlanner(f.params("out"))
	require.NoError(t, p.Process())
	before := p.GetMetrics()[0]

	assert.ElementsMatch(t, []string{f.liver, f.tumor}, p.WatchedFiles())

	// grow the tumour towards the surface
	require.NoError(t, stl.WriteMesh(f.tumor, octahedron(r3.Vec{X: 20, Y: 20}, 7)))
	require.NoError(t, p.Reload(f.tumor))
	after := p.GetMetrics()[0]
	assert.Less(t, after.Min, before.Min)

	assert.Error(t, p.Reload(filepath.Join(f.dir, "other.stl")))
}

func TestProcessErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("no targets", func(t *testing.T) {
		p := NewPlanner(&Params{OutputDir: dir, Out: &bytes.Buffer{}})
		assert.ErrorIs(t, p.Process(), ErrNoTargets)
	})

	t.Run("missing target file", func(t *testing.T) {
		p := NewPlanner(&Params{
			Targets:   []TargetFile{{ID: "x", Structure: models.Tumor, Path: filepath.Join(dir, "x.stl")}},
			OutputDir: dir,
			Out:       &bytes.Buffer{},
		})
		assert.Error(t, p.Process())
	})

	t.Run("invalid axis", func(t *testing.T) {
		f := newFixture(t)
		params := f.params("out")
		params.Axis = "w"
		assert.Error(t, NewPlanner(params).Process())
	})
}

func TestParseTargetFile(t *testing.T) {
	tests := []struct {
		arg     string
		want    TargetFile
		wantErr bool
	}{
		{"tumor=data/t1.stl", TargetFile{ID: "t1", Structure: models.Tumor, Path: "data/t1.stl"}, false},
		{"parenchyma:liver=organ.stl", TargetFile{ID: "liver", Structure: models.Parenchyma, Path: "organ.stl"}, false},
		{"vessel=v.stl", TargetFile{ID: "v", Structure: models.Vessel, Path: "v.stl"}, false},
		{"bone=b.stl", TargetFile{}, true},
		{"tumor.stl", TargetFile{}, true},
		{"tumor=", TargetFile{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := ParseTargetFile(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
