package visualization

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/models"
	"resectionplan/pkg/widget"
)

func unitViewport(t *testing.T) *Viewport {
	t.Helper()
	v := NewViewport(200, 200)
	v.Fit(r3.Box{Min: r3.Vec{X: -1, Y: -1}, Max: r3.Vec{X: 1, Y: 1}})
	return v
}

func TestProjectionRoundTrip(t *testing.T) {
	for _, axis := range []string{"x", "y", "z"} {
		v := NewViewport(320, 240)
		require.NoError(t, v.SetCamera(Camera{Center: r3.Vec{X: 1, Y: 2, Z: 3}, Axis: axis, Scale: 40}))

		p := r3.Vec{X: 0.3, Y: -1.7, Z: 5.5}
		d := v.WorldToDisplay(p)
		back := v.DisplayToWorld(d.X, d.Y, d.Z)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(p, back)), 1e-12, "axis %s", axis)
	}
}

func TestInvalidCamera(t *testing.T) {
	v := NewViewport(10, 10)
	assert.Error(t, v.SetCamera(Camera{Axis: "w", Scale: 1}))
	assert.Error(t, v.SetCamera(Camera{Axis: "z", Scale: 0}))
	assert.Equal(t, "z", v.Camera().Axis)
}

func TestFit(t *testing.T) {
	v := unitViewport(t)
	assert.InDelta(t, 90.0, v.Camera().Scale, 1e-12)

	d := v.WorldToDisplay(r3.Vec{X: 1, Y: 1})
	assert.InDelta(t, 190, d.X, 1e-9)
	assert.InDelta(t, 10, d.Y, 1e-9, "y grows downwards")
	assert.InDelta(t, 1.0/90, v.WorldPerPixel(r3.Vec{}), 1e-12)
}

func TestPickNearest(t *testing.T) {
	v := unitViewport(t)
	low := &widget.Actor{Kind: widget.HandleActor, Center: r3.Vec{Z: 0}, Radius: 0.1, Visible: true}
	high := &widget.Actor{Kind: widget.HandleActor, Center: r3.Vec{Z: 2}, Radius: 0.1, Visible: true}
	tube := &widget.Actor{
		Kind:    widget.PolygonActor,
		Radius:  0.02,
		Visible: true,
		Lines: &models.PolyLine{
			Points: []r3.Vec{{X: -1, Y: 0.5}, {X: 1, Y: 0.5}},
			Lines:  [][2]int{{0, 1}},
		},
	}
	for _, a := range []*widget.Actor{low, high, tube} {
		v.AddActor(a)
		v.AddPickable(a)
	}

	c := v.WorldToDisplay(r3.Vec{})
	got, pos, ok := v.Pick(c.X, c.Y)
	require.True(t, ok)
	assert.Same(t, high, got, "the handle closer to the camera wins")
	assert.InDelta(t, 2.1, pos.Z, 1e-9)

	v.RemovePickable(high)
	got, _, ok = v.Pick(c.X, c.Y)
	require.True(t, ok)
	assert.Same(t, low, got)

	onTube := v.WorldToDisplay(r3.Vec{X: 0.7, Y: 0.5})
	got, pos, ok = v.Pick(onTube.X, onTube.Y)
	require.True(t, ok)
	assert.Same(t, tube, got)
	assert.InDelta(t, 0.7, pos.X, 1e-9)

	_, _, ok = v.Pick(5, 195)
	assert.False(t, ok)

	v.RemoveActor(low)
	assert.Len(t, v.Pickables(), 1)
	assert.Len(t, v.Actors(), 2)
}

func TestWidgetDragThroughViewport(t *testing.T) {
	v := unitViewport(t)
	opts := widget.DefaultOptions()
	opts.Resolution = [2]int{10, 10}
	opts.AutoSize = true

	w, err := widget.New("r1", opts)
	require.NoError(t, err)
	require.NoError(t, w.Attach(v, v))
	assert.InDelta(t, opts.HandlePixels*opts.HandleSizeFactor/90, w.HandleRadius(), 1e-12)

	corner := v.WorldToDisplay(w.Net().Point(0, 0))
	moved := v.WorldToDisplay(r3.Vec{X: 0.5, Y: -0.5})
	require.NoError(t, w.Handle(widget.PickAttempt{X: corner.X, Y: corner.Y, Button: widget.Primary}))
	require.Equal(t, widget.DraggingSingleHandle, w.State())
	require.NoError(t, w.Handle(widget.Drag{X: moved.X, Y: moved.Y}))
	require.NoError(t, w.Handle(widget.Release{}))

	assert.InDelta(t, 0, r3.Norm(r3.Sub(r3.Vec{X: 0.5, Y: -0.5}, w.Net().Point(0, 0))), 1e-9)
	assert.Greater(t, v.Frames(), 0)
}

func TestSnapshotDrawsActors(t *testing.T) {
	v := unitViewport(t)
	red := colorful.Color{R: 1}
	mesh := &models.TriangleMesh{
		Points:    []r3.Vec{{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5}},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
	v.AddActor(&widget.Actor{
		Kind:    widget.ColoredSurfaceActor,
		Mesh:    mesh,
		Colors:  []colorful.Color{red, red, red, red},
		Visible: true,
	})
	v.AddActor(&widget.Actor{Kind: widget.SurfaceActor, Mesh: mesh.Translated(r3.Vec{X: 3}), Visible: false})

	img := v.Snapshot()
	c := v.WorldToDisplay(r3.Vec{})
	px := img.RGBAAt(int(c.X), int(c.Y))
	assert.Equal(t, uint8(255), px.R)
	assert.Equal(t, uint8(0), px.G)
	assert.Equal(t, Background, img.RGBAAt(2, 2))
}

func TestExtractContourImage(t *testing.T) {
	v := unitViewport(t)
	v.AddActor(&widget.Actor{
		Kind:  widget.ContourActor,
		Owner: "r1",
		Lines: &models.PolyLine{
			Points: []r3.Vec{{X: -0.5}, {X: 0.5}},
			Lines:  [][2]int{{0, 1}},
		},
		Visible: true,
	})

	img := v.ExtractContourImage("r1")
	c := v.WorldToDisplay(r3.Vec{})
	assert.Equal(t, uint8(255), img.GrayAt(int(c.X), int(c.Y)).Y)
	assert.Equal(t, uint8(0), img.GrayAt(int(c.X), int(c.Y)+20).Y)

	other := v.ExtractContourImage("r2")
	assert.Equal(t, uint8(0), other.GrayAt(int(c.X), int(c.Y)).Y)
}

// TestSaveSnapshot verifies that snapshots are written as decodable JPEGs
func TestSaveSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	v := unitViewport(t)
	filename := filepath.Join(t.TempDir(), "out", "snapshot.jpg")
	if err := v.SaveSnapshot(filename); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Saved file does not exist: %s", filename)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 200 {
		t.Errorf("Expected 200x200 snapshot, got %v", img.Bounds())
	}
}
