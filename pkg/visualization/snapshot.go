package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/pkg/widget"
)

// Background is the snapshot clear colour.
var Background = color.RGBA{R: 24, G: 24, B: 32, A: 255}

type raster struct {
	v     *Viewport
	img   *image.RGBA
	depth []float64
}

func (v *Viewport) newRaster() *raster {
	r := &raster{
		v:     v,
		img:   image.NewRGBA(image.Rect(0, 0, v.width, v.height)),
		depth: make([]float64, v.width*v.height),
	}
	for i := range r.depth {
		r.depth[i] = math.Inf(1)
	}
	for i := 0; i < len(r.img.Pix); i += 4 {
		r.img.Pix[i], r.img.Pix[i+1], r.img.Pix[i+2], r.img.Pix[i+3] = Background.R, Background.G, Background.B, Background.A
	}
	return r
}

// Snapshot rasterises every visible actor with a depth buffer. Surfaces are
// filled with Gouraud-interpolated colours, lines are drawn one pixel wide
// and handles as discs.
func (v *Viewport) Snapshot() *image.RGBA {
	r := v.newRaster()
	for _, a := range v.actors {
		if !a.Visible {
			continue
		}
		switch a.Kind {
		case widget.SurfaceActor, widget.ColoredSurfaceActor:
			r.drawSurface(a)
		}
	}
	// lines and handles sit on top of surfaces they touch
	for _, a := range v.actors {
		if !a.Visible {
			continue
		}
		switch a.Kind {
		case widget.PolygonActor, widget.ContourActor:
			r.drawLines(a, toRGBA(a.Color))
		case widget.HandleActor:
			r.drawDisc(a)
		}
	}
	return r.img
}

// ExtractContourImage draws only the contour actors of owner, white on black.
func (v *Viewport) ExtractContourImage(owner string) *image.Gray {
	r := v.newRaster()
	for _, a := range v.actors {
		if a.Kind == widget.ContourActor && a.Owner == owner {
			r.drawLines(a, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	gray := image.NewGray(r.img.Bounds())
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			if r.depth[y*v.width+x] < math.Inf(1) {
				gray.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return gray
}

// SaveSnapshot renders the scene and writes it as a JPEG image.
func (v *Viewport) SaveSnapshot(filename string) error {
	return SaveImage(v.Snapshot(), filename)
}

// SaveImage writes img as a JPEG image, creating the directory if needed.
func SaveImage(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("error creating snapshot directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func (r *raster) plot(x, y int, z float64, c color.RGBA) {
	if x < 0 || y < 0 || x >= r.v.width || y >= r.v.height {
		return
	}
	k := y*r.v.width + x
	if z > r.depth[k] {
		return
	}
	r.depth[k] = z
	r.img.SetRGBA(x, y, c)
}

func (r *raster) drawSurface(a *widget.Actor) {
	if a.Mesh == nil {
		return
	}
	perVertex := a.Kind == widget.ColoredSurfaceActor && len(a.Colors) == a.Mesh.NumPoints()
	screen := make([]r3.Vec, a.Mesh.NumPoints())
	for i, p := range a.Mesh.Points {
		screen[i] = r.v.WorldToDisplay(p)
	}
	for _, tri := range a.Mesh.Triangles {
		var cols [3]colorful.Color
		for k, idx := range tri {
			cols[k] = a.Color
			if perVertex {
				cols[k] = a.Colors[idx]
			}
		}
		r.fillTriangle(screen[tri[0]], screen[tri[1]], screen[tri[2]], cols)
	}
}

// fillTriangle scan-converts a triangle with barycentric interpolation of
// depth and colour.
func (r *raster) fillTriangle(a, b, c r3.Vec, cols [3]colorful.Color) {
	area := (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
	if area == 0 {
		return
	}
	minX := int(math.Max(0, math.Floor(math.Min(a.X, math.Min(b.X, c.X)))))
	maxX := int(math.Min(float64(r.v.width-1), math.Ceil(math.Max(a.X, math.Max(b.X, c.X)))))
	minY := int(math.Max(0, math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y)))))
	maxY := int(math.Min(float64(r.v.height-1), math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y)))))

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := ((b.X-px)*(c.Y-py) - (c.X-px)*(b.Y-py)) / area
			w1 := ((c.X-px)*(a.Y-py) - (a.X-px)*(c.Y-py)) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a.Z + w1*b.Z + w2*c.Z
			col := colorful.Color{
				R: w0*cols[0].R + w1*cols[1].R + w2*cols[2].R,
				G: w0*cols[0].G + w1*cols[1].G + w2*cols[2].G,
				B: w0*cols[0].B + w1*cols[1].B + w2*cols[2].B,
			}
			r.plot(x, y, z, toRGBA(col))
		}
	}
}

func (r *raster) drawLines(a *widget.Actor, c color.RGBA) {
	if a.Lines == nil {
		return
	}
	for _, l := range a.Lines.Lines {
		p := r.v.WorldToDisplay(a.Lines.Points[l[0]])
		q := r.v.WorldToDisplay(a.Lines.Points[l[1]])
		r.drawSegment(p, q, c)
	}
}

// drawSegment walks the segment one pixel at a time. Depth is pulled
// slightly forward so lines lying on a surface stay visible.
func (r *raster) drawSegment(p, q r3.Vec, c color.RGBA) {
	const bias = 1e-3
	steps := int(math.Ceil(math.Max(math.Abs(q.X-p.X), math.Abs(q.Y-p.Y))))
	if steps == 0 {
		r.plot(int(p.X), int(p.Y), p.Z-bias, c)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := p.X + t*(q.X-p.X)
		y := p.Y + t*(q.Y-p.Y)
		z := p.Z + t*(q.Z-p.Z)
		r.plot(int(math.Floor(x)), int(math.Floor(y)), z-bias, c)
	}
}

func (r *raster) drawDisc(a *widget.Actor) {
	centre := r.v.WorldToDisplay(a.Center)
	rad := a.Radius * r.v.camera.Scale
	c := toRGBA(a.Color)
	for y := int(math.Floor(centre.Y - rad)); y <= int(math.Ceil(centre.Y+rad)); y++ {
		for x := int(math.Floor(centre.X - rad)); x <= int(math.Ceil(centre.X+rad)); x++ {
			dx, dy := float64(x)+0.5-centre.X, float64(y)+0.5-centre.Y
			if d2 := dx*dx + dy*dy; d2 <= rad*rad {
				// sphere front face
				r.plot(x, y, centre.Z-math.Sqrt(rad*rad-d2)/r.v.camera.Scale, c)
			}
		}
	}
}
