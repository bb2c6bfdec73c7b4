package proximity

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Stop is one breakpoint of a piecewise-linear colour ramp.
type Stop struct {
	Value float64
	Color colorful.Color
}

// Ramp maps distances to colours. Near is used below the margin and Far at
// or above it; Upper is the last stop, fixed rather than derived from the
// observed maximum.
type Ramp struct {
	Near  colorful.Color
	Far   colorful.Color
	Upper float64
}

// DefaultRamp returns red below the margin, white above, up to 100.
func DefaultRamp() Ramp {
	return Ramp{
		Near:  colorful.Color{R: 1, G: 0.2, B: 0.2},
		Far:   colorful.Color{R: 1, G: 1, B: 1},
		Upper: 100,
	}
}

// Stops returns the four stops 0→Near, margin→Near, margin→Far, upper→Far.
// The duplicated margin value makes the step exact.
func (r Ramp) Stops(margin float64) []Stop {
	margin = math.Max(margin, 0)
	upper := math.Max(r.Upper, margin)
	return []Stop{
		{Value: 0, Color: r.Near},
		{Value: margin, Color: r.Near},
		{Value: margin, Color: r.Far},
		{Value: upper, Color: r.Far},
	}
}

// At returns the ramp colour for distance d.
func (r Ramp) At(d, margin float64) colorful.Color {
	return Interpolate(r.Stops(margin), d)
}

// Interpolate evaluates a piecewise-linear ramp. Values outside the stop
// range clamp to the end colours. At a repeated stop value the later stop
// wins.
func Interpolate(stops []Stop, v float64) colorful.Color {
	if len(stops) == 0 {
		return colorful.Color{}
	}
	if v < stops[0].Value {
		return stops[0].Color
	}
	for i := 1; i < len(stops); i++ {
		if v < stops[i].Value {
			a, b := stops[i-1], stops[i]
			t := (v - a.Value) / (b.Value - a.Value)
			return a.Color.BlendRgb(b.Color, t)
		}
	}
	return stops[len(stops)-1].Color
}
