package planning

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"resectionplan/pkg/widget"
)

// Action names a recorded session step.
type Action string

const (
	ActionPress   Action = "press"
	ActionDrag    Action = "drag"
	ActionRelease Action = "release"
	ActionMargin  Action = "margin"
	ActionShow    Action = "show"
	ActionHide    Action = "hide"
)

// Step is one recorded user action. Pointer positions are given either in
// display pixels or as a world point projected through the camera.
type Step struct {
	Action    Action      `yaml:"action"`
	Button    string      `yaml:"button,omitempty"`
	Display   *[2]float64 `yaml:"display,omitempty,flow"`
	World     *[3]float64 `yaml:"world,omitempty,flow"`
	Resection string      `yaml:"resection,omitempty"`
	Value     *float64    `yaml:"value,omitempty"`
}

// Session is a recorded list of steps replayed against the binding.
type Session struct {
	Steps []Step `yaml:"steps"`
}

// LoadSession reads a YAML session file.
func LoadSession(filename string) (*Session, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

func (s Step) validate() error {
	switch s.Action {
	case ActionPress, ActionDrag:
		if s.Display == nil && s.World == nil {
			return fmt.Errorf("%s needs a display or world position", s.Action)
		}
	case ActionMargin:
		// a zero margin is allowed: the contour then traces contact
		if s.Resection == "" || s.Value == nil || *s.Value < 0 {
			return fmt.Errorf("margin needs a resection and a non-negative value")
		}
	case ActionShow, ActionHide:
		if s.Resection == "" {
			return fmt.Errorf("%s needs a resection", s.Action)
		}
	case ActionRelease:
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.Button != "" && s.Button != "primary" && s.Button != "secondary" {
		return fmt.Errorf("unknown button %q", s.Button)
	}
	return nil
}

// projector converts world points to display coordinates.
type projector interface {
	WorldToDisplay(p r3.Vec) r3.Vec
}

// position resolves the display coordinates of a pointer step.
func (s Step) position(p projector) (x, y float64) {
	if s.Display != nil {
		return s.Display[0], s.Display[1]
	}
	d := p.WorldToDisplay(r3.Vec{X: s.World[0], Y: s.World[1], Z: s.World[2]})
	return d.X, d.Y
}

// Event converts a pointer step into a widget event. ok is false for steps
// that are not input events.
func (s Step) Event(p projector) (ev widget.Event, ok bool) {
	switch s.Action {
	case ActionPress:
		x, y := s.position(p)
		b := widget.Primary
		if s.Button == "secondary" {
			b = widget.Secondary
		}
		return widget.PickAttempt{X: x, Y: y, Button: b}, true
	case ActionDrag:
		x, y := s.position(p)
		return widget.Drag{X: x, Y: y}, true
	case ActionRelease:
		return widget.Release{}, true
	}
	return nil, false
}
