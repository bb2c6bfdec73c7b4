package planning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/pkg/widget"
)

// shift projects world points by a fixed offset.
type shift struct{ dx, dy float64 }

func (s shift) WorldToDisplay(p r3.Vec) r3.Vec {
	return r3.Vec{X: p.X + s.dx, Y: p.Y + s.dy}
}

func TestStepEvent(t *testing.T) {
	proj := shift{dx: 100, dy: 50}

	ev, ok := Step{Action: ActionPress, Button: "secondary", World: &[3]float64{1, 2, 3}}.Event(proj)
	require.True(t, ok)
	assert.Equal(t, widget.PickAttempt{X: 101, Y: 52, Button: widget.Secondary}, ev)

	ev, ok = Step{Action: ActionDrag, Display: &[2]float64{7, 8}}.Event(proj)
	require.True(t, ok)
	assert.Equal(t, widget.Drag{X: 7, Y: 8}, ev)

	ev, ok = Step{Action: ActionRelease}.Event(proj)
	require.True(t, ok)
	assert.Equal(t, widget.Release{}, ev)

	margin := 2.0
	_, ok = Step{Action: ActionMargin, Resection: "r", Value: &margin}.Event(proj)
	assert.False(t, ok)
}

func TestLoadSession(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	s, err := LoadSession(write("ok.yaml", `steps:
  - action: press
    display: [10, 20]
  - action: release
  - action: hide
    resection: r1
  - action: margin
    resection: r1
    value: 0
`))
	require.NoError(t, err)
	require.Len(t, s.Steps, 4)
	assert.Equal(t, ActionHide, s.Steps[2].Action)
	require.NotNil(t, s.Steps[3].Value)
	assert.Equal(t, 0.0, *s.Steps[3].Value)

	invalid := map[string]string{
		"no position":     "steps:\n  - action: press\n",
		"no margin":       "steps:\n  - action: margin\n    resection: r1\n",
		"negative margin": "steps:\n  - action: margin\n    resection: r1\n    value: -1\n",
		"no resection":    "steps:\n  - action: show\n",
		"unknown action":  "steps:\n  - action: rotate\n",
		"unknown button":  "steps:\n  - action: press\n    display: [0, 0]\n    button: middle\n",
		"not yaml":        "steps: [",
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSession(write(name+".yaml", body))
			assert.Error(t, err)
		})
	}

	_, err = LoadSession(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
