package widget

// Button identifies which pointer gesture started a pick.
type Button int

const (
	// Primary drags a single handle
	Primary Button = iota
	// Secondary drags the whole group of the picked handle
	Secondary
)

func (b Button) String() string {
	if b == Secondary {
		return "secondary"
	}
	return "primary"
}

// Event is one of PickAttempt, Drag or Release.
type Event interface {
	isEvent()
}

// PickAttempt starts an interaction at display coordinates (X, Y).
type PickAttempt struct {
	X, Y   float64
	Button Button
}

// Drag moves the pointer to display coordinates (X, Y).
type Drag struct {
	X, Y float64
}

// Release ends the current interaction.
type Release struct{}

func (PickAttempt) isEvent() {}
func (Drag) isEvent()        {}
func (Release) isEvent()     {}

// State is the interaction state of a widget.
type State int

const (
	Idle State = iota
	DraggingSingleHandle
	DraggingGroup
	DraggingWholeNet
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DraggingSingleHandle:
		return "dragging-handle"
	case DraggingGroup:
		return "dragging-group"
	case DraggingWholeNet:
		return "dragging-net"
	default:
		return "unknown"
	}
}

// Dragging reports whether s is one of the dragging states.
func (s State) Dragging() bool {
	return s != Idle
}
