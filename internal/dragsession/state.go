package dragsession

import "github.com/starford/folio/internal/gesture"

// State is the phase of the drag state machine.
type State int

const (
	Idle State = iota
	// Pressed means the handle is held but the pointer has not travelled the activation distance yet.
	Pressed
	Dragging
	Committing
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Cursor is the pointer style to show while dragging.
type Cursor string

const (
	CursorDefault    Cursor = ""
	CursorGrabbing   Cursor = "grabbing"
	CursorNotAllowed Cursor = "not-allowed"
)

// Indicator is the visual feedback for the current drag. It is derived only from the drop target and the
// invalid-target set.
type Indicator struct {
	Dragged      string `json:"dragged,omitempty"`
	InsertBefore string `json:"insert_before,omitempty"`
	InsertAfter  string `json:"insert_after,omitempty"`
	Nest         string `json:"nest,omitempty"`
	RootZone     bool   `json:"root_zone,omitempty"`
	Invalid      string `json:"invalid,omitempty"`
	Cursor       Cursor `json:"cursor,omitempty"`
}

func indicatorFor(dragged string, target *gesture.DropTarget, invalidHover string) Indicator {
	ind := Indicator{Dragged: dragged, Cursor: CursorGrabbing}
	if invalidHover != "" {
		ind.Invalid = invalidHover
		ind.Cursor = CursorNotAllowed
		return ind
	}
	if target == nil {
		return ind
	}
	switch {
	case target.IsRoot():
		ind.RootZone = true
	case target.Position == gesture.Before:
		ind.InsertBefore = target.TargetID
	case target.Position == gesture.After:
		ind.InsertAfter = target.TargetID
	default:
		ind.Nest = target.TargetID
	}
	return ind
}
