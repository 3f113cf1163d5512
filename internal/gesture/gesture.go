// Package gesture classifies a pointer position during a drag into a semantic drop target.
//
// The classifier is a pure function of its inputs for a fixed configuration, so it can be exercised without
// any UI event system.
package gesture

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/tree"
)

// RootID is the sentinel target id for the move-to-root drop zone.
const RootID = "__ROOT_DROP_ZONE__"

// Position is the placement relative to the target node.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
	On     Position = "on"
)

// DropTarget is the resolved destination of a drag.
type DropTarget struct {
	TargetID string   `json:"target_id"`
	Position Position `json:"position"`
}

// IsRoot reports whether the target is the root drop zone.
func (t DropTarget) IsRoot() bool { return t.TargetID == RootID }

func (t DropTarget) String() string { return fmt.Sprintf("%s:%s", t.Position, t.TargetID) }

// Point is a pointer position in container coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - o.
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Rect is an axis-aligned bounding box.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Thresholds holds the tunable distances of the classifier and drag controller. Distances are in pixels.
type Thresholds struct {
	RootMargin         float64       `yaml:"root_margin"`
	RootOffset         float64       `yaml:"root_offset"`
	Indent             float64       `yaml:"indent"`
	ZoneBand           float64       `yaml:"zone_band"`
	ActivationDistance float64       `yaml:"activation_distance"`
	AutoExpandDelay    time.Duration `yaml:"auto_expand_delay"`
}

// DefaultThresholds returns the mouse-tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RootMargin:         64,
		RootOffset:         100,
		Indent:             40,
		ZoneBand:           0.35,
		ActivationDistance: 8,
		AutoExpandDelay:    500 * time.Millisecond,
	}
}

var errIndentOffset = errors.New("must be smaller than root_offset")

// Validate checks that the thresholds describe a consistent gesture model.
func (t Thresholds) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.RootMargin, validation.Min(0.0)),
		validation.Field(&t.RootOffset, validation.Required, validation.Min(0.0)),
		validation.Field(&t.Indent, validation.Required, validation.Min(0.0), validation.By(func(any) error {
			if t.Indent >= t.RootOffset {
				return errIndentOffset
			}
			return nil
		})),
		validation.Field(&t.ZoneBand, validation.Required, validation.Min(0.0), validation.Max(0.4999)),
		validation.Field(&t.ActivationDistance, validation.Min(0.0)),
		validation.Field(&t.AutoExpandDelay, validation.Min(time.Duration(0))),
	)
}

// ParentResolver returns the effective parent of a node in the current tree snapshot.
type ParentResolver interface {
	ParentID(id string) (string, bool)
}

// Classifier maps pointer geometry to drop targets.
type Classifier struct {
	Thresholds Thresholds
	// Container is the bounding box of the tree; its left edge anchors the root margin.
	Container Rect
	Parents   ParentResolver
}

// Classify returns the drop target for the pointer at pointer, given the drag origin and the hovered row.
// Rules apply in order: root promotion, indent, outdent, then the vertical zone of the hovered row.
// ok is false when no node is hovered and the root rules did not fire.
func (c Classifier) Classify(pointer, dragStart Point, over *tree.Node, overRect *Rect) (DropTarget, bool) {
	th := c.Thresholds
	dx := pointer.X - dragStart.X

	if pointer.X < c.Container.Left+th.RootMargin || dx < -th.RootOffset {
		return DropTarget{TargetID: RootID, Position: On}, true
	}
	if over == nil {
		return DropTarget{}, false
	}
	if dx > th.Indent {
		return DropTarget{TargetID: over.ID, Position: On}, true
	}
	if dx < -th.Indent && c.Parents != nil {
		if parent, ok := c.Parents.ParentID(over.ID); ok {
			return DropTarget{TargetID: parent, Position: After}, true
		}
	}
	return DropTarget{TargetID: over.ID, Position: c.zone(pointer, overRect)}, true
}

func (c Classifier) zone(pointer Point, r *Rect) Position {
	if r == nil || r.Height <= 0 {
		return On
	}
	rel := (pointer.Y - r.Top) / r.Height
	switch {
	case rel <= c.Thresholds.ZoneBand:
		return Before
	case rel >= 1-c.Thresholds.ZoneBand:
		return After
	default:
		return On
	}
}
