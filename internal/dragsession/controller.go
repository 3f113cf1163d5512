// Package dragsession owns the state machine of a single drag gesture over the note tree.
package dragsession

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/starford/folio/internal/clock"
	"github.com/starford/folio/internal/gesture"
	"github.com/starford/folio/internal/reorder"
	"github.com/starford/folio/internal/tree"
)

var (
	// ErrBusy is returned when a drag is started while another one is active.
	ErrBusy = errors.New("dragsession: drag already in progress")
	// ErrNotDragging is returned by End when no drag is active.
	ErrNotDragging = errors.New("dragsession: no active drag")
	// ErrUnknownNode is returned when the dragged id is not in the snapshot.
	ErrUnknownNode = errors.New("dragsession: node not in tree")
)

// Committer persists a completed drop.
type Committer interface {
	Commit(ctx context.Context, nodeID string, target gesture.DropTarget, ix *tree.Index) (reorder.Move, error)
}

// Expander exposes the expand/collapse state the controller needs for auto-expand and post-nest expansion.
type Expander interface {
	IsExpanded(id string) bool
	Expand(id string)
}

// Hover describes the row under the pointer.
type Hover struct {
	NodeID string
	Rect   *gesture.Rect
}

// Outcome reports how a drag ended.
type Outcome struct {
	State  State
	Target gesture.DropTarget
	Move   reorder.Move
}

// Controller drives one drag at a time. It is safe for concurrent use; timer callbacks from superseded
// sessions are discarded by comparing generations.
type Controller struct {
	thresholds gesture.Thresholds
	committer  Committer
	expander   Expander
	clock      clock.Clock
	logger     *slog.Logger

	mu           sync.Mutex
	gen          uint64
	state        State
	nodeID       string
	ix           *tree.Index
	invalid      map[string]struct{}
	origin       gesture.Point
	container    gesture.Rect
	target       *gesture.DropTarget
	invalidHover string
	dwell        clock.Timer
	dwellID      string
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// New returns an idle controller.
func New(th gesture.Thresholds, committer Committer, expander Expander, opts ...Option) *Controller {
	c := &Controller{
		thresholds: th,
		committer:  committer,
		expander:   expander,
		clock:      clock.Real{},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Press records a press on the drag handle of id. The drag starts once the pointer moves past the activation
// distance.
func (c *Controller) Press(ix *tree.Index, id string, p gesture.Point, container gesture.Rect) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return ErrBusy
	}
	if _, ok := ix.Node(id); !ok {
		return ErrUnknownNode
	}
	c.gen++
	c.state = Pressed
	c.ix, c.nodeID, c.origin, c.container = ix, id, p, container
	return nil
}

// Start enters Dragging immediately.
func (c *Controller) Start(ix *tree.Index, id string, origin gesture.Point, container gesture.Rect) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return ErrBusy
	}
	if _, ok := ix.Node(id); !ok {
		return ErrUnknownNode
	}
	c.gen++
	c.ix, c.nodeID, c.origin, c.container = ix, id, origin, container
	c.beginLocked()
	return nil
}

func (c *Controller) beginLocked() {
	c.state = Dragging
	c.invalid = c.ix.InvalidTargets(c.nodeID)
	c.target = nil
	c.invalidHover = ""
	c.logger.Debug("drag started", slog.String("note", c.nodeID))
}

// Move feeds a pointer position and the hovered row, and returns the resulting indicator.
func (c *Controller) Move(pointer gesture.Point, hover *Hover) Indicator {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Pressed:
		d := pointer.Sub(c.origin)
		if math.Hypot(d.X, d.Y) < c.thresholds.ActivationDistance {
			return Indicator{}
		}
		c.beginLocked()
	case Dragging:
	default:
		return c.indicatorLocked()
	}

	c.invalidHover = ""
	c.target = nil

	var (
		over       *tree.Node
		rect       *gesture.Rect
		overID     string
		badHoverID string
	)
	if hover != nil {
		if _, bad := c.invalid[hover.NodeID]; bad {
			// Only root promotion can still apply over the dragged subtree.
			badHoverID = hover.NodeID
		} else if n, ok := c.ix.Node(hover.NodeID); ok {
			over, rect, overID = n, hover.Rect, n.ID
		}
	}

	cls := gesture.Classifier{Thresholds: c.thresholds, Container: c.container, Parents: c.ix}
	t, ok := cls.Classify(pointer, c.origin, over, rect)
	switch {
	case ok && t.IsRoot():
		c.target = &t
		overID = ""
	case badHoverID != "":
		c.invalidHover = badHoverID
	case ok:
		if _, bad := c.invalid[t.TargetID]; bad {
			c.invalidHover = t.TargetID
		} else {
			c.target = &t
		}
	}

	c.armDwellLocked(overID)
	return c.indicatorLocked()
}

// Target returns the current drop target.
func (c *Controller) Target() (gesture.DropTarget, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return gesture.DropTarget{}, false
	}
	return *c.target, true
}

// Indicator returns the visual state for the current drag.
func (c *Controller) Indicator() Indicator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indicatorLocked()
}

func (c *Controller) indicatorLocked() Indicator {
	if c.state != Dragging && c.state != Committing {
		return Indicator{}
	}
	return indicatorFor(c.nodeID, c.target, c.invalidHover)
}

// End releases the pointer. With a valid target the drop is committed through exactly one committer call;
// otherwise the drag is cancelled. The controller is Idle again when End returns.
func (c *Controller) End(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	switch c.state {
	case Pressed:
		c.resetLocked()
		c.mu.Unlock()
		return Outcome{State: Cancelled}, nil
	case Dragging:
	default:
		c.mu.Unlock()
		return Outcome{}, ErrNotDragging
	}

	if c.target == nil {
		c.logger.Debug("drag cancelled", slog.String("note", c.nodeID))
		c.resetLocked()
		c.mu.Unlock()
		return Outcome{State: Cancelled}, nil
	}

	c.state = Committing
	c.stopDwellLocked()
	gen, nodeID, target, ix := c.gen, c.nodeID, *c.target, c.ix
	c.mu.Unlock()

	move, err := c.committer.Commit(ctx, nodeID, target, ix)

	c.mu.Lock()
	if c.gen == gen {
		c.resetLocked()
	}
	c.mu.Unlock()

	out := Outcome{State: Committing, Target: target, Move: move}
	if err != nil {
		c.logger.Warn("drag commit failed", slog.String("note", nodeID), slog.String("error", err.Error()))
		return out, err
	}
	if target.Position == gesture.On && !target.IsRoot() && c.expander != nil {
		c.expander.Expand(target.TargetID)
	}
	return out, nil
}

// Cancel aborts the gesture from any state. It never issues a network call.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return
	}
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.stopDwellLocked()
	c.gen++
	c.state = Idle
	c.nodeID = ""
	c.ix = nil
	c.invalid = nil
	c.target = nil
	c.invalidHover = ""
}

// armDwellLocked keeps at most one auto-expand timer, re-armed whenever the hovered node changes.
func (c *Controller) armDwellLocked(id string) {
	if id == c.dwellID {
		return
	}
	c.stopDwellLocked()
	c.dwellID = id
	if id == "" || c.expander == nil || c.thresholds.AutoExpandDelay <= 0 {
		return
	}
	n, ok := c.ix.Node(id)
	if !ok || !n.HasChildren() || c.expander.IsExpanded(id) {
		return
	}
	gen := c.gen
	c.dwell = c.clock.AfterFunc(c.thresholds.AutoExpandDelay, func() { c.fireDwell(gen, id) })
}

func (c *Controller) stopDwellLocked() {
	if c.dwell != nil {
		c.dwell.Stop()
		c.dwell = nil
	}
	c.dwellID = ""
}

func (c *Controller) fireDwell(gen uint64, id string) {
	c.mu.Lock()
	if c.gen != gen || c.state != Dragging || c.dwellID != id {
		c.mu.Unlock()
		return
	}
	c.dwell = nil
	c.mu.Unlock()

	c.logger.Debug("auto-expand", slog.String("note", id))
	c.expander.Expand(id)
}
