// Package sidebar implements the page-tree view contract: visible rows, expand/collapse, context menus,
// inline rename and create, confirmed delete and drag handles.
package sidebar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/folio/internal/dragsession"
	"github.com/starford/folio/internal/gesture"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/reorder"
	"github.com/starford/folio/internal/tree"
)

// DefaultTitle is the initial title of an inline-created page.
const DefaultTitle = "Untitled"

// HomePath is where the view goes after the open note is deleted.
const HomePath = "/"

// NotePath returns the route of a note.
func NotePath(id string) string { return "/notes/" + id }

// ErrNoEdit is returned when an edit action arrives without an edit in progress.
var ErrNoEdit = errors.New("sidebar: no edit in progress")

// NotesAPI is the subset of the note store the sidebar talks to.
type NotesAPI interface {
	ListNotes(ctx context.Context) ([]models.Note, error)
	CreateNote(ctx context.Context, in models.NoteCreate) (*models.Note, error)
	UpdateNote(ctx context.Context, id string, u models.NoteUpdate) (*models.Note, error)
	ReorderNote(ctx context.Context, id string, r models.NoteReorder) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// Navigator changes the current view.
type Navigator interface {
	Navigate(path string)
}

// Prompter asks a blocking yes/no question.
type Prompter interface {
	Confirm(message string) bool
}

// EditKind distinguishes the two inline edit affordances.
type EditKind int

const (
	EditRename EditKind = iota + 1
	EditCreate
)

// Edit is an inline title edit in progress.
type Edit struct {
	Kind     EditKind
	NoteID   string
	ParentID *string
	Text     string
}

// Row is one visible line of the tree.
type Row struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Depth        int    `json:"depth"`
	HasChildren  bool   `json:"has_children"`
	Expanded     bool   `json:"expanded"`
	Active       bool   `json:"active"`
	Editing      bool   `json:"editing"`
	MenuOpen     bool   `json:"menu_open"`
	Dragging     bool   `json:"dragging"`
	InsertBefore bool   `json:"insert_before"`
	InsertAfter  bool   `json:"insert_after"`
	Nest         bool   `json:"nest"`
	Invalid      bool   `json:"invalid"`
}

// Sidebar holds the view state around one tree snapshot. Network calls never hold the internal lock, so
// overlapping actions may race; whichever refresh lands last is what the view shows.
type Sidebar struct {
	api      NotesAPI
	nav      Navigator
	prompt   Prompter
	logger   *slog.Logger
	expanded *ExpandedState
	drag     *dragsession.Controller

	mu        sync.Mutex
	ix        *tree.Index
	current   string
	menu      string
	edit      *Edit
	container gesture.Rect
}

// Option configures a Sidebar.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	thresholds gesture.Thresholds
	dragOpts   []dragsession.Option
	expanded   *ExpandedState
}

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

func WithThresholds(th gesture.Thresholds) Option { return func(c *config) { c.thresholds = th } }

// WithDragOptions passes options through to the drag controller.
func WithDragOptions(opts ...dragsession.Option) Option {
	return func(c *config) { c.dragOpts = append(c.dragOpts, opts...) }
}

// WithExpanded seeds the expanded set.
func WithExpanded(s *ExpandedState) Option { return func(c *config) { c.expanded = s } }

// New returns a sidebar with an empty snapshot. Call Refresh to load notes.
func New(api NotesAPI, nav Navigator, prompt Prompter, opts ...Option) *Sidebar {
	cfg := config{logger: slog.Default(), thresholds: gesture.DefaultThresholds()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.expanded == nil {
		cfg.expanded = NewExpandedState()
	}
	dragOpts := append([]dragsession.Option{dragsession.WithLogger(cfg.logger)}, cfg.dragOpts...)
	return &Sidebar{
		api:      api,
		nav:      nav,
		prompt:   prompt,
		logger:   cfg.logger,
		expanded: cfg.expanded,
		drag:     dragsession.New(cfg.thresholds, reorder.NewCommitter(api, cfg.logger), cfg.expanded, dragOpts...),
		ix:       tree.NewIndex(nil),
	}
}

// Expanded exposes the expanded set.
func (s *Sidebar) Expanded() *ExpandedState { return s.expanded }

// Drag exposes the drag controller.
func (s *Sidebar) Drag() *dragsession.Controller { return s.drag }

// Snapshot returns the current tree index.
func (s *Sidebar) Snapshot() *tree.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ix
}

// SetContainer records the bounding box of the tree container.
func (s *Sidebar) SetContainer(r gesture.Rect) {
	s.mu.Lock()
	s.container = r
	s.mu.Unlock()
}

// Refresh fetches the flat note list and rebuilds the tree. The open note's ancestors are revealed.
func (s *Sidebar) Refresh(ctx context.Context) error {
	notes, err := s.api.ListNotes(ctx)
	if err != nil {
		s.logger.Error("refresh notes", slog.String("error", err.Error()))
		return fmt.Errorf("sidebar: refresh: %w", err)
	}
	ix := tree.FromNotes(notes)

	s.mu.Lock()
	s.ix = ix
	current := s.current
	s.mu.Unlock()

	if current != "" {
		s.expanded.Reveal(ix, current)
	}
	return nil
}

// Open marks id as the note being viewed and reveals it.
func (s *Sidebar) Open(id string) {
	s.mu.Lock()
	s.current = id
	ix := s.ix
	s.mu.Unlock()
	if id != "" {
		s.expanded.Reveal(ix, id)
	}
}

// Current returns the id of the note being viewed.
func (s *Sidebar) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Click is the row's primary action: navigate to the note.
func (s *Sidebar) Click(id string) {
	s.CloseMenu()
	s.Open(id)
	s.nav.Navigate(NotePath(id))
}

// Toggle flips the expanded state of id.
func (s *Sidebar) Toggle(id string) bool {
	return s.expanded.Toggle(id)
}

// Rows flattens the visible part of the tree.
func (s *Sidebar) Rows() []Row {
	ind := s.drag.Indicator()

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []Row
	s.ix.Walk(func(n *tree.Node, depth int) bool {
		expanded := s.expanded.IsExpanded(n.ID)
		r := Row{
			ID:           n.ID,
			Title:        n.Title,
			Depth:        depth,
			HasChildren:  n.HasChildren(),
			Expanded:     expanded,
			Active:       n.ID == s.current,
			MenuOpen:     n.ID == s.menu,
			Dragging:     n.ID == ind.Dragged,
			InsertBefore: n.ID == ind.InsertBefore,
			InsertAfter:  n.ID == ind.InsertAfter,
			Nest:         n.ID == ind.Nest,
			Invalid:      n.ID == ind.Invalid,
		}
		if s.edit != nil && s.edit.Kind == EditRename && s.edit.NoteID == n.ID {
			r.Editing = true
		}
		rows = append(rows, r)
		return expanded
	})
	return rows
}

// OpenMenu opens the context menu of id, closing any other one.
func (s *Sidebar) OpenMenu(id string) {
	s.mu.Lock()
	s.menu = id
	s.mu.Unlock()
}

// CloseMenu closes the open context menu, if any.
func (s *Sidebar) CloseMenu() {
	s.mu.Lock()
	s.menu = ""
	s.mu.Unlock()
}

// OutsideClick closes the context menu.
func (s *Sidebar) OutsideClick() { s.CloseMenu() }

// MenuOpen returns the id whose menu is open, or "".
func (s *Sidebar) MenuOpen() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menu
}

// Editing returns a copy of the edit in progress.
func (s *Sidebar) Editing() (Edit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edit == nil {
		return Edit{}, false
	}
	return *s.edit, true
}

// BeginRename starts an inline rename of id, prefilled with its current title.
func (s *Sidebar) BeginRename(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.ix.Node(id)
	if !ok {
		return fmt.Errorf("sidebar: rename %s: not in tree", id)
	}
	s.menu = ""
	s.edit = &Edit{Kind: EditRename, NoteID: id, Text: n.Title}
	return nil
}

// BeginCreate starts an inline create under parentID (nil for a root page) and expands the parent.
func (s *Sidebar) BeginCreate(parentID *string) {
	s.mu.Lock()
	s.menu = ""
	s.edit = &Edit{Kind: EditCreate, ParentID: parentID, Text: DefaultTitle}
	s.mu.Unlock()
	if parentID != nil {
		s.expanded.Expand(*parentID)
	}
}

// SetEditText replaces the text of the edit in progress.
func (s *Sidebar) SetEditText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edit != nil {
		s.edit.Text = text
	}
}

// CancelEdit abandons the edit in progress (Escape).
func (s *Sidebar) CancelEdit() {
	s.mu.Lock()
	s.edit = nil
	s.mu.Unlock()
}

// CommitEdit saves the edit in progress (Enter or blur). A title that is blank after trimming cancels the
// edit without a network call. The affordance is closed whether or not the call succeeds.
func (s *Sidebar) CommitEdit(ctx context.Context) error {
	s.mu.Lock()
	edit := s.edit
	s.edit = nil
	s.mu.Unlock()

	if edit == nil {
		return ErrNoEdit
	}
	title := strings.TrimSpace(edit.Text)
	if title == "" {
		return nil
	}

	switch edit.Kind {
	case EditRename:
		if _, err := s.api.UpdateNote(ctx, edit.NoteID, models.NoteUpdate{Title: &title}); err != nil {
			s.logger.Error("rename note", slog.String("note", edit.NoteID), slog.String("error", err.Error()))
			return fmt.Errorf("sidebar: rename: %w", err)
		}
		return s.Refresh(ctx)
	case EditCreate:
		n, err := s.api.CreateNote(ctx, models.NoteCreate{Title: title, ParentID: edit.ParentID})
		if err != nil {
			s.logger.Error("create note", slog.String("error", err.Error()))
			return fmt.Errorf("sidebar: create: %w", err)
		}
		s.Open(n.ID)
		s.nav.Navigate(NotePath(n.ID))
		return s.Refresh(ctx)
	default:
		return ErrNoEdit
	}
}

// DeletePrompt is the confirmation text for deleting n.
func DeletePrompt(n *tree.Node) string {
	suffix := ""
	if n.HasChildren() {
		suffix = " and all subpages"
	}
	return fmt.Sprintf("Delete \"%s\"%s?", n.Title, suffix)
}

// Delete asks for confirmation and deletes id with its subtree. Declining is a no-op. Deleting the note
// being viewed, or one of its ancestors, navigates home.
func (s *Sidebar) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	n, ok := s.ix.Node(id)
	ix := s.ix
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("sidebar: delete %s: not in tree", id)
	}

	if !s.prompt.Confirm(DeletePrompt(n)) {
		return nil
	}

	if err := s.api.DeleteNote(ctx, id); err != nil {
		s.logger.Error("delete note", slog.String("note", id), slog.String("error", err.Error()))
		return fmt.Errorf("sidebar: delete: %w", err)
	}

	s.mu.Lock()
	s.menu = ""
	current := s.current
	viewing := current == id || (current != "" && ix.IsDescendant(current, id))
	if viewing {
		s.current = ""
	}
	s.mu.Unlock()

	if viewing {
		s.nav.Navigate(HomePath)
	}
	return s.Refresh(ctx)
}

// HandlePress records a press on the drag handle of id. Clicking the row itself goes through Click.
func (s *Sidebar) HandlePress(id string, p gesture.Point) error {
	s.mu.Lock()
	ix, container := s.ix, s.container
	s.menu = ""
	s.mu.Unlock()
	return s.drag.Press(ix, id, p, container)
}

// HandleMove forwards pointer movement to the drag controller.
func (s *Sidebar) HandleMove(p gesture.Point, hover *dragsession.Hover) dragsession.Indicator {
	return s.drag.Move(p, hover)
}

// HandleRelease ends the drag and refreshes the snapshot after a commit attempt.
func (s *Sidebar) HandleRelease(ctx context.Context) (dragsession.Outcome, error) {
	out, err := s.drag.End(ctx)
	if out.State != dragsession.Committing {
		return out, err
	}
	if rerr := s.Refresh(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return out, err
}

// HandleCancel aborts the drag.
func (s *Sidebar) HandleCancel() { s.drag.Cancel() }
