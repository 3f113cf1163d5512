// Package autosave debounces title and content edits of one note into single update calls.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/folio/internal/clock"
	"github.com/starford/folio/internal/models"
)

// DefaultDelay is the quiet period after the last edit before a save is sent.
const DefaultDelay = 800 * time.Millisecond

// FallbackTitle is saved when the title is blank.
const FallbackTitle = "Untitled"

// Saver persists a partial note update.
type Saver interface {
	UpdateNote(ctx context.Context, id string, u models.NoteUpdate) (*models.Note, error)
}

// Status is the save indicator shown next to the editor.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSaving
	StatusSaved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

type draft struct {
	title   string
	content string
}

// Session is the edit session of one note. At most one save timer is pending; each Edit resets it.
type Session struct {
	api    Saver
	noteID string
	delay  time.Duration
	clock  clock.Clock
	logger *slog.Logger
	ctx    context.Context

	mu        sync.Mutex
	gen       uint64
	timer     clock.Timer
	pending   *draft
	status    Status
	lastSaved time.Time
	closed    bool
}

// Option configures a Session.
type Option func(*Session)

func WithDelay(d time.Duration) Option { return func(s *Session) { s.delay = d } }

func WithClock(c clock.Clock) Option { return func(s *Session) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithContext sets the context used by timer-driven saves.
func WithContext(ctx context.Context) Option { return func(s *Session) { s.ctx = ctx } }

// NewSession starts an edit session for noteID.
func NewSession(api Saver, noteID string, opts ...Option) *Session {
	s := &Session{
		api:    api,
		noteID: noteID,
		delay:  DefaultDelay,
		clock:  clock.Real{},
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Edit records the latest title and content and restarts the quiet period.
func (s *Session) Edit(title, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = &draft{title: title, content: content}
	s.status = StatusPending
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	d := s.takeLocked()
	s.mu.Unlock()

	if d != nil {
		_ = s.save(s.ctx, *d)
	}
}

// Flush saves any pending edit immediately.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	d := s.takeLocked()
	s.mu.Unlock()

	if d == nil {
		return nil
	}
	return s.save(ctx, *d)
}

// Close stops the timer and drops any pending edit. Call Flush first to keep it.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.pending = nil
	s.closed = true
}

// Status returns the save indicator and the time of the last successful save.
func (s *Session) Status() (Status, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastSaved
}

func (s *Session) takeLocked() *draft {
	d := s.pending
	s.pending = nil
	if d != nil {
		s.status = StatusSaving
	}
	return d
}

func (s *Session) save(ctx context.Context, d draft) error {
	title := strings.TrimSpace(d.title)
	if title == "" {
		title = FallbackTitle
	}
	_, err := s.api.UpdateNote(ctx, s.noteID, models.NoteUpdate{
		Title:   &title,
		Content: models.Value(d.content),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Error("autosave failed", slog.String("note", s.noteID), slog.String("error", err.Error()))
		if s.pending == nil {
			s.status = StatusFailed
		}
		return fmt.Errorf("autosave: %w", err)
	}
	if s.pending == nil {
		s.status = StatusSaved
	}
	s.lastSaved = time.Now()
	return nil
}
