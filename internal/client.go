package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/autosave"
	"github.com/starford/folio/internal/docs"
	"github.com/starford/folio/internal/gesture"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/notesclient"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/reorder"
	"github.com/starford/folio/internal/tree"
)

func newClientApp(opts []Option) (*application, *notesclient.Client, error) {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	cc := app.config.Client
	c := notesclient.New(cc.BaseURL,
		notesclient.WithToken(cc.Token),
		notesclient.WithTimeout(cc.Timeout),
		notesclient.WithLogger(app.logger),
	)
	return app, c, nil
}

// PrintTree writes the note hierarchy of a running server as an indented outline.
func PrintTree(ctx context.Context, opts ...Option) error {
	app, c, err := newClientApp(opts)
	if err != nil {
		return err
	}
	notes, err := c.ListNotes(ctx)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		_, err = fmt.Fprintln(app.out, "no notes")
		return err
	}
	_, err = io.WriteString(app.out, mcpserver.Outline(tree.Build(notes)))
	return err
}

// ParseDropTarget reads "before:<id>", "after:<id>", "on:<id>" or "root".
func ParseDropTarget(s string) (gesture.DropTarget, error) {
	if s == "root" {
		return gesture.DropTarget{TargetID: gesture.RootID, Position: gesture.On}, nil
	}
	pos, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return gesture.DropTarget{}, fmt.Errorf("%w: target %q, want before:<id>, after:<id>, on:<id> or root", apperr.ErrValidation, s)
	}
	switch p := gesture.Position(pos); p {
	case gesture.Before, gesture.After, gesture.On:
		return gesture.DropTarget{TargetID: id, Position: p}, nil
	default:
		return gesture.DropTarget{}, fmt.Errorf("%w: unknown position %q", apperr.ErrValidation, pos)
	}
}

// MoveNote drops noteID onto target the same way the sidebar does, using a fresh tree snapshot.
func MoveNote(ctx context.Context, noteID string, target gesture.DropTarget, opts ...Option) error {
	app, c, err := newClientApp(opts)
	if err != nil {
		return err
	}
	notes, err := c.ListNotes(ctx)
	if err != nil {
		return err
	}
	ix := tree.FromNotes(notes)
	if _, ok := ix.Node(noteID); !ok {
		return fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
	}

	m, err := reorder.NewCommitter(c, app.logger).Commit(ctx, noteID, target, ix)
	if err != nil {
		return err
	}
	parent := "root"
	if m.ParentID != nil {
		parent = *m.ParentID
	}
	_, err = fmt.Fprintf(app.out, "moved %s to %s at position %d\n", noteID, parent, m.Position)
	return err
}

// EditFile mirrors a local Markdown file into a note. Every write to the file restarts the autosave
// delay; the pending edit is flushed when ctx ends. A missing file is seeded from the note.
func EditFile(ctx context.Context, noteID, path string, opts ...Option) error {
	app, c, err := newClientApp(opts)
	if err != nil {
		return err
	}
	note, err := c.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	if note == nil {
		return fmt.Errorf("note %s: %w", noteID, apperr.ErrNotFound)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		var body string
		if note.Content != nil {
			body = *note.Content
		}
		if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
			return fmt.Errorf("seed %s: %w", abs, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often replace the file on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	sess := autosave.NewSession(c, noteID,
		autosave.WithDelay(app.config.Editor.AutosaveDelay),
		autosave.WithLogger(app.logger),
		autosave.WithContext(ctx),
	)
	defer sess.Close()

	app.logger.Info("mirroring file", slog.String("note", noteID), slog.String("path", abs))
	fallback := note.Title

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), app.config.Client.Timeout)
			defer cancel()
			return sess.Flush(flushCtx)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				app.logger.Warn("read mirrored file", slog.String("path", abs), slog.String("error", err.Error()))
				continue
			}
			sess.Edit(titleOf(data, fallback), string(data))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func titleOf(data []byte, fallback string) string {
	res, err := parser.Parse(data)
	if err != nil || res.Title == "" {
		return fallback
	}
	return res.Title
}

// DocStatus prints the documentation badges once, or on every poll while follow is set.
func DocStatus(ctx context.Context, follow bool, opts ...Option) error {
	app, c, err := newClientApp(opts)
	if err != nil {
		return err
	}
	if !follow {
		st, err := c.DocsStatus(ctx)
		if err != nil {
			return err
		}
		return printStatus(app.out, *st)
	}
	return c.PollDocStatus(ctx, app.config.Client.StatusPollInterval, func(st docs.Status) {
		if err := printStatus(app.out, st); err != nil {
			app.logger.Warn("print status", slog.String("error", err.Error()))
		}
	})
}

func printStatus(w io.Writer, st docs.Status) error {
	when := "never"
	if st.LastModified != nil {
		when = st.LastModified.Format(time.RFC3339)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d files, last modified %s\n", st.FilesChecked, when)
	for _, badge := range st.Badges {
		fmt.Fprintf(&b, "  [%s] %s: %s (%s:%d)\n", badge.Status, badge.Label, badge.Value, badge.SourceFile, badge.LineNumber)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
