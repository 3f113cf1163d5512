package docs

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of editor writes into one reload.
const DefaultDebounce = 200 * time.Millisecond

// ChangeCallback receives the slugs reloaded by the watcher.
type ChangeCallback func(slugs []string)

// Watch watches the directories holding the configured files (or the root in discover mode) and reloads
// them after changes settle for debounce. It blocks until ctx is cancelled.
func (s *Service) Watch(ctx context.Context, debounce time.Duration, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := s.store.Root()
	tracked := make(map[string]string, len(s.files)) // abs path -> configured filename
	dirs := make(map[string]struct{})
	for _, f := range s.files {
		abs := filepath.Join(root, filepath.FromSlash(f))
		tracked[abs] = f
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	if s.discover {
		dirs[root] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			s.logger.Warn("docs watcher: add dir failed", slog.String("dir", d), slog.String("error", err.Error()))
		}
	}

	if _, err := s.Refresh(); err != nil {
		return err
	}
	s.logger.Info("docs watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]struct{})

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("docs watcher: stopped")
			return nil

		case <-timerCh:
			var changed []string
			for f := range pending {
				ok, err := s.reload(f)
				if err != nil {
					s.logger.Warn("docs watcher: reload failed", slog.String("file", f), slog.String("error", err.Error()))
					continue
				}
				if ok {
					changed = append(changed, Slug(f))
				}
			}
			clear(pending)
			if len(changed) > 0 {
				s.logger.Debug("docs watcher: reloaded", slog.Any("docs", changed))
				if cb != nil {
					cb(changed)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			f, ok := s.watchedFile(root, tracked, ev.Name)
			if !ok || ev.Op == fsnotify.Chmod {
				continue
			}
			pending[f] = struct{}{}
			schedule()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("docs watcher: error", slog.String("error", err.Error()))
		}
	}
}

// watchedFile maps an event path to the doc filename it concerns.
func (s *Service) watchedFile(root string, tracked map[string]string, name string) (string, bool) {
	name = filepath.Clean(name)
	if f, ok := tracked[name]; ok {
		return f, true
	}
	if s.discover && filepath.Dir(name) == root && isTopLevelDoc(filepath.Base(name)) {
		return filepath.Base(name), true
	}
	return "", false
}
