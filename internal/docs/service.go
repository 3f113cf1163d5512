// Package docs serves a read-only mirror of a set of Markdown documents: navigation tree, single
// documents with outline and status badges, line search and an aggregated status summary.
package docs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/storage"
)

// DefaultFiles is the documentation set, in display order.
var DefaultFiles = []string{
	"README.md",
	"VERIFICATION_REPORT.md",
	"HIERARCHY_LOGIC.md",
	"BACKEND_HIERARCHY_AUDIT.md",
	"DND_INTERACTION.md",
	"PLANS.md",
	"QA_REPORT.md",
	"AGENTS.md",
}

const (
	// DefaultSearchLimit caps search results.
	DefaultSearchLimit = 20
	// MinQueryLength is the shortest accepted search query.
	MinQueryLength = 2
)

// TreeNode is one entry of the documentation navigation.
type TreeNode struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Filename   string     `json:"filename"`
	Children   []TreeNode `json:"children"`
	ModifiedAt time.Time  `json:"modified_at"`
}

// Doc is a full document.
type Doc struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Filename   string           `json:"filename"`
	Content    string           `json:"content"`
	Badges     []Badge          `json:"badges"`
	Headings   []parser.Heading `json:"headings"`
	ModifiedAt time.Time        `json:"modified_at"`
}

// Status aggregates badges across all documents.
type Status struct {
	Badges       []Badge    `json:"badges"`
	LastModified *time.Time `json:"last_modified"`
	FilesChecked int        `json:"files_checked"`
}

// SearchResult is one matching line.
type SearchResult struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Match    string `json:"match"`
	Context  string `json:"context"`
}

// entry is replaced, never mutated, once stored.
type entry struct {
	doc      Doc
	checksum string
	size     int64
}

// Service keeps parsed documents in memory and reloads a file when its size or mtime changes.
type Service struct {
	store    storage.Provider
	files    []string
	discover bool
	logger   *slog.Logger

	mu      sync.RWMutex
	order   []string          // files in display order, as of the last refresh
	entries map[string]*entry // by filename

	refreshGroup singleflight.Group
}

// NewService creates a docs service over store. An empty files list serves every top-level Markdown file
// found under the root, in name order, rediscovered on each refresh.
func NewService(store storage.Provider, files []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		files:    files,
		discover: len(files) == 0,
		order:    files,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// currentFiles returns the configured files, or the Markdown files at the top of the root in discover mode.
func (s *Service) currentFiles() []string {
	if !s.discover {
		return s.files
	}
	infos, err := s.store.List("")
	if err != nil {
		s.logger.Warn("docs: list failed", slog.String("error", err.Error()))
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.order
	}
	var out []string
	for _, fi := range infos {
		if isTopLevelDoc(fi.Path) {
			out = append(out, fi.Path)
		}
	}
	sort.Strings(out)
	return out
}

func isTopLevelDoc(name string) bool {
	return !strings.Contains(name, "/") && strings.EqualFold(path.Ext(name), ".md")
}

// Slug converts a filename to its URL id: lower case, without .md, underscores as dashes.
func Slug(filename string) string {
	return strings.ReplaceAll(strings.ToLower(strings.ReplaceAll(filename, ".md", "")), "_", "-")
}

var titleCaser = cases.Title(language.English)

// stemTitle turns "QA_REPORT.md" into "Qa Report".
func stemTitle(filename string) string {
	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return titleCaser.String(stem)
}

// Refresh stats every configured file and reparses those that changed. Concurrent callers share one pass.
// It returns the slugs whose content changed.
func (s *Service) Refresh() ([]string, error) {
	v, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		files := s.currentFiles()
		check := append([]string(nil), files...)
		if s.discover {
			// Files that disappeared from the listing still need a reload to be dropped.
			s.mu.RLock()
			for f := range s.entries {
				if !slices.Contains(files, f) {
					check = append(check, f)
				}
			}
			s.mu.RUnlock()
			s.mu.Lock()
			s.order = files
			s.mu.Unlock()
		}

		var changed []string
		for _, f := range check {
			ok, err := s.reload(f)
			if err != nil {
				s.logger.Warn("docs: reload failed", slog.String("file", f), slog.String("error", err.Error()))
				continue
			}
			if ok {
				changed = append(changed, Slug(f))
			}
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// reload refreshes one file and reports whether its content changed. A missing file is dropped.
func (s *Service) reload(filename string) (bool, error) {
	info, err := s.store.Stat(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.Lock()
			_, had := s.entries[filename]
			delete(s.entries, filename)
			s.mu.Unlock()
			return had, nil
		}
		return false, err
	}

	s.mu.RLock()
	cur := s.entries[filename]
	s.mu.RUnlock()
	if cur != nil && cur.size == info.Size && cur.doc.ModifiedAt.Equal(info.ModTime) {
		return false, nil
	}

	data, err := s.store.Read(filename)
	if err != nil {
		return false, err
	}
	if cur != nil && checksum.Equal(data, cur.checksum) {
		next := *cur
		next.doc.ModifiedAt = info.ModTime
		next.size = info.Size
		s.mu.Lock()
		s.entries[filename] = &next
		s.mu.Unlock()
		return false, nil
	}

	e, err := parseEntry(filename, data, info)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.entries[filename] = e
	s.mu.Unlock()
	s.logger.Debug("docs: loaded", slog.String("file", filename))
	return true, nil
}

func parseEntry(filename string, data []byte, info storage.FileInfo) (*entry, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("docs: parse %s: %w", filename, err)
	}
	title := res.Title
	if title == "" {
		title = stemTitle(filename)
	}
	content := string(data)
	return &entry{
		doc: Doc{
			ID:         Slug(filename),
			Title:      title,
			Filename:   filename,
			Content:    content,
			Badges:     nonNil(extractBadges(content, filename)),
			Headings:   nonNil(res.Headings),
			ModifiedAt: info.ModTime,
		},
		checksum: checksum.Sum(data),
		size:     info.Size,
	}, nil
}

// snapshot refreshes and returns the present entries in configured order.
func (s *Service) snapshot() []*entry {
	if _, err := s.Refresh(); err != nil {
		s.logger.Warn("docs: refresh failed", slog.String("error", err.Error()))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.order))
	for _, f := range s.order {
		if e, ok := s.entries[f]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Tree lists the documents that exist on disk.
func (s *Service) Tree() []TreeNode {
	entries := s.snapshot()
	out := make([]TreeNode, 0, len(entries))
	for _, e := range entries {
		out = append(out, TreeNode{
			ID:         e.doc.ID,
			Title:      e.doc.Title,
			Filename:   e.doc.Filename,
			Children:   []TreeNode{},
			ModifiedAt: e.doc.ModifiedAt,
		})
	}
	return out
}

// Doc returns one document by slug.
func (s *Service) Doc(id string) (*Doc, error) {
	for _, e := range s.snapshot() {
		if e.doc.ID == id {
			d := e.doc
			return &d, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// Status aggregates every badge, the newest modification time and the number of files present.
func (s *Service) Status() Status {
	entries := s.snapshot()
	st := Status{Badges: []Badge{}, FilesChecked: len(entries)}
	for _, e := range entries {
		st.Badges = append(st.Badges, e.doc.Badges...)
		if st.LastModified == nil || e.doc.ModifiedAt.After(*st.LastModified) {
			t := e.doc.ModifiedAt
			st.LastModified = &t
		}
	}
	return st
}

// Search does a case-insensitive substring match per line, returning the line with one line of context on
// either side. limit <= 0 uses DefaultSearchLimit.
func (s *Service) Search(query string, limit int) ([]SearchResult, error) {
	if len([]rune(query)) < MinQueryLength {
		return nil, fmt.Errorf("%w: query must be at least %d characters", apperr.ErrValidation, MinQueryLength)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := strings.ToLower(query)

	out := []SearchResult{}
	for _, e := range s.snapshot() {
		lines := strings.Split(e.doc.Content, "\n")
		for i, line := range lines {
			if !strings.Contains(strings.ToLower(line), q) {
				continue
			}
			start, end := max(0, i-1), min(len(lines), i+2)
			out = append(out, SearchResult{
				DocID:    e.doc.ID,
				Filename: e.doc.Filename,
				Line:     i + 1,
				Match:    strings.TrimSpace(line),
				Context:  strings.Join(lines[start:end], "\n"),
			})
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
