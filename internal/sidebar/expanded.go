package sidebar

import (
	"sort"
	"sync"

	"github.com/starford/folio/internal/tree"
)

// ExpandedState is the set of expanded node ids. One instance lives as long as the sidebar that owns it.
type ExpandedState struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewExpandedState returns a state with ids expanded.
func NewExpandedState(ids ...string) *ExpandedState {
	s := &ExpandedState{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *ExpandedState) IsExpanded(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *ExpandedState) Expand(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *ExpandedState) Collapse(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Toggle flips id and returns the new expanded value.
func (s *ExpandedState) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Reveal expands every ancestor of id so that id becomes visible.
func (s *ExpandedState) Reveal(ix *tree.Index, id string) {
	ancestors := ix.Ancestors(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range ancestors {
		s.ids[a] = struct{}{}
	}
}

// IDs returns the expanded ids, sorted.
func (s *ExpandedState) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
