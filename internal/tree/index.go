package tree

import "github.com/starford/folio/internal/models"

// Index memoises lookups over one built forest: node by id, effective parent, sibling list and depth.
// It is immutable once built and safe for concurrent readers.
type Index struct {
	roots    []*Node
	nodes    map[string]*Node
	parent   map[string]string
	siblings map[string][]*Node
	depth    map[string]int
	order    []*Node
}

// NewIndex indexes the forest rooted at roots.
func NewIndex(roots []*Node) *Index {
	ix := &Index{
		roots:    roots,
		nodes:    make(map[string]*Node),
		parent:   make(map[string]string),
		siblings: make(map[string][]*Node),
		depth:    make(map[string]int),
	}
	var walk func(list []*Node, parent string, depth int)
	walk = func(list []*Node, parent string, depth int) {
		for _, n := range list {
			ix.nodes[n.ID] = n
			ix.parent[n.ID] = parent
			ix.siblings[n.ID] = list
			ix.depth[n.ID] = depth
			ix.order = append(ix.order, n)
			walk(n.Children, n.ID, depth+1)
		}
	}
	walk(roots, "", 0)
	return ix
}

// FromNotes builds and indexes notes in one step.
func FromNotes(notes []models.Note) *Index {
	return NewIndex(Build(notes))
}

// Roots returns the root list.
func (ix *Index) Roots() []*Node { return ix.roots }

// Len is the number of indexed nodes.
func (ix *Index) Len() int { return len(ix.order) }

// Node looks up a node by id.
func (ix *Index) Node(id string) (*Node, bool) {
	n, ok := ix.nodes[id]
	return n, ok
}

// ParentID returns the effective parent of id in the built tree. ok is false for roots and unknown ids.
func (ix *Index) ParentID(id string) (string, bool) {
	p, ok := ix.parent[id]
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// Siblings returns the list id lives in, including id itself.
func (ix *Index) Siblings(id string) []*Node {
	return ix.siblings[id]
}

// Depth returns the nesting level of id, 0 for roots.
func (ix *Index) Depth(id string) int { return ix.depth[id] }

// Ancestors returns the effective ancestors of id, nearest first.
func (ix *Index) Ancestors(id string) []string {
	var out []string
	for p, ok := ix.ParentID(id); ok; p, ok = ix.ParentID(p) {
		out = append(out, p)
	}
	return out
}

// Descendants returns every id below id in preorder.
func (ix *Index) Descendants(id string) []string {
	n, ok := ix.nodes[id]
	if !ok {
		return nil
	}
	var out []string
	var walk func(list []*Node)
	walk = func(list []*Node) {
		for _, c := range list {
			out = append(out, c.ID)
			walk(c.Children)
		}
	}
	walk(n.Children)
	return out
}

// InvalidTargets is the set of ids that cannot receive id: id itself and all of its descendants.
func (ix *Index) InvalidTargets(id string) map[string]struct{} {
	set := map[string]struct{}{id: {}}
	for _, d := range ix.Descendants(id) {
		set[d] = struct{}{}
	}
	return set
}

// IsDescendant reports whether candidate lies strictly below ancestor.
func (ix *Index) IsDescendant(candidate, ancestor string) bool {
	for p, ok := ix.ParentID(candidate); ok; p, ok = ix.ParentID(p) {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Walk visits nodes in preorder. Returning false from fn skips that node's children.
func (ix *Index) Walk(fn func(n *Node, depth int) bool) {
	var walk func(list []*Node, depth int)
	walk = func(list []*Node, depth int) {
		for _, n := range list {
			if fn(n, depth) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(ix.roots, 0)
}
