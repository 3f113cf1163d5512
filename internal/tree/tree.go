// Package tree turns a flat parent-pointer list of notes into a cycle-safe forest.
package tree

import (
	"sort"

	"github.com/starford/folio/internal/models"
)

// Node is a note together with its ordered children. Nodes are rebuilt on every refresh and never mutated
// incrementally.
type Node struct {
	models.Note
	Children []*Node `json:"children"`
}

// HasChildren reports whether the node has at least one child.
func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

// Build returns the root nodes of the forest described by notes.
//
// A note is attached under its declared parent only when that parent is present in notes, is not the note
// itself, and walking up the declared-parent chain from the parent neither reaches the note nor revisits an id.
// Every other note becomes a root; the stored parent pointer is left untouched. Siblings are stably sorted by
// position. Duplicate ids after the first occurrence are ignored.
func Build(notes []models.Note) []*Node {
	nodes := make(map[string]*Node, len(notes))
	parentOf := make(map[string]string, len(notes))
	ordered := make([]*Node, 0, len(notes))

	for _, n := range notes {
		if _, dup := nodes[n.ID]; dup {
			continue
		}
		node := &Node{Note: n, Children: []*Node{}}
		nodes[n.ID] = node
		parentOf[n.ID] = n.Parent()
		ordered = append(ordered, node)
	}

	roots := []*Node{}
	for _, node := range ordered {
		pid := node.Parent()
		parent, ok := nodes[pid]
		if pid == "" || !ok || createsCycle(node.ID, pid, parentOf) {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortSiblings(roots)
	for _, node := range ordered {
		sortSiblings(node.Children)
	}
	return roots
}

// createsCycle walks the declared-parent chain starting at parentID and reports whether it reaches id or loops.
func createsCycle(id, parentID string, parentOf map[string]string) bool {
	if id == parentID {
		return true
	}
	seen := make(map[string]struct{})
	for cur := parentID; cur != ""; {
		if cur == id {
			return true
		}
		if _, ok := seen[cur]; ok {
			return true
		}
		seen[cur] = struct{}{}
		next, ok := parentOf[cur]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

func sortSiblings(list []*Node) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Position < list[j].Position })
}
