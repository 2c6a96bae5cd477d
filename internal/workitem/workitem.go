package workitem

import (
	"fmt"
	"iter"
)

// Mode is the shape of a query result.
type Mode string

const (
	ModeFlat   Mode = "flat"
	ModeTree   Mode = "tree"
	ModeOneHop Mode = "onehop"
)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFlat, ModeTree, ModeOneHop:
		return Mode(s), nil
	case "":
		return ModeFlat, nil
	}
	return "", fmt.Errorf("unknown query mode: %q", s)
}

// Field is a single named value on a work item.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WorkItem is a typed record with a stable id and ordered field values.
type WorkItem struct {
	ID     int     `json:"id"`
	Type   string  `json:"type"`
	Fields []Field `json:"fields"`
}

// Field returns the value of the named field.
func (w WorkItem) Field(name string) (string, bool) {
	for _, f := range w.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Node is a work item placed in a tree. Level 0 is a root.
type Node struct {
	Item     WorkItem
	Level    int
	Children []*Node
}

// Tree is an ordered forest of work item nodes produced by one query run.
type Tree struct {
	Mode  Mode
	Roots []*Node
}

// NewFlat builds a flat tree with every item at level 0, in the given order.
func NewFlat(items []WorkItem) *Tree {
	t := &Tree{Mode: ModeFlat}
	for _, it := range items {
		t.Roots = append(t.Roots, &Node{Item: it})
	}
	return t
}

// IsFlat reports whether the tree came from a flat query.
func (t *Tree) IsFlat() bool {
	return t.Mode == ModeFlat || t.Mode == ""
}

// All yields nodes depth-first: parents before children, siblings in
// insertion order. The sequence can be ranged over any number of times.
func (t *Tree) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		var visit func(n *Node) bool
		visit = func(n *Node) bool {
			if !yield(n) {
				return false
			}
			for _, c := range n.Children {
				if !visit(c) {
					return false
				}
			}
			return true
		}
		for _, r := range t.Roots {
			if !visit(r) {
				return
			}
		}
	}
}

// IDs returns the ids of all nodes in depth-first order.
func (t *Tree) IDs() []int {
	var ids []int
	for n := range t.All() {
		ids = append(ids, n.Item.ID)
	}
	return ids
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	n := 0
	for range t.All() {
		n++
	}
	return n
}
