package workitem

import (
	"context"
	"fmt"
)

// RootID is the virtual source id of top-level links.
const RootID = 0

const (
	MsgNotTree       = "not a well-formed tree"
	MsgNotDirectLink = "not a well-formed direct link structure"
)

// StructureError reports a link set that does not have the shape its query
// mode promises. It aborts the whole cycle.
type StructureError struct {
	Msg string
	ID  int // offending work item id, 0 if not attributable
}

func (e *StructureError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s (work item %d)", e.Msg, e.ID)
	}
	return e.Msg
}

// Link is one (source, target) edge returned by a link query.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Result is the raw output of a query run.
type Result struct {
	Mode  Mode   `json:"mode"`
	IDs   []int  `json:"ids"`
	Links []Link `json:"links"`
}

// Fetcher loads work item records in bulk. A nil field list means every field.
type Fetcher interface {
	FetchItems(ctx context.Context, ids []int, fields []string) (map[int]WorkItem, error)
}

// Build turns a query result into a leveled tree. Tree and OneHop results are
// validated before anything is fetched; displayFields restricts the bulk fetch
// for those modes, flat results always fetch the full field set.
func Build(ctx context.Context, res Result, fetcher Fetcher, displayFields []string) (*Tree, error) {
	var roots []*Node
	var err error
	fields := displayFields

	switch res.Mode {
	case ModeFlat, "":
		roots = flatShape(res.IDs)
		fields = nil
	case ModeTree:
		roots, err = treeShape(res.Links)
	case ModeOneHop:
		roots, err = oneHopShape(res.Links)
	default:
		return nil, fmt.Errorf("unknown query mode: %q", res.Mode)
	}
	if err != nil {
		return nil, err
	}

	mode := res.Mode
	if mode == "" {
		mode = ModeFlat
	}
	tree := &Tree{Mode: mode, Roots: roots}
	if len(roots) == 0 || fetcher == nil {
		return tree, nil
	}

	items, err := fetcher.FetchItems(ctx, tree.IDs(), fields)
	if err != nil {
		return nil, fmt.Errorf("fetch work items: %w", err)
	}
	for n := range tree.All() {
		if it, ok := items[n.Item.ID]; ok {
			n.Item = it
		}
	}
	return tree, nil
}

func flatShape(ids []int) []*Node {
	seen := make(map[int]bool, len(ids))
	roots := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		roots = append(roots, &Node{Item: WorkItem{ID: id}})
	}
	return roots
}

// treeShape requires every target to have exactly one incoming link and every
// node to be reachable from a root link.
func treeShape(links []Link) ([]*Node, error) {
	incoming := make(map[int]int, len(links))
	children := make(map[int][]int)
	var rootIDs []int

	for _, l := range links {
		if l.Target == RootID {
			return nil, &StructureError{Msg: MsgNotTree}
		}
		incoming[l.Target]++
		if incoming[l.Target] > 1 {
			return nil, &StructureError{Msg: MsgNotTree, ID: l.Target}
		}
		if l.Source == RootID {
			rootIDs = append(rootIDs, l.Target)
		} else {
			children[l.Source] = append(children[l.Source], l.Target)
		}
	}

	visited := make(map[int]bool, len(incoming))
	roots := expand(rootIDs, children, 0, visited)
	if len(visited) != len(incoming) {
		for id := range incoming {
			if !visited[id] {
				return nil, &StructureError{Msg: MsgNotTree, ID: id}
			}
		}
	}
	return roots, nil
}

// oneHopShape allows exactly one level below the roots. A child listed under
// several roots is kept under the first; a link pointing at another root is
// dropped so the root keeps its own place.
func oneHopShape(links []Link) ([]*Node, error) {
	isRoot := make(map[int]bool)
	var rootIDs []int
	for _, l := range links {
		if l.Source == RootID && !isRoot[l.Target] {
			isRoot[l.Target] = true
			rootIDs = append(rootIDs, l.Target)
		}
	}
	if len(rootIDs) == 0 {
		return nil, &StructureError{Msg: MsgNotDirectLink}
	}

	children := make(map[int][]int)
	for _, l := range links {
		if l.Source == RootID {
			continue
		}
		if !isRoot[l.Source] {
			return nil, &StructureError{Msg: MsgNotDirectLink, ID: l.Source}
		}
		if isRoot[l.Target] {
			continue
		}
		children[l.Source] = append(children[l.Source], l.Target)
	}

	visited := make(map[int]bool)
	return expand(rootIDs, children, 0, visited), nil
}

func expand(ids []int, children map[int][]int, level int, visited map[int]bool) []*Node {
	var nodes []*Node
	for _, id := range ids {
		if visited[id] {
			continue
		}
		visited[id] = true
		n := &Node{Item: WorkItem{ID: id}, Level: level}
		n.Children = expand(children[id], children, level+1, visited)
		nodes = append(nodes, n)
	}
	return nodes
}
