package layout

import (
	"fmt"
	"strconv"

	"github.com/dgallion1/docsync/internal/document"
)

// Block is a named building block: the template rendered for one work item.
type Block struct {
	Name     string
	Fragment *document.Fragment
}

// Layout is the set of building blocks usable for a query's results.
type Layout struct {
	Name    string
	Default string

	blocks map[string]*Block
	order  []string
	fields []string
}

// NotFoundError reports a missing layout or block template.
type NotFoundError struct {
	Kind string // "layout" or "block"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// New creates a layout. The default block must be one of blocks.
func New(name string, blocks []*Block, defaultBlock string) (*Layout, error) {
	l := &Layout{
		Name:    name,
		Default: defaultBlock,
		blocks:  make(map[string]*Block, len(blocks)),
	}
	seen := make(map[string]bool)
	for _, b := range blocks {
		if b == nil || b.Name == "" {
			return nil, fmt.Errorf("layout %q: block without a name", name)
		}
		if _, dup := l.blocks[b.Name]; dup {
			return nil, fmt.Errorf("layout %q: duplicate block %q", name, b.Name)
		}
		l.blocks[b.Name] = b
		l.order = append(l.order, b.Name)
		if b.Fragment == nil {
			continue
		}
		for _, f := range b.Fragment.Fields() {
			if !seen[f] {
				seen[f] = true
				l.fields = append(l.fields, f)
			}
		}
	}
	if _, ok := l.blocks[defaultBlock]; !ok {
		return nil, fmt.Errorf("layout %q: default block %q is not defined", name, defaultBlock)
	}
	return l, nil
}

// Empty returns a layout with no blocks and no fields. It stands in for a
// layout whose definition could not be loaded.
func Empty(name string) *Layout {
	return &Layout{Name: name, blocks: map[string]*Block{}}
}

// IsEmpty reports whether the layout has no blocks.
func (l *Layout) IsEmpty() bool {
	return l == nil || len(l.blocks) == 0
}

// Block looks up a block by name.
func (l *Layout) Block(name string) (*Block, bool) {
	if l == nil {
		return nil, false
	}
	b, ok := l.blocks[name]
	return b, ok
}

// Blocks lists block names in definition order.
func (l *Layout) Blocks() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.order...)
}

// Fields lists every field referenced by the layout's blocks.
func (l *Layout) Fields() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.fields...)
}

// TypeLevelName is the block name for a work item type at a tree level.
func TypeLevelName(itemType string, level int) string {
	return itemType + "-" + strconv.Itoa(level)
}

// LevelName is the block name for any work item at a tree level.
func LevelName(level int) string {
	return "Level-" + strconv.Itoa(level)
}

// Choose picks the block for a node: (type, level), then type, then level,
// then the default. It returns false only for an empty layout.
func (l *Layout) Choose(itemType string, level int) (*Block, bool) {
	if l.IsEmpty() {
		return nil, false
	}
	candidates := []string{
		TypeLevelName(itemType, level),
		itemType,
		LevelName(level),
		l.Default,
	}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if b, ok := l.blocks[name]; ok {
			return b, true
		}
	}
	return nil, false
}
