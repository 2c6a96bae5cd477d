// Package reconcile keeps the work item sections of a document in step with
// the latest query results.
//
// A cycle compares, per query, the ids recorded after the previous cycle with
// the ids the query returns now, and edits the document with as few
// insert/delete/move operations as it can. Flat queries tolerate a manual
// reordering of their sections; hierarchical queries are always put back into
// depth-first order.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/dgallion1/docsync/internal/bookmark"
	"github.com/dgallion1/docsync/internal/docdata"
	"github.com/dgallion1/docsync/internal/document"
	"github.com/dgallion1/docsync/internal/layout"
	"github.com/dgallion1/docsync/internal/workitem"
)

// ErrCancelled is wrapped by the error Run returns when its context is done.
var ErrCancelled = errors.New("reconciliation cancelled")

// DefaultBoilerplate separates generated content from the start or end of the
// document.
const DefaultBoilerplate = "The following sections are generated from work items. Edits inside them are overwritten on the next sync."

const boilerplateStyle = "Normal"

// Document is the live document a cycle edits.
type Document interface {
	docdata.Parts

	Len() int
	IsAtStart(pos int) bool
	IsAtEnd(pos int) bool
	TextAt(pos int) string
	DeleteAllContent()
	InsertParagraph(pos int, text, style string) error
	InsertFragment(pos int, name string, frag *document.Fragment) (document.BookmarkRange, error)
	DeleteBookmark(name string) error
	MoveBookmark(name string, pos int) error
	Bookmark(name string) (document.BookmarkRange, bool)
	Bookmarks() []document.BookmarkRange
	Controls() []document.PlacedControl
	ControlsIn(start, end int) []document.PlacedControl
	BindControl(c *document.Control, path string)
	PopulateControl(c *document.Control, text string)
	TagControl(c *document.Control, tag string)
}

// Query is the current result of one query feeding the document.
type Query struct {
	Index  int
	Tree   *workitem.Tree
	Layout *layout.Layout
}

type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpDelete  OpKind = "delete"
	OpMove    OpKind = "move"
	OpRefresh OpKind = "refresh"
	OpClear   OpKind = "clear"
)

// Op is one document mutation made by a cycle.
type Op struct {
	Kind  OpKind `json:"kind"`
	Query int    `json:"query"`
	ID    int    `json:"id"`
}

// Result describes what a cycle did. It is returned even when the cycle
// stops early.
type Result struct {
	Ops       []Op     `json:"ops"`
	Warnings  []string `json:"warnings,omitempty"`
	Snapshots []int    `json:"snapshots"`
	Imported  bool     `json:"imported"`
}

// Count returns the number of operations of one kind.
func (r *Result) Count(kind OpKind) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

type Reconciler struct {
	log         *slog.Logger
	boilerplate string
}

// New creates a reconciler. An empty boilerplate selects DefaultBoilerplate.
func New(log *slog.Logger, boilerplate string) *Reconciler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if boilerplate == "" {
		boilerplate = DefaultBoilerplate
	}
	return &Reconciler{log: log, boilerplate: boilerplate}
}

// Run reconciles doc against queries. The document is left valid when the
// context is cancelled, and the snapshots of queries already finished are
// kept.
func (r *Reconciler) Run(ctx context.Context, doc Document, queries []Query) (*Result, error) {
	c := &cycle{
		r:       r,
		ctx:     ctx,
		doc:     doc,
		store:   docdata.New(doc),
		res:     &Result{},
		warned:  make(map[string]bool),
		queries: normalize(queries),
	}

	err := c.run()
	attrs := []any{
		"imported", c.res.Imported,
		"inserted", c.res.Count(OpInsert),
		"deleted", c.res.Count(OpDelete),
		"moved", c.res.Count(OpMove),
		"refreshed", c.res.Count(OpRefresh),
		"cleared", c.res.Count(OpClear),
		"snapshots", len(c.res.Snapshots),
	}
	switch {
	case errors.Is(err, ErrCancelled):
		r.log.Warn("reconcile cancelled", attrs...)
	case err != nil:
		r.log.Error("reconcile failed", append(attrs, "error", err)...)
	default:
		r.log.Info("reconcile complete", attrs...)
	}
	return c.res, err
}

func normalize(queries []Query) []Query {
	out := make([]Query, len(queries))
	for i, q := range queries {
		if q.Tree == nil {
			q.Tree = &workitem.Tree{Mode: workitem.ModeFlat}
		}
		if q.Layout == nil {
			q.Layout = layout.Empty("")
		}
		out[i] = q
	}
	return out
}

// cycle is the state of one Run.
type cycle struct {
	r       *Reconciler
	ctx     context.Context
	doc     Document
	store   *docdata.Store
	res     *Result
	warned  map[string]bool
	queries []Query
}

type target struct {
	nodes []*workitem.Node
	ids   []int
	index map[int]int
}

func newTarget(t *workitem.Tree) target {
	tg := target{index: make(map[int]int)}
	for n := range t.All() {
		if _, dup := tg.index[n.Item.ID]; dup {
			continue
		}
		tg.index[n.Item.ID] = len(tg.nodes)
		tg.nodes = append(tg.nodes, n)
		tg.ids = append(tg.ids, n.Item.ID)
	}
	return tg
}

func (c *cycle) run() error {
	befores := make([][]int, len(c.queries))
	prior := false
	for i, q := range c.queries {
		ids, ok, err := c.store.QueryItems(q.Index)
		if err != nil {
			return err
		}
		befores[i] = ids
		prior = prior || ok
		if q.Layout.IsEmpty() {
			c.warn(fmt.Sprintf("query %d: layout %q has no building blocks, items are rendered as placeholders", q.Index, q.Layout.Name))
		}
	}

	if err := c.store.SetFieldValues(mergeItems(c.queries)); err != nil {
		return err
	}

	targets := make([]target, len(c.queries))
	for i, q := range c.queries {
		targets[i] = newTarget(q.Tree)
	}

	var err error
	if prior {
		err = c.reconcile(befores, targets)
	} else {
		c.res.Imported = true
		err = c.importAll(targets)
	}
	if err != nil {
		return err
	}
	return c.rescan()
}

func (c *cycle) checkpoint() error {
	if err := c.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

func (c *cycle) record(kind OpKind, query, id int) {
	c.res.Ops = append(c.res.Ops, Op{Kind: kind, Query: query, ID: id})
}

func (c *cycle) warn(msg string) {
	if c.warned[msg] {
		return
	}
	c.warned[msg] = true
	c.res.Warnings = append(c.res.Warnings, msg)
	c.r.log.Warn(msg)
}

// importAll rebuilds the document from scratch.
func (c *cycle) importAll(targets []target) error {
	c.doc.DeleteAllContent()
	last := ""
	for i, q := range c.queries {
		for _, n := range targets[i].nodes {
			if err := c.checkpoint(); err != nil {
				return err
			}
			pos := c.doc.Len()
			if rng, ok := c.doc.Bookmark(last); ok {
				pos = rng.End
			}
			name, err := c.insert(q, n, pos)
			if err != nil {
				return err
			}
			last = name
		}
		if err := c.snapshot(q, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *cycle) reconcile(befores [][]int, targets []target) error {
	// Physical order is read once, before anything moves.
	physical := make(map[int][]int)
	for _, b := range c.doc.Bookmarks() {
		if q, id, ok := bookmark.Parse(b.Name); ok {
			physical[q] = append(physical[q], id)
		}
	}

	for i, q := range c.queries {
		stale := slices.Concat(befores[i], physical[q.Index])
		for _, id := range stale {
			if _, keep := targets[i].index[id]; keep {
				continue
			}
			name := bookmark.Name(q.Index, id)
			if _, ok := c.doc.Bookmark(name); !ok {
				continue
			}
			if err := c.checkpoint(); err != nil {
				return err
			}
			if err := c.doc.DeleteBookmark(name); err != nil {
				return fmt.Errorf("delete %s: %w", name, err)
			}
			c.record(OpDelete, q.Index, id)
			c.r.log.Debug("deleted work item", "query", q.Index, "id", id)
		}
	}

	for i, q := range c.queries {
		var err error
		if q.Tree.IsFlat() && manuallySorted(befores[i], physical[q.Index], targets[i]) {
			c.r.log.Info("manual sort detected, keeping order", "query", q.Index)
			err = c.appendNew(q, targets[i])
		} else {
			err = c.place(q, targets[i])
		}
		if err != nil {
			return err
		}
		if err := c.snapshot(q, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// manuallySorted reports whether the items kept from the previous cycle no
// longer appear in the order that cycle wrote them.
func manuallySorted(before, physical []int, tg target) bool {
	present := make(map[int]bool, len(physical))
	for _, id := range physical {
		present[id] = true
	}
	recorded := make(map[int]bool, len(before))
	for _, id := range before {
		recorded[id] = true
	}

	var want, got []int
	for _, id := range before {
		if _, ok := tg.index[id]; ok && present[id] {
			want = append(want, id)
		}
	}
	for _, id := range physical {
		if _, ok := tg.index[id]; ok && recorded[id] {
			got = append(got, id)
		}
	}
	return !slices.Equal(want, got)
}

// appendNew leaves existing sections alone and adds new items, in result
// order, after the query's last section.
func (c *cycle) appendNew(q Query, tg target) error {
	anchor := ""
	end := -1
	for _, b := range c.doc.Bookmarks() {
		if qi, _, ok := bookmark.Parse(b.Name); ok && qi == q.Index && b.End > end {
			anchor, end = b.Name, b.End
		}
	}

	for _, n := range tg.nodes {
		name := bookmark.Name(q.Index, n.Item.ID)
		if _, ok := c.doc.Bookmark(name); ok {
			continue
		}
		if err := c.checkpoint(); err != nil {
			return err
		}
		pos := c.tail()
		if rng, ok := c.doc.Bookmark(anchor); ok {
			pos = rng.End
		}
		if _, err := c.insert(q, n, pos); err != nil {
			return err
		}
		anchor = name
	}
	return nil
}

// place makes the query's sections appear in target order. Sections on a
// longest increasing run of the current order stay where they are; every
// other item is moved or inserted right after its predecessor.
func (c *cycle) place(q Query, tg target) error {
	var seq []int
	for _, b := range c.doc.Bookmarks() {
		qi, id, ok := bookmark.Parse(b.Name)
		if !ok || qi != q.Index {
			continue
		}
		if i, ok := tg.index[id]; ok {
			seq = append(seq, i)
		}
	}
	stay := make(map[int]bool)
	for _, k := range longestIncreasing(seq) {
		stay[seq[k]] = true
	}

	prev := ""
	for i, n := range tg.nodes {
		name := bookmark.Name(q.Index, n.Item.ID)
		cur, exists := c.doc.Bookmark(name)
		switch {
		case exists && stay[i]:
		case exists:
			pos, inPlace := c.slot(q.Index, prev, name, cur.Start)
			if inPlace {
				break
			}
			if err := c.checkpoint(); err != nil {
				return err
			}
			if err := c.doc.MoveBookmark(name, pos); err != nil {
				return fmt.Errorf("move %s: %w", name, err)
			}
			c.record(OpMove, q.Index, n.Item.ID)
			c.r.log.Debug("moved work item", "query", q.Index, "id", n.Item.ID, "pos", pos)
		default:
			if err := c.checkpoint(); err != nil {
				return err
			}
			pos, _ := c.slot(q.Index, prev, name, -1)
			if _, err := c.insert(q, n, pos); err != nil {
				return err
			}
		}
		prev = name
	}
	return nil
}

// slot returns where the section name belongs: right after prev, or before
// the query's first other section when it has no predecessor. inPlace reports
// whether a section starting at start is already there.
func (c *cycle) slot(query int, prev, name string, start int) (pos int, inPlace bool) {
	if prev != "" {
		if p, ok := c.doc.Bookmark(prev); ok {
			return p.End, start == p.End
		}
	}
	for _, b := range c.doc.Bookmarks() {
		if b.Name == name {
			continue
		}
		if qi, _, ok := bookmark.Parse(b.Name); ok && qi == query {
			return b.Start, start >= 0 && start < b.Start
		}
	}
	return c.tail(), start >= 0
}

// tail is where content appended to the document goes: in front of a
// trailing boilerplate paragraph left by an earlier cycle, otherwise at the
// very end.
func (c *cycle) tail() int {
	n := c.doc.Len()
	if n > 0 && c.doc.TextAt(n-1) == c.r.boilerplate {
		return n - 1
	}
	return n
}

// longestIncreasing returns the positions in seq of one longest strictly
// increasing subsequence.
func longestIncreasing(seq []int) []int {
	var tails []int
	prev := make([]int, len(seq))
	for i, v := range seq {
		j := sort.Search(len(tails), func(k int) bool { return seq[tails[k]] >= v })
		prev[i] = -1
		if j > 0 {
			prev[i] = tails[j-1]
		}
		if j == len(tails) {
			tails = append(tails, i)
		} else {
			tails[j] = i
		}
	}
	if len(tails) == 0 {
		return nil
	}
	out := make([]int, len(tails))
	k := tails[len(tails)-1]
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = k
		k = prev[k]
	}
	return out
}

// insert renders n at pos inside a new bookmark and binds its controls.
func (c *cycle) insert(q Query, n *workitem.Node, pos int) (string, error) {
	name := bookmark.Name(q.Index, n.Item.ID)
	atStart, atEnd := c.doc.IsAtStart(pos), c.doc.IsAtEnd(pos)

	rng, err := c.doc.InsertFragment(pos, name, c.fragment(q, n))
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", name, err)
	}
	if atEnd {
		if err := c.doc.InsertParagraph(rng.End, c.r.boilerplate, boilerplateStyle); err != nil {
			return "", err
		}
	}
	if atStart {
		if err := c.doc.InsertParagraph(rng.Start, c.r.boilerplate, boilerplateStyle); err != nil {
			return "", err
		}
		rng.Start++
		rng.End++
	}

	c.bind(n.Item, rng)
	c.record(OpInsert, q.Index, n.Item.ID)
	c.r.log.Debug("inserted work item", "query", q.Index, "id", n.Item.ID, "pos", rng.Start, "level", n.Level)
	return name, nil
}

func (c *cycle) fragment(q Query, n *workitem.Node) *document.Fragment {
	b, ok := q.Layout.Choose(n.Item.Type, n.Level)
	if ok && b.Fragment != nil && len(b.Fragment.Paragraphs) > 0 {
		return b.Fragment
	}
	if ok {
		c.warn(fmt.Sprintf("query %d: building block %q of layout %q is empty", q.Index, b.Name, q.Layout.Name))
	}
	return placeholder(n.Item)
}

func placeholder(it workitem.WorkItem) *document.Fragment {
	text := fmt.Sprintf("Work item %d", it.ID)
	if it.Type != "" {
		text = fmt.Sprintf("%s %d", it.Type, it.ID)
	}
	return &document.Fragment{Paragraphs: []document.Paragraph{{
		Style: boilerplateStyle,
		Runs:  []document.Run{{Text: text}},
	}}}
}

// capability is how a control kind receives its value.
type capability int

const (
	byReference capability = iota // bound to a data path
	byValue                       // populated with text and tagged "{field}-{id}"
	unsupported
)

func capabilityOf(kind document.ControlKind) capability {
	switch kind {
	case document.KindPlainText, document.KindDate, document.KindDropDown:
		return byReference
	case document.KindRichText:
		return byValue
	}
	return unsupported
}

func (c *cycle) bind(it workitem.WorkItem, rng document.BookmarkRange) {
	for _, pc := range c.doc.ControlsIn(rng.Start, rng.End) {
		field := pc.Tag
		switch capabilityOf(pc.Kind) {
		case byReference:
			c.doc.BindControl(pc.Control, docdata.XPath(it.ID, field))
		case byValue:
			v, _ := it.Field(field)
			c.doc.PopulateControl(pc.Control, v)
			c.doc.TagControl(pc.Control, docdata.Tag(field, it.ID))
		case unsupported:
			c.warn(fmt.Sprintf("control %q of work item %d has unsupported kind %q", field, it.ID, pc.Kind))
		}
	}
}

func (c *cycle) snapshot(q Query, tg target) error {
	c.store.SetLayout(q.Index, q.Layout.Name)
	if err := c.store.SetQueryItems(q.Index, tg.ids); err != nil {
		return err
	}
	c.res.Snapshots = append(c.res.Snapshots, q.Index)
	return nil
}

// rescan refreshes every rich-text control from the current items, and
// clears controls whose item is gone from every query.
func (c *cycle) rescan() error {
	items := make(map[int]workitem.WorkItem)
	for _, it := range mergeItems(c.queries) {
		items[it.ID] = it
	}

	for _, pc := range c.doc.Controls() {
		if pc.Kind != document.KindRichText {
			continue
		}
		field, id, ok := docdata.ParseTag(pc.Tag)
		if !ok {
			continue
		}
		if err := c.checkpoint(); err != nil {
			return err
		}
		it, exists := items[id]
		if !exists {
			if pc.Text != "" {
				c.doc.PopulateControl(pc.Control, "")
				c.record(OpClear, -1, id)
			}
			continue
		}
		v, ok := it.Field(field)
		if !ok || v == pc.Text {
			continue
		}
		c.doc.PopulateControl(pc.Control, v)
		c.record(OpRefresh, -1, id)
	}
	return nil
}

// mergeItems collects every item of every query, merging the fields of an
// item returned by several queries. Order is first appearance.
func mergeItems(queries []Query) []workitem.WorkItem {
	var out []workitem.WorkItem
	index := make(map[int]int)
	for _, q := range queries {
		for n := range q.Tree.All() {
			i, seen := index[n.Item.ID]
			if !seen {
				index[n.Item.ID] = len(out)
				it := n.Item
				it.Fields = slices.Clone(it.Fields)
				out = append(out, it)
				continue
			}
			for _, f := range n.Item.Fields {
				if _, has := out[i].Field(f.Name); !has {
					out[i].Fields = append(out[i].Fields, f)
				}
			}
		}
	}
	return out
}
