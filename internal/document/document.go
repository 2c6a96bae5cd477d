package document

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrBookmarkNotFound = errors.New("bookmark not found")
	ErrBookmarkExists   = errors.New("bookmark already exists")
	ErrOutOfRange       = errors.New("position out of range")
	ErrEmptyFragment    = errors.New("fragment has no paragraphs")
)

// ControlKind identifies what a content control can hold.
type ControlKind string

const (
	KindPlainText ControlKind = "plain_text"
	KindDate      ControlKind = "date"
	KindDropDown  ControlKind = "drop_down"
	KindRichText  ControlKind = "rich_text"
)

// Control is a content control inside a paragraph. Template controls carry the
// field name as Tag; rich-text controls in the live document are re-tagged
// "{field}-{id}".
type Control struct {
	ID      int         `json:"id"`
	Kind    ControlKind `json:"kind"`
	Tag     string      `json:"tag"`
	Binding string      `json:"binding,omitempty"`
	Text    string      `json:"text,omitempty"`
}

// Run is either literal text or a content control.
type Run struct {
	Text    string   `json:"text,omitempty"`
	Control *Control `json:"control,omitempty"`
}

// Paragraph is the unit of position in a document.
type Paragraph struct {
	ID    int    `json:"id"`
	Style string `json:"style,omitempty"`
	Runs  []Run  `json:"runs"`
}

// Fragment is a sequence of paragraphs, typically a building block template.
type Fragment struct {
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Fields returns the tags of all controls in the fragment, in order of first
// appearance.
func (f *Fragment) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range f.Paragraphs {
		for _, r := range p.Runs {
			if r.Control == nil || r.Control.Tag == "" || seen[r.Control.Tag] {
				continue
			}
			seen[r.Control.Tag] = true
			out = append(out, r.Control.Tag)
		}
	}
	return out
}

// Bookmark anchors a named range from its first to its last paragraph.
type Bookmark struct {
	Name    string `json:"name"`
	StartID int    `json:"start_id"`
	EndID   int    `json:"end_id"`
}

// BookmarkRange is a bookmark resolved to paragraph indices [Start, End).
type BookmarkRange struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// PlacedControl is a live control together with the index of its paragraph.
type PlacedControl struct {
	Pos int
	*Control
}

// Part is a named data block stored alongside the document content.
type Part struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Resolver returns the current value for a control binding path.
type Resolver func(path string) (string, bool)

// Document is an in-memory rich-text document. It is not safe for
// concurrent use.
type Document struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Paragraphs []Paragraph `json:"paragraphs"`
	Marks      []Bookmark  `json:"bookmarks"`
	DataParts  []Part      `json:"parts"`
	NextID     int         `json:"next_id"`
}

// New creates an empty document.
func New(id, title string) *Document {
	return &Document{ID: id, Title: title, NextID: 1}
}

func (d *Document) newID() int {
	if d.NextID < 1 {
		d.NextID = 1
	}
	id := d.NextID
	d.NextID++
	return id
}

// Len returns the number of paragraphs.
func (d *Document) Len() int { return len(d.Paragraphs) }

// IsAtStart reports whether pos is the very start of the document.
func (d *Document) IsAtStart(pos int) bool { return pos <= 0 }

// IsAtEnd reports whether pos is the very end of the document.
func (d *Document) IsAtEnd(pos int) bool { return pos >= len(d.Paragraphs) }

// DeleteAllContent removes every paragraph and bookmark. Data parts survive.
func (d *Document) DeleteAllContent() {
	d.Paragraphs = nil
	d.Marks = nil
}

// InsertParagraph inserts a plain paragraph at pos.
func (d *Document) InsertParagraph(pos int, text, style string) error {
	if pos < 0 || pos > len(d.Paragraphs) {
		return fmt.Errorf("insert paragraph at %d: %w", pos, ErrOutOfRange)
	}
	p := Paragraph{ID: d.newID(), Style: style}
	if text != "" {
		p.Runs = []Run{{Text: text}}
	}
	d.insertAt(pos, []Paragraph{p})
	return nil
}

// InsertFragment copies frag into the document at pos and wraps the copy in a
// new bookmark called name.
func (d *Document) InsertFragment(pos int, name string, frag *Fragment) (BookmarkRange, error) {
	if frag == nil || len(frag.Paragraphs) == 0 {
		return BookmarkRange{}, ErrEmptyFragment
	}
	if pos < 0 || pos > len(d.Paragraphs) {
		return BookmarkRange{}, fmt.Errorf("insert %s at %d: %w", name, pos, ErrOutOfRange)
	}
	if d.indexOfMark(name) >= 0 {
		return BookmarkRange{}, fmt.Errorf("insert %s: %w", name, ErrBookmarkExists)
	}

	paras := make([]Paragraph, len(frag.Paragraphs))
	for i, src := range frag.Paragraphs {
		p := Paragraph{ID: d.newID(), Style: src.Style, Runs: make([]Run, len(src.Runs))}
		for j, r := range src.Runs {
			p.Runs[j] = Run{Text: r.Text}
			if r.Control != nil {
				c := *r.Control
				c.ID = d.newID()
				p.Runs[j].Control = &c
			}
		}
		paras[i] = p
	}
	d.insertAt(pos, paras)
	d.Marks = append(d.Marks, Bookmark{Name: name, StartID: paras[0].ID, EndID: paras[len(paras)-1].ID})
	return BookmarkRange{Name: name, Start: pos, End: pos + len(paras)}, nil
}

// DeleteBookmark removes a bookmark together with the paragraphs it spans.
func (d *Document) DeleteBookmark(name string) error {
	r, ok := d.Bookmark(name)
	if !ok {
		return fmt.Errorf("delete %s: %w", name, ErrBookmarkNotFound)
	}
	d.Paragraphs = slices.Delete(d.Paragraphs, r.Start, r.End)
	i := d.indexOfMark(name)
	d.Marks = slices.Delete(d.Marks, i, i+1)
	return nil
}

// MoveBookmark moves a bookmark and its paragraphs so that they start at pos,
// where pos is measured before the move.
func (d *Document) MoveBookmark(name string, pos int) error {
	r, ok := d.Bookmark(name)
	if !ok {
		return fmt.Errorf("move %s: %w", name, ErrBookmarkNotFound)
	}
	if pos < 0 || pos > len(d.Paragraphs) {
		return fmt.Errorf("move %s to %d: %w", name, pos, ErrOutOfRange)
	}
	if pos >= r.Start && pos <= r.End {
		return nil
	}
	moved := slices.Clone(d.Paragraphs[r.Start:r.End])
	d.Paragraphs = slices.Delete(d.Paragraphs, r.Start, r.End)
	if pos > r.End {
		pos -= len(moved)
	}
	d.insertAt(pos, moved)
	return nil
}

// Bookmark resolves a single bookmark by name.
func (d *Document) Bookmark(name string) (BookmarkRange, bool) {
	i := d.indexOfMark(name)
	if i < 0 {
		return BookmarkRange{}, false
	}
	index := d.paragraphIndex()
	return resolve(d.Marks[i], index)
}

// Bookmarks returns every resolvable bookmark ordered by start position.
// Bookmarks whose anchor paragraphs no longer exist are skipped.
func (d *Document) Bookmarks() []BookmarkRange {
	index := d.paragraphIndex()
	out := make([]BookmarkRange, 0, len(d.Marks))
	for _, m := range d.Marks {
		if r, ok := resolve(m, index); ok {
			out = append(out, r)
		}
	}
	// Stable so that equal starts keep storage order.
	slices.SortStableFunc(out, func(a, b BookmarkRange) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return b.End - a.End
	})
	return out
}

// Controls returns every content control in document order.
func (d *Document) Controls() []PlacedControl {
	return d.ControlsIn(0, len(d.Paragraphs))
}

// ControlsIn returns the controls in paragraphs [start, end).
func (d *Document) ControlsIn(start, end int) []PlacedControl {
	if start < 0 {
		start = 0
	}
	if end > len(d.Paragraphs) {
		end = len(d.Paragraphs)
	}
	var out []PlacedControl
	for i := start; i < end; i++ {
		for _, r := range d.Paragraphs[i].Runs {
			if r.Control != nil {
				out = append(out, PlacedControl{Pos: i, Control: r.Control})
			}
		}
	}
	return out
}

// BindControl maps a control to a data path; its value is resolved on render.
func (d *Document) BindControl(c *Control, path string) {
	c.Binding = path
}

// PopulateControl writes literal text into a control.
func (d *Document) PopulateControl(c *Control, text string) {
	c.Text = text
}

// TagControl replaces a control's tag.
func (d *Document) TagControl(c *Control, tag string) {
	c.Tag = tag
}

// AddPart appends a data part. Parts with the same name may coexist.
func (d *Document) AddPart(name string, data []byte) {
	d.DataParts = append(d.DataParts, Part{Name: name, Data: append([]byte(nil), data...)})
}

// DeletePart removes every part with the given name.
func (d *Document) DeletePart(name string) {
	kept := d.DataParts[:0]
	for _, p := range d.DataParts {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	d.DataParts = kept
}

// Part returns the first part with the given name.
func (d *Document) Part(name string) ([]byte, bool) {
	for _, p := range d.DataParts {
		if p.Name == name {
			return p.Data, true
		}
	}
	return nil, false
}

// Parts lists the names of all parts, in storage order.
func (d *Document) Parts() []string {
	names := make([]string, 0, len(d.DataParts))
	for _, p := range d.DataParts {
		names = append(names, p.Name)
	}
	return names
}

// ParagraphText renders a single paragraph. Bound controls are resolved with
// resolve when it is non-nil.
func ParagraphText(p Paragraph, resolve Resolver) string {
	var sb strings.Builder
	for _, r := range p.Runs {
		if r.Control == nil {
			sb.WriteString(r.Text)
			continue
		}
		if r.Control.Binding != "" && resolve != nil {
			if v, ok := resolve(r.Control.Binding); ok {
				sb.WriteString(v)
				continue
			}
		}
		sb.WriteString(r.Control.Text)
	}
	return sb.String()
}

// TextAt returns the unresolved text of the paragraph at pos, or "" when pos
// is out of range.
func (d *Document) TextAt(pos int) string {
	if pos < 0 || pos >= len(d.Paragraphs) {
		return ""
	}
	return ParagraphText(d.Paragraphs[pos], nil)
}

// Text renders the whole document as plain text, one line per paragraph.
func (d *Document) Text(resolve Resolver) string {
	lines := make([]string, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		lines[i] = ParagraphText(p, resolve)
	}
	return strings.Join(lines, "\n")
}

func (d *Document) insertAt(pos int, paras []Paragraph) {
	d.Paragraphs = slices.Insert(d.Paragraphs, pos, paras...)
}

func (d *Document) indexOfMark(name string) int {
	for i, m := range d.Marks {
		if m.Name == name {
			return i
		}
	}
	return -1
}

func (d *Document) paragraphIndex() map[int]int {
	index := make(map[int]int, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		index[p.ID] = i
	}
	return index
}

func resolve(m Bookmark, index map[int]int) (BookmarkRange, bool) {
	s, ok := index[m.StartID]
	if !ok {
		return BookmarkRange{}, false
	}
	e, ok := index[m.EndID]
	if !ok || e < s {
		return BookmarkRange{}, false
	}
	return BookmarkRange{Name: m.Name, Start: s, End: e + 1}, true
}
