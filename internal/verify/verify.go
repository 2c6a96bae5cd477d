// Package verify audits a document's work item sections. It only reports;
// it never changes the document.
package verify

import (
	"fmt"

	"github.com/dgallion1/docsync/internal/document"
)

// NameCodec decodes bookmark names into (query, work item) pairs.
type NameCodec interface {
	Parse(name string) (query, id int, ok bool)
}

// TagDecoder extracts the work item id a content control refers to.
type TagDecoder interface {
	ItemID(c *document.Control) (int, bool)
}

// TagDecoderFunc adapts a function to TagDecoder.
type TagDecoderFunc func(c *document.Control) (int, bool)

func (f TagDecoderFunc) ItemID(c *document.Control) (int, bool) { return f(c) }

// Source is read on every Verify call.
type Source interface {
	Bookmarks() []document.BookmarkRange
	Controls() []document.PlacedControl
}

// Expected holds, per query index, the ids that should have content.
type Expected map[int]map[int]bool

// Add records id as expected for query.
func (e Expected) Add(query int, ids ...int) {
	set := e[query]
	if set == nil {
		set = make(map[int]bool, len(ids))
		e[query] = set
	}
	for _, id := range ids {
		set[id] = true
	}
}

type Verifier struct {
	names NameCodec
	tags  TagDecoder
}

func New(names NameCodec, tags TagDecoder) *Verifier {
	return &Verifier{names: names, tags: tags}
}

type section struct {
	document.BookmarkRange
	query, id int
}

// Verify returns diagnostics in the order they are found. Expected ids with
// no section are not reported; the next sync adds them back.
func (v *Verifier) Verify(src Source, expected Expected) []string {
	var out []string
	seen := make(map[string]bool)
	report := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}

	var sections []section
	for _, b := range src.Bookmarks() {
		q, id, ok := v.names.Parse(b.Name)
		if !ok {
			continue
		}
		sections = append(sections, section{BookmarkRange: b, query: q, id: id})
		if !expected[q][id] {
			report("work item %d bookmark present but content missing for query %d", id, q)
		}
	}

	for _, pc := range src.Controls() {
		id, ok := v.tags.ItemID(pc.Control)
		if !ok {
			continue
		}
		inside := false
		for _, s := range sections {
			if pc.Pos < s.Start || pc.Pos >= s.End {
				continue
			}
			inside = true
			if s.id != id {
				report("bookmark for item %d contains fields from item %d", s.id, id)
			}
		}
		if !inside {
			report("field from item %d is not in any bookmark", id)
		}
	}

	for i, a := range sections {
		for _, b := range sections[i+1:] {
			if a.query == b.query && a.Start < b.End && b.Start < a.End {
				report("bookmarks %s and %s of query %d overlap", a.Name, b.Name, a.query)
			}
		}
	}
	return out
}
