package docdata

import (
	"testing"

	"github.com/dgallion1/docsync/internal/document"
	"github.com/dgallion1/docsync/internal/workitem"
	"github.com/google/go-cmp/cmp"
)

func TestQueries_RoundTripAndLayouts(t *testing.T) {
	doc := document.New("d", "t")
	s := New(doc)

	defs := []QueryDef{
		{Index: 0, QueryID: "q-open-bugs", Mode: workitem.ModeFlat, Layout: "bugs"},
		{Index: 1, QueryID: "q-backlog", Mode: workitem.ModeTree, Layout: "backlog"},
	}
	if err := s.SaveQueries(defs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Queries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(defs, got); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
	if name, ok := s.Layout(1); !ok || name != "backlog" {
		t.Errorf("expected layout backlog, got %q (%v)", name, ok)
	}

	// Saving again must not accumulate parts.
	if err := s.SaveQueries(defs[:1]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count := 0
	for _, name := range doc.Parts() {
		if name == PartQueries || name == LayoutPart(0) {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected one queries part and one layout part, got %d", count)
	}
}

func TestQueryItems(t *testing.T) {
	s := New(document.New("d", "t"))

	if _, ok, err := s.QueryItems(0); ok || err != nil {
		t.Fatalf("expected no state, got ok=%v err=%v", ok, err)
	}
	if err := s.SetQueryItems(0, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, ok, err := s.QueryItems(0)
	if err != nil || !ok || len(ids) != 0 {
		t.Fatalf("expected empty recorded state, got %v ok=%v err=%v", ids, ok, err)
	}
	if err := s.SetQueryItems(0, []int{3, 1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, _, _ = s.QueryItems(0)
	if diff := cmp.Diff([]int{3, 1, 2}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldValues_Resolver(t *testing.T) {
	s := New(document.New("d", "t"))
	err := s.SetFieldValues([]workitem.WorkItem{
		{ID: 7, Type: "Bug", Fields: []workitem.Field{{Name: "Title", Value: "Crash <on> save & exit"}}},
		{ID: 9, Fields: []workitem.Field{{Name: "State", Value: "Active"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolve := s.Resolver()
	if v, ok := resolve(XPath(7, "Title")); !ok || v != "Crash <on> save & exit" {
		t.Errorf("expected escaped title round trip, got %q (%v)", v, ok)
	}
	if _, ok := resolve(XPath(7, "State")); ok {
		t.Error("expected missing field to be unresolved")
	}
	if _, ok := resolve("/WorkItems/WorkItem[1]"); ok {
		t.Error("expected malformed path to be unresolved")
	}
}

func TestXPath(t *testing.T) {
	path := XPath(42, "System.Title")
	if path != "/WorkItems/WorkItem[@id='42']/Field[@name='System.Title']" {
		t.Errorf("unexpected path %q", path)
	}
	id, field, ok := ParseXPath(path)
	if !ok || id != 42 || field != "System.Title" {
		t.Errorf("expected (42, System.Title), got (%d, %q, %v)", id, field, ok)
	}
}

func TestXPath_TemplateFieldNames(t *testing.T) {
	for _, field := range []string{"Microsoft.VSTS.Common.Priority", "Custom Field", "Due-Date"} {
		id, got, ok := ParseXPath(XPath(7, field))
		if !ok || id != 7 || got != field {
			t.Errorf("expected (7, %q), got (%d, %q, %v)", field, id, got, ok)
		}
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag   string
		field string
		id    int
		ok    bool
	}{
		{"Description-12", "Description", 12, true},
		{"Repro-Steps-3", "Repro-Steps", 3, true},
		{"Description", "", 0, false},
		{"Description-", "", 0, false},
		{"-12", "", 0, false},
		{"Description-1a", "", 0, false},
		{"Description-+1", "", 0, false},
	}
	for _, tt := range tests {
		field, id, ok := ParseTag(tt.tag)
		if ok != tt.ok || field != tt.field || id != tt.id {
			t.Errorf("ParseTag(%q): expected (%q, %d, %v), got (%q, %d, %v)",
				tt.tag, tt.field, tt.id, tt.ok, field, id, ok)
		}
	}
	if got := Tag("Repro-Steps", 3); got != "Repro-Steps-3" {
		t.Errorf("expected Repro-Steps-3, got %q", got)
	}
}

func TestControlItem(t *testing.T) {
	bound := &document.Control{Kind: document.KindPlainText, Tag: "Title", Binding: XPath(5, "Title")}
	rich := &document.Control{Kind: document.KindRichText, Tag: Tag("Description", 6)}
	template := &document.Control{Kind: document.KindPlainText, Tag: "Title-7"}

	if id, ok := ControlItem(bound); !ok || id != 5 {
		t.Errorf("expected 5, got %d (%v)", id, ok)
	}
	if id, ok := ControlItem(rich); !ok || id != 6 {
		t.Errorf("expected 6, got %d (%v)", id, ok)
	}
	if _, ok := ControlItem(template); ok {
		t.Error("expected unbound plain-text control to map to no item")
	}
}
