package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docsync/internal/document"
	"github.com/google/go-cmp/cmp"
)

func styles(f *document.Fragment) []string {
	var out []string
	for _, p := range f.Paragraphs {
		out = append(out, p.Style)
	}
	return out
}

func texts(f *document.Fragment) []string {
	var out []string
	for _, p := range f.Paragraphs {
		out = append(out, document.ParagraphText(p, nil))
	}
	return out
}

func TestMarkdownParser_BlockTemplate(t *testing.T) {
	input := `## {{System.Id}} {{Title}}

State: {{State}}
Assigned to {{AssignedTo}}

- Due {{date:DueDate}}
- Area {{AreaPath}}

{{rich:Description}}
`
	p := &MarkdownParser{}
	frag, err := p.Parse(strings.NewReader(input), "bug.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStyles := []string{"Heading2", StyleNormal, StyleList, StyleList, StyleNormal}
	if diff := cmp.Diff(wantStyles, styles(frag)); diff != "" {
		t.Errorf("styles mismatch (-want +got):\n%s", diff)
	}

	wantFields := []string{"System.Id", "Title", "State", "AssignedTo", "DueDate", "AreaPath", "Description"}
	if diff := cmp.Diff(wantFields, frag.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	// Soft line breaks collapse to spaces.
	if got := texts(frag)[1]; got != "State:  Assigned to " {
		t.Errorf("unexpected paragraph text %q", got)
	}
}

func TestMarkdownParser_CodeBlockKeepsLines(t *testing.T) {
	input := "# Steps\n\n```\nstep one\nstep two\n```\n"
	p := &MarkdownParser{}
	frag, err := p.Parse(strings.NewReader(input), "steps.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Steps", "step one\nstep two"}
	if diff := cmp.Diff(want, texts(frag)); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	frag, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frag.Paragraphs) != 0 {
		t.Errorf("expected 0 paragraphs for empty input, got %d", len(frag.Paragraphs))
	}
}

func TestHTMLParser_BlockTemplate(t *testing.T) {
	input := `<html><head><title>ignored</title><style>p{}</style></head><body>
<h1>{{Title}}</h1>
<p>Owner:
   {{AssignedTo}}</p>
<ul><li>{{State}}</li></ul>
<script>var x = "{{Nope}}";</script>
</body></html>`
	p := &HTMLParser{}
	frag, err := p.Parse(strings.NewReader(input), "task.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Heading1", StyleNormal, StyleList}, styles(frag)); diff != "" {
		t.Errorf("styles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Title", "AssignedTo", "State"}, frag.Fields()); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}
