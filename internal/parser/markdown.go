package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/docsync/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown templates using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Fragment, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	frag := &document.Fragment{}
	add := func(t, style string) {
		if t != "" {
			frag.Paragraphs = append(frag.Paragraphs, paragraph(t, style))
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			add(inlineText(node, src), headingStyle(node.Level))
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				for c := item.FirstChild(); c != nil; c = c.NextSibling() {
					add(inlineText(c, src), StyleList)
				}
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			add(blockLines(n, src), StyleNormal)
		default:
			add(inlineText(n, src), StyleNormal)
		}
	}
	return frag, nil
}

// inlineText concatenates the inline text below n. Soft line breaks become
// spaces, hard line breaks newlines.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() {
					buf.WriteByte('\n')
				} else if t.SoftLineBreak() {
					buf.WriteByte(' ')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}
