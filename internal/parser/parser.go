package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docsync/internal/document"
)

// Parser converts a building block template into a document fragment.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Fragment, error)
}

// SupportedExtensions lists template file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported template extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

const (
	StyleNormal = "Normal"
	StyleList   = "ListParagraph"
)

func headingStyle(level int) string {
	return "Heading" + strconv.Itoa(level)
}

// {{Field}}, {{date:Field}}, {{rich:Field}}, {{list:Field}}. Field names
// cannot contain quotes; they end up inside a quoted binding path.
var placeholderRe = regexp.MustCompile(`\{\{\s*(?:(rich|date|list)\s*:)?\s*([^{}:'"]+?)\s*\}\}`)

// paragraph turns template text into a paragraph, replacing placeholders with
// content controls tagged with the field name.
func paragraph(text, style string) document.Paragraph {
	p := document.Paragraph{Style: style}
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			p.Runs = append(p.Runs, document.Run{Text: text[last:m[0]]})
		}
		kind := document.KindPlainText
		if m[2] >= 0 {
			switch text[m[2]:m[3]] {
			case "rich":
				kind = document.KindRichText
			case "date":
				kind = document.KindDate
			case "list":
				kind = document.KindDropDown
			}
		}
		p.Runs = append(p.Runs, document.Run{Control: &document.Control{
			Kind: kind,
			Tag:  text[m[4]:m[5]],
		}})
		last = m[1]
	}
	if last < len(text) {
		p.Runs = append(p.Runs, document.Run{Text: text[last:]})
	}
	return p
}
