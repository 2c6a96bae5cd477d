package document

import (
	"fmt"
	"io"

	"github.com/fumiama/go-docx"
)

// WriteDOCX renders the document content as a .docx file. Bound controls are
// resolved through resolve; bookmarks and data parts are not exported.
func (d *Document) WriteDOCX(w io.Writer, resolve Resolver) error {
	f := docx.New()
	for _, p := range d.Paragraphs {
		para := f.AddParagraph()
		if p.Style != "" {
			para.Style(p.Style)
		}
		if text := ParagraphText(p, resolve); text != "" {
			para.AddText(text)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}
