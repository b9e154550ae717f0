package pdfdoc

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// TextReader reads the text layer with font encodings applied.
type TextReader struct{}

// NewTextReader creates a new text reader
func NewTextReader() *TextReader {
	return &TextReader{}
}

// PageTexts returns the plain text of every page, empty for pages without a text layer.
func (t *TextReader) PageTexts(path string) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("text layer %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open text layer %s: %w", path, err)
	}
	defer f.Close()

	texts = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d text: %w", i, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}
