package loader

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"contractqa/internal/domain"
)

// Extractor turns a document's raw bytes into per-page text.
type Extractor interface {
	ExtractPages(data []byte) ([]string, error)
}

// PDFExtractor extracts plain text page by page with ledongthuc/pdf.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// ExtractPages returns one entry per page, in page order. Pages without a
// content object yield an empty string so page numbering stays aligned.
func (e *PDFExtractor) ExtractPages(data []byte) (pages []string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: pdf parser panic: %v", domain.ErrExtractionFailure, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailure, err)
	}

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", domain.ErrExtractionFailure, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
