package extract

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// pdfSource reads pages from a PDF file.
type pdfSource struct {
	file   *os.File
	reader *pdf.Reader
}

func openPDF(path string) (Source, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return &pdfSource{file: f, reader: r}, nil
}

func (s *pdfSource) PageCount() int {
	return s.reader.NumPage()
}

// PageText returns the plain text of the given 0-based page. Null pages
// (placeholders in the PDF page tree) yield an empty string.
func (s *pdfSource) PageText(page int) (string, error) {
	p := s.reader.Page(page + 1)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", page+1, err)
	}
	return text, nil
}

func (s *pdfSource) Close() error {
	return s.file.Close()
}
