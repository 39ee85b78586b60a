package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// wordDocSource exposes a DOCX, ODT, or RTF document as a single page.
// These formats flow text without a fixed page layout, so the whole body is
// one page.
type wordDocSource struct {
	text string
}

func openWordDoc(path string) (Source, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("extract document: %w", err)
	}
	return &wordDocSource{text: text}, nil
}

func (s *wordDocSource) PageCount() int { return 1 }

func (s *wordDocSource) PageText(page int) (string, error) {
	if page != 0 {
		return "", fmt.Errorf("page %d out of range", page)
	}
	return s.text, nil
}

func (s *wordDocSource) Close() error { return nil }
