package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// plainSource exposes a UTF-8 text file as a single page.
// Invalid UTF-8 sequences are replaced with the replacement character.
type plainSource struct {
	text string
}

func openPlain(path string) (Source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return &plainSource{text: string(content)}, nil
}

func (s *plainSource) PageCount() int { return 1 }

func (s *plainSource) PageText(page int) (string, error) {
	if page != 0 {
		return "", fmt.Errorf("page %d out of range", page)
	}
	return s.text, nil
}

func (s *plainSource) Close() error { return nil }
