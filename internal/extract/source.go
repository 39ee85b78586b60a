// Package extract provides page-addressable text extraction from corpus
// documents. A Source exposes a page count and per-page text; any format that
// can be presented this way is ingestible.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned by Open for file types that have no source
// implementation.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Source is a page-addressable document. Pages are indexed from 0.
// Formats without a native page concept expose their full text as one page.
type Source interface {
	PageCount() int
	PageText(page int) (string, error)
	Close() error
}

// Open returns a Source for the file at path, dispatching on extension:
// .pdf is page-addressable; .txt/.md/.rst are single-page plain text;
// .docx/.odt/.rtf are extracted as a single page; .xlsx exposes one page per
// sheet. Files with no extension are treated as plain text.
func Open(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return openPDF(path)
	case ".txt", ".md", ".rst", "":
		return openPlain(path)
	case ".docx", ".odt", ".rtf":
		return openWordDoc(path)
	case ".xlsx":
		return openExcel(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}
