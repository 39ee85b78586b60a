package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// excelSource exposes an XLSX workbook with one page per sheet.
// Cell values in a row are joined with tabs, rows with newlines.
type excelSource struct {
	file   *excelize.File
	sheets []string
}

func openExcel(path string) (Source, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	return &excelSource{file: f, sheets: f.GetSheetList()}, nil
}

func (s *excelSource) PageCount() int { return len(s.sheets) }

func (s *excelSource) PageText(page int) (string, error) {
	if page < 0 || page >= len(s.sheets) {
		return "", fmt.Errorf("page %d out of range", page)
	}
	rows, err := s.file.GetRows(s.sheets[page])
	if err != nil {
		return "", fmt.Errorf("get rows for sheet %q: %w", s.sheets[page], err)
	}
	var buf strings.Builder
	for _, row := range rows {
		buf.WriteString(strings.Join(row, "\t"))
		buf.WriteByte('\n')
	}
	return strings.TrimSpace(buf.String()), nil
}

func (s *excelSource) Close() error {
	return s.file.Close()
}
