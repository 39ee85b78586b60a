package extract

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestOpen_Plain(t *testing.T) {
	path := writeTempFile(t, "doc.txt", []byte("Hello world\nLine 2"))
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.PageCount() != 1 {
		t.Errorf("PageCount=%d, want 1", src.PageCount())
	}
	got, err := src.PageText(0)
	if err != nil {
		t.Fatalf("PageText: %v", err)
	}
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
	if _, err := src.PageText(1); err == nil {
		t.Error("page 1 should be out of range")
	}
}

func TestOpen_PlainInvalidUTF8(t *testing.T) {
	path := writeTempFile(t, "doc.md", []byte("hello\x80world"))
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	got, err := src.PageText(0)
	if err != nil {
		t.Fatalf("PageText: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestOpen_Excel(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	_ = f.Close()
	path := writeTempFile(t, "doc.xlsx", buf.Bytes())

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.PageCount() != 1 {
		t.Errorf("PageCount=%d, want 1", src.PageCount())
	}
	got, err := src.PageText(0)
	if err != nil {
		t.Fatalf("PageText: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestOpen_Unsupported(t *testing.T) {
	path := writeTempFile(t, "doc.exe", []byte{0x4d, 0x5a})
	_, err := Open(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
