package ingest

import "strings"

// Segment splits cleaned text into sentence-like chunks by scanning
// character-by-character. A chunk closes when a terminal mark (. ! ?) is
// seen; the terminal character itself is dropped. Any trailing partial
// chunk is still emitted. Adjacent terminals produce empty chunks.
//
// This segmenter is deliberately naive: it does not handle abbreviations,
// decimal numbers, or quoted punctuation. Replacing it with a smarter
// splitter would re-segment the corpus and change every passage id.
func Segment(text string) []string {
	var chunks []string
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			chunks = append(chunks, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
