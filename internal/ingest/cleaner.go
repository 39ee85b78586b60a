// Package ingest converts source documents into stored passages and embeds
// them. Cleaning and segmentation are lossy, irreversible normalizations;
// their exact policies must not change, or stored corpora built with earlier
// builds stop being comparable.
package ingest

import (
	"regexp"
	"strings"
)

var (
	blankLineRuns = regexp.MustCompile(`\n\s*\n`)
	// Whitelist: alphanumerics plus . , ; : ! ? ( ) ' " and newline.
	nonWhitelisted = regexp.MustCompile(`[^A-Za-z0-9.,;:!?()'"\n]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// Clean normalizes raw extracted text: blank-line runs collapse to a single
// newline, characters outside the whitelist become a single space, whitespace
// runs collapse to a single space, and the result is trimmed.
func Clean(text string) string {
	text = blankLineRuns.ReplaceAllString(text, "\n")
	text = nonWhitelisted.ReplaceAllString(text, " ")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
