// Package e2e provides end-to-end tests over a generated corpus.
package e2e

import "fmt"

// Document is one source file in the generated corpus. Each document
// carries a unique signature sentence so queries can assert that the right
// passage comes back.
type Document struct {
	Name      string
	Content   string
	Signature string
}

var topics = []string{
	"ashwagandha", "triphala", "brahmi", "tulsi", "neem",
	"turmeric", "ginger", "licorice", "shatavari", "guduchi",
}

var properties = []string{
	"restores energy", "aids digestion", "supports memory", "calms the mind",
	"purifies the blood", "reduces inflammation", "warms the body",
	"soothes the throat", "nourishes tissues", "strengthens immunity",
}

// BuildCorpus returns n generated documents. Each contains filler sentences
// plus one signature sentence unique to the document.
func BuildCorpus(n int) []Document {
	docs := make([]Document, n)
	for i := 0; i < n; i++ {
		topic := topics[i%len(topics)]
		property := properties[i%len(properties)]
		signature := fmt.Sprintf("Document %d explains how %s %s in classical practice.", i, topic, property)
		content := fmt.Sprintf(
			"This text covers traditional herbal preparations. %s Daily routines matter for balance. Seasonal adjustments are recommended.",
			signature,
		)
		docs[i] = Document{
			Name:      fmt.Sprintf("doc%03d.txt", i),
			Content:   content,
			Signature: signature,
		}
	}
	return docs
}
