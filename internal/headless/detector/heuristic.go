// Package detector decides when a fetched page needs a headless re-fetch.
package detector

import (
	"bytes"

	"github.com/homescan/listing-crawler/internal/listing"
)

// payloadMarker is the embedded data island the extractor reads. A 200
// response without it is an unrendered shell or an interstitial, not a
// result page.
var payloadMarker = []byte("__NEXT_DATA__")

// Heuristic promotes payload-less pages to a headless re-fetch.
type Heuristic struct{}

// NewHeuristic creates a new detector.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// ShouldPromote reports whether the document should be re-fetched with a
// headless browser: a 200 response whose body lacks the embedded payload.
// A marker-bearing page is never promoted regardless of size, and non-200
// responses are never promoted either: the crawl loop treats those as fetch
// outcomes in their own right.
func (h *Heuristic) ShouldPromote(doc listing.PageDocument) bool {
	if doc.UsedHeadless || doc.StatusCode != 200 {
		return false
	}
	return !bytes.Contains(doc.HTML, payloadMarker)
}
