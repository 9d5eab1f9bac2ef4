// Package extract locates the listings payload embedded in a fetched result
// page. The source's document shape has drifted historically, so extraction
// probes an ordered list of candidate paths and never fails hard: malformed
// input degrades to an empty result.
package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/homescan/listing-crawler/internal/listing"
)

// embeddedDataSelector matches the script tag Next.js renders its page state
// into.
const embeddedDataSelector = "script#__NEXT_DATA__"

// Result is the outcome of extracting one page.
type Result struct {
	// Total is the source's reported total result count, nil when
	// unresolvable.
	Total *int
	// Records are the raw, source-shaped listing payloads in page order.
	Records []listing.RawRecord
	// Path names the candidate that produced the records, for diagnostics.
	Path string
}

// candidate probes one historical document shape. It reports ok only when it
// yields a non-empty records list; total is resolved independently and may be
// nil even on success.
type candidate struct {
	name  string
	probe func(doc map[string]any) (total *int, records []any, ok bool)
}

// Candidates are tried in priority order; the first to yield records wins.
var candidates = []candidate{
	{"pageProps.searchResult", probeSearchResult},
	{"pageProps.searchResults", probeSearchResults},
	{"pageProps.search", probeSearch},
	{"pageProps.listings", probeBareListings},
	{"searchResult", probeRootSearchResult},
}

// Extractor pulls raw records and the reported total from a page document.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract decodes the page's embedded data document and probes the candidate
// shapes. On any structural failure it returns an empty Result; it falls back
// to scanning the rendered text when no candidate resolves a total.
func (e *Extractor) Extract(page listing.PageDocument) Result {
	var res Result

	doc := e.decodeEmbedded(page.HTML)
	if doc != nil {
		for _, c := range candidates {
			total, rawList, ok := c.probe(doc)
			if total != nil && res.Total == nil {
				res.Total = total
			}
			if !ok {
				continue
			}
			res.Path = c.name
			res.Records = make([]listing.RawRecord, 0, len(rawList))
			for _, item := range rawList {
				if m, isMap := item.(map[string]any); isMap {
					res.Records = append(res.Records, m)
				}
			}
			break
		}
	}

	if res.Total == nil {
		res.Total = totalFromRenderedText(page.HTML)
	}

	if res.Path != "" {
		e.logger.Debug("extracted records",
			zap.String("candidate", res.Path),
			zap.Int("records", len(res.Records)),
		)
	} else {
		e.logger.Debug("no candidate path yielded records", zap.String("url", page.URL))
	}
	return res
}

// decodeEmbedded parses the HTML and unmarshals the embedded data script.
// Returns nil when the script is absent or not valid JSON.
func (e *Extractor) decodeEmbedded(html []byte) map[string]any {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	text := gq.Find(embeddedDataSelector).First().Text()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		e.logger.Debug("embedded data is not valid JSON", zap.Error(err))
		return nil
	}
	return doc
}

func pageProps(doc map[string]any) map[string]any {
	return asMap(asMap(doc["props"])["pageProps"])
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func probeSearchResult(doc map[string]any) (*int, []any, bool) {
	return probeResultContainer(asMap(pageProps(doc)["searchResult"]))
}

func probeRootSearchResult(doc map[string]any) (*int, []any, bool) {
	return probeResultContainer(asMap(doc["searchResult"]))
}

func probeResultContainer(sr map[string]any) (*int, []any, bool) {
	if sr == nil {
		return nil, nil, false
	}
	meta := asMap(sr["meta"])
	total := firstTotal(meta, "total_count", "total", "count")
	records := firstList(sr, "listings", "results", "data")
	return total, records, len(records) > 0
}

func probeSearchResults(doc map[string]any) (*int, []any, bool) {
	srr := asMap(pageProps(doc)["searchResults"])
	if srr == nil {
		return nil, nil, false
	}
	total := firstTotal(srr, "totalCount", "total", "count")
	records := firstList(srr, "results", "data", "listings")
	return total, records, len(records) > 0
}

func probeSearch(doc map[string]any) (*int, []any, bool) {
	search := asMap(pageProps(doc)["search"])
	if search == nil {
		return nil, nil, false
	}
	total := firstTotal(search, "totalCount", "total")
	records := firstList(search, "results", "data", "listings")
	return total, records, len(records) > 0
}

func probeBareListings(doc map[string]any) (*int, []any, bool) {
	props := pageProps(doc)
	records, isList := props["listings"].([]any)
	if !isList || len(records) == 0 {
		return nil, nil, false
	}
	total := firstTotal(props, "totalCount", "total")
	if total == nil {
		n := len(records)
		total = &n
	}
	return total, records, true
}

func firstList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if list, ok := m[k].([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

func firstTotal(m map[string]any, keys ...string) *int {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if total := coerceTotal(v); total != nil {
				return total
			}
		}
	}
	return nil
}

// coerceTotal parses count values that may arrive as numbers or as strings
// with thousands separators. Parse failure yields nil, never an error.
func coerceTotal(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case int:
		return &t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n := int(i)
			return &n
		}
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if i, err := strconv.Atoi(cleaned); err == nil {
			return &i
		}
	}
	return nil
}

// Marker patterns for the rendered-text fallback: a results-count label, a
// digit group adjacent to the "properties" word, and the page-title pattern.
var totalMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)aria-label=["']Search results count["'][^>]*>\s*([0-9,]+)\s*propert`),
	regexp.MustCompile(`(?is)Properties for sale.*?([0-9,]+)\s*propert`),
	regexp.MustCompile(`(?i)([0-9,]+)\s*Propert(?:y|ies) for sale`),
}

func totalFromRenderedText(html []byte) *int {
	for _, re := range totalMarkers {
		if m := re.FindSubmatch(html); m != nil {
			if total := coerceTotal(string(m[1])); total != nil {
				return total
			}
		}
	}
	return nil
}
