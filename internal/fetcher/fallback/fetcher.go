// Package fallback promotes shell pages from the plain HTTP fetcher to a
// headless re-fetch.
package fallback

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/homescan/listing-crawler/internal/headless/detector"
	"github.com/homescan/listing-crawler/internal/listing"
)

// Fetcher tries the primary fetcher first and re-fetches with the headless
// fetcher when the response looks like an unrendered shell.
type Fetcher struct {
	primary  listing.PageFetcher
	headless listing.PageFetcher
	detect   *detector.Heuristic
	logger   *zap.Logger
}

// New wires the two fetchers behind the promotion heuristic. detect may be
// nil, in which case a default heuristic is used.
func New(primary, headless listing.PageFetcher, detect *detector.Heuristic, logger *zap.Logger) *Fetcher {
	if detect == nil {
		detect = detector.NewHeuristic()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{primary: primary, headless: headless, detect: detect, logger: logger}
}

// FetchPage fetches one result page, re-fetching headless when the primary
// response carries no extractable payload. A failed promotion is an error:
// the shell page it would paper over has no listings, and completing a run
// on it would silently report an empty source.
func (f *Fetcher) FetchPage(ctx context.Context, page int, sort listing.SortOrder) (listing.PageDocument, error) {
	doc, err := f.primary.FetchPage(ctx, page, sort)
	if err != nil {
		return listing.PageDocument{}, err
	}
	if !f.detect.ShouldPromote(doc) {
		return doc, nil
	}

	f.logger.Info("promoting page to headless fetch",
		zap.Int("page", page),
		zap.Int("body_bytes", len(doc.HTML)),
	)
	rendered, err := f.headless.FetchPage(ctx, page, sort)
	if err != nil {
		return listing.PageDocument{}, fmt.Errorf("headless promotion of page %d: %w", page, err)
	}
	return rendered, nil
}
