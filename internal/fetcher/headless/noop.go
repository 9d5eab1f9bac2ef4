package headless

import (
	"context"
	"errors"

	"github.com/homescan/listing-crawler/internal/listing"
)

// Noop implements PageFetcher but always returns an error, for deployments
// where headless browsing is disabled.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// FetchPage returns an error since this is a stub implementation.
func (Noop) FetchPage(_ context.Context, _ int, _ listing.SortOrder) (listing.PageDocument, error) {
	return listing.PageDocument{}, errors.New("headless fetcher not configured")
}
