package listing

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrQueueFull is returned by RunQueue.Enqueue when the admission queue is at
// capacity; callers translate it into backpressure.
var ErrQueueFull = errors.New("run queue full")

// PageFetcher retrieves one result page from the remote source. It must
// return an explicit error on network failure, never a silently empty
// document, and must error on a sort order it cannot request.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int, sort SortOrder) (PageDocument, error)
}

// RecordStore is the batch persistence port. The crawl loop keeps at most one
// InsertBatch call outstanding at a time within one run.
type RecordStore interface {
	BeginRun(ctx context.Context, cutoffDays int) (string, error)
	InsertBatch(ctx context.Context, runID string, records []Record) error
	FinalizeRun(ctx context.Context, runID string, sourceTotal *int, ingested int) error
}

// JobStore holds pollable job progress. One concurrent writer (the crawl
// goroutine) and many readers.
type JobStore interface {
	Create(job Job) error
	Get(id string) (Job, bool)
	Update(id string, mutate func(*Job))
	Evict(now time.Time)
}

// BlobStore archives raw page artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher announces run completions to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// StartRequest is a crawl admission ticket placed on the run queue.
type StartRequest struct {
	JobID     string
	Params    CrawlParams
	Submitted int64
}

// RunQueue provides enqueue/dequeue semantics for crawl admissions.
type RunQueue interface {
	Enqueue(ctx context.Context, req StartRequest) error
	Dequeue(ctx context.Context) (StartRequest, error)
}
