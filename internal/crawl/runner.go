// Package crawl drives the page fetch → extract → normalize → recency-gate →
// flush pipeline for one run.
package crawl

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/homescan/listing-crawler/internal/extract"
	"github.com/homescan/listing-crawler/internal/hash/sha256"
	"github.com/homescan/listing-crawler/internal/listing"
	"github.com/homescan/listing-crawler/internal/metrics"
	"github.com/homescan/listing-crawler/internal/normalize"
	"github.com/homescan/listing-crawler/internal/recency"
)

// Config controls Runner behavior.
type Config struct {
	// BatchSize is the fixed persistence batch; a batch is flushed the moment
	// it fills, independent of page boundaries.
	BatchSize int
	// PageDelay is the politeness delay between page fetches.
	PageDelay time.Duration
	// DefaultMaxRecords is the documented fallback cap applied when the
	// caller supplies none.
	DefaultMaxRecords int
	// ArchivePrefix, when a blob store is wired, prefixes raw page object
	// paths.
	ArchivePrefix string
	// Topic names the completion-event topic; empty disables publishing.
	Topic string
}

// Runner executes crawl runs. One Runner is shared by all crawl workers; all
// per-run state lives on the stack of Run.
type Runner struct {
	fetcher   listing.PageFetcher
	extractor *extract.Extractor
	records   listing.RecordStore
	jobs      listing.JobStore
	blobs     listing.BlobStore
	publisher listing.Publisher
	clock     listing.Clock
	pause     pauseController
	hasher    *sha256.Hasher
	logger    *zap.Logger
	cfg       Config
}

// New constructs a Runner. blobs and publisher are optional.
func New(
	fetcher listing.PageFetcher,
	extractor *extract.Extractor,
	records listing.RecordStore,
	jobs listing.JobStore,
	blobs listing.BlobStore,
	publisher listing.Publisher,
	clock listing.Clock,
	logger *zap.Logger,
	cfg Config,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.DefaultMaxRecords <= 0 {
		cfg.DefaultMaxRecords = 10000
	}
	return &Runner{
		fetcher:   fetcher,
		extractor: extractor,
		records:   records,
		jobs:      jobs,
		blobs:     blobs,
		publisher: publisher,
		clock:     clock,
		pause:     timerPauseController{},
		hasher:    sha256.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Run crawls pages newest-first until a stop condition fires, flushing
// records in fixed batches. Any fetch or persistence error aborts the run:
// a visible incomplete run beats silent partial data.
func (r *Runner) Run(ctx context.Context, jobID string, params listing.CrawlParams) {
	maxRecords := params.MaxRecords
	if maxRecords <= 0 {
		maxRecords = r.cfg.DefaultMaxRecords
	}

	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	r.jobs.Update(jobID, func(j *listing.Job) {
		j.Status = listing.JobStatusRunning
	})
	r.log(jobID, "Starting crawl run...")

	runID, err := r.records.BeginRun(ctx, params.CutoffDays)
	if err != nil {
		r.abort(jobID, fmt.Errorf("begin run: %w", err))
		return
	}
	r.logger.Info("run started",
		zap.String("job_id", jobID),
		zap.String("run_id", runID),
		zap.Int("cutoff_days", params.CutoffDays),
		zap.Int("max_records", maxRecords),
	)

	batch := make([]listing.Record, 0, r.cfg.BatchSize)
	ingested := 0
	var sourceTotal *int
	var outcome listing.Outcome

pages:
	for page := 1; ; page++ {
		r.log(jobID, fmt.Sprintf("Fetching page %d...", page))

		doc, err := r.fetcher.FetchPage(ctx, page, listing.SortNewestFirst)
		if err != nil {
			r.abort(jobID, fmt.Errorf("fetch page %d: %w", page, err))
			return
		}
		r.jobs.Update(jobID, func(j *listing.Job) { j.PagesFetched = page })
		metrics.ObservePage(len(doc.HTML))
		r.archivePage(ctx, runID, page, doc)

		res := r.extractor.Extract(doc)
		if res.Total != nil && sourceTotal == nil {
			sourceTotal = res.Total
			r.jobs.Update(jobID, func(j *listing.Job) { j.SourceTotal = res.Total })
		}
		if len(res.Records) == 0 {
			r.log(jobID, fmt.Sprintf("Page %d returned no listings; source exhausted", page))
			outcome = listing.OutcomeCompleted
			break
		}

		for _, raw := range res.Records {
			rec := normalize.Normalize(raw)
			listedAt, timeAgo := normalize.AgeFields(raw)
			age := recency.AgeInDays(listedAt, timeAgo, r.clock.Now())
			if age != nil && *age > float64(params.CutoffDays) {
				// Partial-page stop: listings accumulated before this one
				// are kept, the rest of the page is discarded.
				r.log(jobID, fmt.Sprintf(
					"Found listing older than %d days on page %d; stopping", params.CutoffDays, page))
				outcome = listing.OutcomeStoppedEarly
				break pages
			}

			batch = append(batch, rec)
			ingested++
			if len(batch) == r.cfg.BatchSize {
				if err := r.flush(ctx, jobID, runID, batch); err != nil {
					r.abort(jobID, err)
					return
				}
				batch = batch[:0]
			}
			if ingested >= maxRecords {
				r.log(jobID, fmt.Sprintf("Reached record cap of %d; stopping", maxRecords))
				outcome = listing.OutcomeCompleted
				break pages
			}
		}

		r.jobs.Update(jobID, func(j *listing.Job) { j.RecordsIngested = ingested - len(batch) })
		r.log(jobID, fmt.Sprintf("Page %d processed - %d listings so far", page, ingested))
		r.pause.Pause(ctx, r.cfg.PageDelay)
	}

	if len(batch) > 0 {
		if err := r.flush(ctx, jobID, runID, batch); err != nil {
			r.abort(jobID, err)
			return
		}
	}

	if err := r.records.FinalizeRun(ctx, runID, sourceTotal, ingested); err != nil {
		r.abort(jobID, fmt.Errorf("finalize run: %w", err))
		return
	}

	r.publishCompletion(ctx, runID, outcome, ingested, sourceTotal)
	metrics.ObserveRun(string(outcome))

	now := r.clock.Now()
	r.jobs.Update(jobID, func(j *listing.Job) {
		j.Status = listing.JobStatusComplete
		j.Outcome = outcome
		j.RecordsIngested = ingested
		j.CurrentAction = "Crawl complete"
		j.CompletedAt = &now
	})
	r.log(jobID, fmt.Sprintf("Crawl complete: %d listings ingested (%s)", ingested, outcome))
	r.logger.Info("run finished",
		zap.String("job_id", jobID),
		zap.String("run_id", runID),
		zap.String("outcome", string(outcome)),
		zap.Int("ingested", ingested),
	)
}

// flush hands one bounded batch to the persistence port. The runner never
// overlaps batch inserts within a run.
func (r *Runner) flush(ctx context.Context, jobID, runID string, batch []listing.Record) error {
	if err := r.records.InsertBatch(ctx, runID, batch); err != nil {
		return fmt.Errorf("insert batch of %d: %w", len(batch), err)
	}
	metrics.ObserveBatch(len(batch))
	r.jobs.Update(jobID, func(j *listing.Job) { j.RecordsIngested += len(batch) })
	return nil
}

// archivePage stores the raw page body for post-hoc re-extraction after
// source shape drift. Archiving is supplementary: failure is logged, not
// fatal.
func (r *Runner) archivePage(ctx context.Context, runID string, page int, doc listing.PageDocument) {
	if r.blobs == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/page-%d.html", r.cfg.ArchivePrefix, runID, page)
	if r.cfg.ArchivePrefix == "" {
		path = fmt.Sprintf("%s/page-%d.html", runID, page)
	}
	uri, err := r.blobs.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(doc.HTML))
	if err != nil {
		r.logger.Warn("page archive failed", zap.String("run_id", runID), zap.Int("page", page), zap.Error(err))
		return
	}
	r.logger.Debug("page archived",
		zap.String("uri", uri),
		zap.String("sha256", r.hasher.Hash(doc.HTML)),
	)
}

func (r *Runner) publishCompletion(ctx context.Context, runID string, outcome listing.Outcome, ingested int, total *int) {
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"run_id":                runID,
		"outcome":               string(outcome),
		"records_ingested":      ingested,
		"reported_source_total": total,
		"finished_at":           r.clock.Now().Format(time.RFC3339),
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, payload); err != nil {
		r.logger.Warn("completion publish failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// abort ends the run with status error, preserving the root cause for the
// polling caller. Failing pages are not retried.
func (r *Runner) abort(jobID string, err error) {
	now := r.clock.Now()
	r.jobs.Update(jobID, func(j *listing.Job) {
		j.Status = listing.JobStatusError
		j.Outcome = listing.OutcomeAborted
		j.ErrorText = err.Error()
		j.CurrentAction = "Crawl failed"
		j.CompletedAt = &now
	})
	r.log(jobID, "Error: "+err.Error())
	metrics.ObserveRun(string(listing.OutcomeAborted))
	r.logger.Error("run aborted", zap.String("job_id", jobID), zap.Error(err))
}

// log appends a bounded, timestamped trail entry and mirrors it into
// current_action for the progress poller.
func (r *Runner) log(jobID, message string) {
	at := r.clock.Now()
	r.jobs.Update(jobID, func(j *listing.Job) {
		j.CurrentAction = message
		j.Log = append(j.Log, listing.LogEntry{At: at, Message: message})
	})
}
