package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homescan/listing-crawler/internal/extract"
	"github.com/homescan/listing-crawler/internal/listing"
	"github.com/homescan/listing-crawler/internal/progress"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

// fakeFetcher serves fixture pages and fails the test if an unexpected page
// index is requested.
type fakeFetcher struct {
	t     *testing.T
	pages map[int]listing.PageDocument
	errAt map[int]error
	calls []int
}

func (f *fakeFetcher) FetchPage(_ context.Context, page int, sort listing.SortOrder) (listing.PageDocument, error) {
	f.t.Helper()
	if sort != listing.SortNewestFirst {
		f.t.Fatalf("fetch must request newest-first ordering, got %q", sort)
	}
	f.calls = append(f.calls, page)
	if err, ok := f.errAt[page]; ok {
		return listing.PageDocument{}, err
	}
	doc, ok := f.pages[page]
	if !ok {
		f.t.Fatalf("unexpected fetch of page %d", page)
	}
	return doc, nil
}

// fakeRecordStore captures batches in arrival order.
type fakeRecordStore struct {
	begun      bool
	cutoff     int
	batches    [][]listing.Record
	finalized  bool
	finalTotal *int
	finalCount int
	insertErr  error
}

func (s *fakeRecordStore) BeginRun(context.Context, int) (string, error) {
	s.begun = true
	return "run-1", nil
}

func (s *fakeRecordStore) InsertBatch(_ context.Context, _ string, records []listing.Record) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	batch := make([]listing.Record, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeRecordStore) FinalizeRun(_ context.Context, _ string, total *int, count int) error {
	s.finalized = true
	s.finalTotal = total
	s.finalCount = count
	return nil
}

func youngRecord(id int) map[string]any {
	return map[string]any{
		"id":          fmt.Sprintf("%d", id),
		"title":       fmt.Sprintf("listing %d", id),
		"listed_date": fixedNow.Add(-6 * time.Hour).Format(time.RFC3339),
	}
}

func agedRecord(id int, days float64) map[string]any {
	return map[string]any{
		"id":          fmt.Sprintf("%d", id),
		"listed_date": fixedNow.Add(-time.Duration(days*24) * time.Hour).Format(time.RFC3339),
	}
}

func fixturePage(t *testing.T, total int, records []map[string]any) listing.PageDocument {
	t.Helper()
	doc := map[string]any{
		"props": map[string]any{"pageProps": map[string]any{
			"searchResult": map[string]any{
				"meta":     map[string]any{"total_count": total},
				"listings": toAnySlice(records),
			},
		}},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	html := fmt.Sprintf(`<script id="__NEXT_DATA__" type="application/json">%s</script>`, raw)
	return listing.PageDocument{URL: "https://example.test/buy", HTML: []byte(html)}
}

func emptyPage(t *testing.T) listing.PageDocument {
	t.Helper()
	return fixturePage(t, 0, nil)
}

func toAnySlice(records []map[string]any) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

func newTestRunner(t *testing.T, fetcher listing.PageFetcher, store *fakeRecordStore, jobs listing.JobStore, cfg Config) *Runner {
	t.Helper()
	r := New(
		fetcher,
		extract.New(zap.NewNop()),
		store,
		jobs,
		nil,
		nil,
		fixedClock{fixedNow},
		zap.NewNop(),
		cfg,
	)
	r.pause = noPause{}
	return r
}

func newJob(t *testing.T, jobs *progress.Store, id string) {
	t.Helper()
	require.NoError(t, jobs.Create(listing.Job{
		ID:        id,
		Status:    listing.JobStatusPending,
		CreatedAt: fixedNow,
	}))
}

func TestRunStopsOnStaleRecordMidPage(t *testing.T) {
	t.Parallel()

	page1 := make([]map[string]any, 0, 10)
	for i := 0; i < 10; i++ {
		page1 = append(page1, youngRecord(i))
	}
	page2 := make([]map[string]any, 0, 8)
	for i := 10; i < 15; i++ {
		page2 = append(page2, youngRecord(i))
	}
	page2 = append(page2, agedRecord(15, 5)) // older than the 2-day cutoff
	page2 = append(page2, youngRecord(16), youngRecord(17))

	fetcher := &fakeFetcher{t: t, pages: map[int]listing.PageDocument{
		1: fixturePage(t, 8957, page1),
		2: fixturePage(t, 8957, page2),
		// page 3 intentionally absent: fetching it fails the test
	}}
	store := &fakeRecordStore{}
	jobs := progress.New(progress.Config{})
	newJob(t, jobs, "job-1")

	runner := newTestRunner(t, fetcher, store, jobs, Config{})
	runner.Run(context.Background(), "job-1", listing.CrawlParams{CutoffDays: 2, MaxRecords: 1000})

	job, ok := jobs.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, listing.JobStatusComplete, job.Status)
	assert.Equal(t, listing.OutcomeStoppedEarly, job.Outcome)
	assert.Equal(t, 15, job.RecordsIngested, "records before the stale one are kept")
	assert.Equal(t, 2, job.PagesFetched)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.SourceTotal)
	assert.Equal(t, 8957, *job.SourceTotal)
	assert.Equal(t, []int{1, 2}, fetcher.calls)

	assert.True(t, store.finalized)
	assert.Equal(t, 15, store.finalCount)
	total := 0
	for _, b := range store.batches {
		total += len(b)
	}
	assert.Equal(t, 15, total)
}

func TestRunStopsAtRecordCapWithoutSecondFetch(t *testing.T) {
	t.Parallel()

	page1 := make([]map[string]any, 0, 10)
	for i := 0; i < 10; i++ {
		page1 = append(page1, youngRecord(i))
	}
	fetcher := &fakeFetcher{t: t, pages: map[int]listing.PageDocument{
		1: fixturePage(t, 100, page1),
	}}
	store := &fakeRecordStore{}
	jobs := progress.New(progress.Config{})
	newJob(t, jobs, "job-1")

	runner := newTestRunner(t, fetcher, store, jobs, Config{})
	runner.Run(context.Background(), "job-1", listing.CrawlParams{CutoffDays: 2, MaxRecords: 7})

	job, _ := jobs.Get("job-1")
	assert.Equal(t, listing.JobStatusComplete, job.Status)
	assert.Equal(t, listing.OutcomeCompleted, job.Outcome, "cap reached is a success")
	assert.Equal(t, 7, job.RecordsIngested)
	assert.Equal(t, []int{1}, fetcher.calls, "no second page fetch after the cap")
	assert.Equal(t, 7, store.finalCount)
}

func TestRunAbortsOnFetchError(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{t: t, errAt: map[int]error{1: errors.New("connection reset")}}
	store := &fakeRecordStore{}
	jobs := progress.New(progress.Config{})
	newJob(t, jobs, "job-1")

	runner := newTestRunner(t, fetcher, store, jobs, Config{})
	runner.Run(context.Background(), "job-1", listing.CrawlParams{CutoffDays: 2, MaxRecords: 100})

	job, _ := jobs.Get("job-1")
	assert.Equal(t, listing.JobStatusError, job.Status)
	assert.Equal(t, listing.OutcomeAborted, job.Outcome)
	assert.Equal(t, 0, job.RecordsIngested)
	assert.Contains(t, job.ErrorText, "connection reset")
	require.NotNil(t, job.CompletedAt)
	assert.False(t, store.finalized, "aborted runs are not finalized")
}

func TestRunAbortsOnPersistenceError(t *testing.T) {
	t.Parallel()

	page1 := []map[string]any{youngRecord(1), youngRecord(2)}
	fetcher := &fakeFetcher{t: t, pages: map[int]listing.PageDocument{
		1: fixturePage(t, 2, page1),
		2: emptyPage(t),
	}}
	store := &fakeRecordStore{insertErr: errors.New("insert failed")}
	jobs := progress.New(progress.Config{})
	newJob(t, jobs, "job-1")

	runner := newTestRunner(t, fetcher, store, jobs, Config{})
	runner.Run(context.Background(), "job-1", listing.CrawlParams{CutoffDays: 2, MaxRecords: 100})

	job, _ := jobs.Get("job-1")
	assert.Equal(t, listing.JobStatusError, job.Status)
	assert.Contains(t, job.ErrorText, "insert failed")
}

func TestBatchesFlushInFixedSizesAndOrder(t *testing.T) {
	t.Parallel()

	page1 := make([]map[string]any, 0, 12)
	for i := 0; i < 12; i++ {
		page1 = append(page1, youngRecord(i))
	}
	fetcher := &fakeFetcher{t: t, pages: map[int]listing.PageDocument{
		1: fixturePage(t, 12, page1),
		2: emptyPage(t),
	}}
	store := &fakeRecordStore{}
	jobs := progress.New(progress.Config{})
	newJob(t, jobs, "job-1")

	runner := newTestRunner(t, fetcher, store, jobs, Config{BatchSize: 5})
	runner.Run(context.Background(), "job-1", listing.CrawlParams{CutoffDays: 2, MaxRecords: 100})

	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 5)
	assert.Len(t, store.batches[1], 5)
	assert.Len(t, store.batches[2], 2)

	// Batches arrive in source order.
	first := store.batches[0][0]
	require.NotNil(t, first.PropertyID)
	assert.Equal(t, "0", *first.PropertyID)
	last := store.batches[2][1]
	require.NotNil(t, last.PropertyID)
	assert.Equal(t, "11", *last.PropertyID)

	job, _ := jobs.Get("job-1")
	assert.Equal(t, 12, job.RecordsIngested)
	assert.Equal(t, listing.OutcomeCompleted, job.Outcome)
}

func TestEmptyFirstPageCompletesWithZeroRecords(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{t: t, pages: map[int]listing.PageDocument{1: emptyPage(t)}}
	store := &fakeRecordStore{}
	jobs := progress.New(progress.Config{})
	newJob(t, jobs, "job-1")

	runner := newTestRunner(t, fetcher, store, jobs, Config{})
	runner.Run(context.Background(), "job-1", listing.CrawlParams{CutoffDays: 2, MaxRecords: 100})

	job, _ := jobs.Get("job-1")
	assert.Equal(t, listing.JobStatusComplete, job.Status)
	assert.Equal(t, listing.OutcomeCompleted, job.Outcome)
	assert.Equal(t, 0, job.RecordsIngested)
	assert.True(t, store.finalized)
	assert.Equal(t, 0, store.finalCount)
}

func TestUnknownAgeRecordsAreIngestedNotStoppedOn(t *testing.T) {
	t.Parallel()

	page1 := []map[string]any{
		{"id": "1", "time_ago": "coming soon"}, // unknown age
		youngRecord(2),
	}
	fetcher := &fakeFetcher{t: t, pages: map[int]listing.PageDocument{
		1: fixturePage(t, 2, page1),
		2: emptyPage(t),
	}}
	store := &fakeRecordStore{}
	jobs := progress.New(progress.Config{})
	newJob(t, jobs, "job-1")

	runner := newTestRunner(t, fetcher, store, jobs, Config{})
	runner.Run(context.Background(), "job-1", listing.CrawlParams{CutoffDays: 2, MaxRecords: 100})

	job, _ := jobs.Get("job-1")
	assert.Equal(t, 2, job.RecordsIngested)
	assert.Equal(t, listing.OutcomeCompleted, job.Outcome)
}
