package memory

import (
	"context"
	"testing"
	"time"

	"github.com/homescan/listing-crawler/internal/listing"
)

type seqIDs struct{ n int }

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return "run-" + string(rune('0'+g.n)), nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestRecordStore() *RecordStore {
	return NewRecordStore(&seqIDs{}, fixedClock{time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)})
}

func TestRecordStoreRunLifecycle(t *testing.T) {
	t.Parallel()

	store := newTestRecordStore()
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, 3)
	if err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	title := "Apartment in Lusail"
	if err := store.InsertBatch(ctx, runID, []listing.Record{{Title: &title}, {}}); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	total := 42
	if err := store.FinalizeRun(ctx, runID, &total, 2); err != nil {
		t.Fatalf("FinalizeRun() error = %v", err)
	}

	run, ok := store.Run(runID)
	if !ok {
		t.Fatal("expected run to exist")
	}
	if run.CutoffDays != 3 || run.Ingested != 2 || run.SourceTotal == nil || *run.SourceTotal != 42 {
		t.Fatalf("unexpected run %+v", run)
	}

	records := store.Listings(runID)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.RunID != runID {
			t.Fatalf("record %d missing run id", i)
		}
	}
}

func TestRecordStoreUnknownRun(t *testing.T) {
	t.Parallel()

	store := newTestRecordStore()
	ctx := context.Background()

	if err := store.InsertBatch(ctx, "missing", []listing.Record{{}}); err == nil {
		t.Fatal("expected error inserting into unknown run")
	}
	if err := store.FinalizeRun(ctx, "missing", nil, 0); err == nil {
		t.Fatal("expected error finalizing unknown run")
	}
}
