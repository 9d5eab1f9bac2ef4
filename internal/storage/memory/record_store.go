// Package memory provides in-memory persistence implementations for
// development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/homescan/listing-crawler/internal/listing"
)

// RecordStore keeps runs and their listings in process memory.
type RecordStore struct {
	mu       sync.RWMutex
	runs     map[string]listing.Run
	listings map[string][]listing.Record
	ids      listing.IDGenerator
	clock    listing.Clock
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore(ids listing.IDGenerator, clock listing.Clock) *RecordStore {
	return &RecordStore{
		runs:     make(map[string]listing.Run),
		listings: make(map[string][]listing.Record),
		ids:      ids,
		clock:    clock,
	}
}

// BeginRun registers a new run and returns its id.
func (s *RecordStore) BeginRun(_ context.Context, cutoffDays int) (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = listing.Run{
		ID:         id,
		StartedAt:  s.clock.Now().UTC(),
		CutoffDays: cutoffDays,
	}
	return id, nil
}

// InsertBatch appends records under the run, stamping each with the run id.
func (s *RecordStore) InsertBatch(_ context.Context, runID string, records []listing.Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return errors.New("run not found")
	}
	for _, rec := range records {
		rec.RunID = runID
		s.listings[runID] = append(s.listings[runID], rec)
	}
	return nil
}

// FinalizeRun records the run's final counters.
func (s *RecordStore) FinalizeRun(_ context.Context, runID string, sourceTotal *int, ingested int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	run.SourceTotal = sourceTotal
	run.Ingested = ingested
	s.runs[runID] = run
	return nil
}

// Run returns a copy of the run row.
func (s *RecordStore) Run(runID string) (listing.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

// Listings returns a copy of the records stored under the run.
func (s *RecordStore) Listings(runID string) []listing.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]listing.Record, len(s.listings[runID]))
	copy(out, s.listings[runID])
	return out
}
