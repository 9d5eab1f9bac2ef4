// Package progress holds pollable, in-memory job progress state.
package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/homescan/listing-crawler/internal/listing"
)

// LogCapacity bounds each job's progress log; the oldest entries are evicted
// first so a long run cannot grow it without bound.
const LogCapacity = 50

// Config controls eviction of terminal jobs.
type Config struct {
	// Retention is how long terminal jobs stay readable after completion.
	Retention time.Duration
	// MaxEntries caps the total number of jobs; the oldest are evicted first.
	MaxEntries int
}

// Store is a mutex-guarded job map. Each job has exactly one writer (its
// crawl goroutine); any number of pollers may read concurrently. Readers get
// deep-copied snapshots, so a partially-written job is never visible.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*listing.Job
	cfg  Config
}

// ErrJobExists is returned when creating a job with a duplicate ID.
var ErrJobExists = errors.New("job already exists")

// New constructs a Store.
func New(cfg Config) *Store {
	if cfg.Retention <= 0 {
		cfg.Retention = 5 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 20
	}
	return &Store{
		jobs: make(map[string]*listing.Job),
		cfg:  cfg,
	}
}

// Create registers a new job.
func (s *Store) Create(job listing.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrJobExists
	}
	stored := job
	stored.Log = append([]listing.LogEntry(nil), job.Log...)
	s.jobs[job.ID] = &stored
	return nil
}

// Get returns a snapshot of the job. The copy is safe to retain.
func (s *Store) Get(id string) (listing.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return listing.Job{}, false
	}
	snapshot := *job
	snapshot.Log = append([]listing.LogEntry(nil), job.Log...)
	return snapshot, true
}

// Update applies mutate to the stored job under the write lock. Unknown IDs
// are ignored; the crawl goroutine is the only caller for a given job.
func (s *Store) Update(id string, mutate func(*listing.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	mutate(job)
	if n := len(job.Log); n > LogCapacity {
		job.Log = append(job.Log[:0:0], job.Log[n-LogCapacity:]...)
	}
}

// Evict removes terminal jobs past the retention window and enforces the
// entry cap oldest-first. Job IDs are UUIDv7, so lexical order is creation
// order. Run opportunistically before job creation.
func (s *Store) Evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.cfg.Retention)
	for id, job := range s.jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		if job.CompletedAt == nil {
			// A terminal job always carries its completion time; repair the
			// invariant rather than evicting blind.
			ts := now
			job.CompletedAt = &ts
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}

	for len(s.jobs) > s.cfg.MaxEntries {
		oldest := ""
		for id := range s.jobs {
			if oldest == "" || id < oldest {
				oldest = id
			}
		}
		delete(s.jobs, oldest)
	}
}

// Len reports the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
