// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homescan/listing-crawler/internal/listing"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// recordColumns lists the listings table columns in the declared field order
// of listing.Record, derived from its json tags so the two never drift.
var recordColumns = func() []string {
	t := reflect.TypeOf(listing.Record{})
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		cols = append(cols, tag)
	}
	return cols
}()

// RecordStoreConfig controls the Postgres connection pool used for run and
// listing rows.
type RecordStoreConfig struct {
	DSN             string
	RunsTable       string
	ListingsTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore persists crawl runs and their normalized listings.
type RecordStore struct {
	pool     execCloser
	runs     string
	listings string
	ids      listing.IDGenerator
	clock    listing.Clock
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig, ids listing.IDGenerator, clock listing.Clock) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newRecordStore(pool, cfg.RunsTable, cfg.ListingsTable, ids, clock)
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewRecordStoreWithPool(pool execCloser, runsTable, listingsTable string, ids listing.IDGenerator, clock listing.Clock) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newRecordStore(pool, runsTable, listingsTable, ids, clock)
}

func newRecordStore(pool execCloser, runsTable, listingsTable string, ids listing.IDGenerator, clock listing.Clock) (*RecordStore, error) {
	if runsTable == "" {
		runsTable = "runs"
	}
	if listingsTable == "" {
		listingsTable = "buy_listings"
	}
	for _, table := range []string{runsTable, listingsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &RecordStore{
		pool:     pool,
		runs:     runsTable,
		listings: listingsTable,
		ids:      ids,
		clock:    clock,
	}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// BeginRun inserts a new run row and returns its id.
func (s *RecordStore) BeginRun(ctx context.Context, cutoffDays int) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("record store is not configured")
	}
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	started_at,
	recency_cutoff_days,
	records_ingested_count
) VALUES ($1,$2,$3,$4)`, s.runs)
	if _, err := s.pool.Exec(ctx, query, id, s.clock.Now().UTC(), cutoffDays, 0); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// InsertBatch writes a batch of listings in one multi-row insert, stamping
// each row with the owning run id. An empty batch is a no-op.
func (s *RecordStore) InsertBatch(ctx context.Context, runID string, records []listing.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", s.listings, strings.Join(recordColumns, ", "))
	args := make([]any, 0, len(records)*len(recordColumns))
	for i, rec := range records {
		rec.RunID = runID
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		v := reflect.ValueOf(rec)
		for j := 0; j < v.NumField(); j++ {
			if j > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", len(args)+1)
			args = append(args, v.Field(j).Interface())
		}
		sb.WriteByte(')')
	}

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert listings: %w", err)
	}
	return nil
}

// FinalizeRun records the run's final counters and finish time.
func (s *RecordStore) FinalizeRun(ctx context.Context, runID string, sourceTotal *int, ingested int) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	reported_source_total = $1,
	records_ingested_count = $2,
	finished_at = $3
WHERE id = $4`, s.runs)
	tag, err := s.pool.Exec(ctx, query, sourceTotal, ingested, s.clock.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize run: run %q not found", runID)
	}
	return nil
}
