// Package archive provides the Archival Synchronizer: it copies aged,
// resolved signals into the secondary cold store via idempotent upsert and
// optionally deletes the successfully synced rows from the primary store.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

const (
	// MaxBatchSize bounds one sync invocation.
	MaxBatchSize = 1000

	// DefaultBatchSize applies when the caller omits or botches the size.
	DefaultBatchSize = 500

	// DefaultAgeDays is how long a resolved signal stays in the primary
	// store before it becomes eligible for archival.
	DefaultAgeDays = 7
)

// Record is the denormalized cold-store projection of a signal. It is
// created and updated only by the synchronizer.
type Record struct {
	signal.Signal
	SyncedAt time.Time `json:"synced_at"`
}

// Sink is the cold-store interface.
type Sink interface {
	// EnsureSchema idempotently creates the archive table and its indexes.
	EnsureSchema(ctx context.Context) error

	// Upsert writes one record keyed by signal id. Re-syncing an already
	// archived signal updates the mutable fields and synced_at without
	// duplication or error.
	Upsert(ctx context.Context, rec *Record) error
}

// Hooks are optional observability callbacks, wired to Prometheus by main.
type Hooks struct {
	OnSynced  func(n int)
	OnDeleted func(n int)
	OnErrors  func(n int)
}

// Params bounds one sync run.
type Params struct {
	BatchSize       int
	AgeDays         int
	DeleteAfterSync bool
}

// Result aggregates one sync run.
type Result struct {
	Synced  int `json:"synced"`
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// Synchronizer copies eligible signals from the primary store to the sink.
type Synchronizer struct {
	store  signal.Store
	sink   Sink
	logger log.Logger
	hooks  Hooks

	now func() time.Time // test hook
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(store signal.Store, sink Sink, logger log.Logger, hooks Hooks) *Synchronizer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Synchronizer{
		store:  store,
		sink:   sink,
		logger: logger,
		hooks:  hooks,
		now:    time.Now,
	}
}

// ClampBatchSize clamps n to [1, MaxBatchSize], substituting
// DefaultBatchSize for absent or invalid values.
func ClampBatchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// Sync archives one batch. A row's sync failure is counted and excluded from
// the delete-after-sync set; it never aborts the batch. The whole run fails
// only when the schema cannot be ensured or the batch cannot be selected.
func (s *Synchronizer) Sync(ctx context.Context, params Params) (*Result, error) {
	size := ClampBatchSize(params.BatchSize)
	ageDays := params.AgeDays
	if ageDays <= 0 {
		ageDays = DefaultAgeDays
	}

	if err := s.sink.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}

	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, -ageDays)

	sigs, err := s.store.ListArchivable(ctx, cutoff, size)
	if err != nil {
		return nil, fmt.Errorf("select archivable: %w", err)
	}

	L := s.logger.With("batch_size", size, "age_days", ageDays, "selected", len(sigs))
	L.Info(ctx, "archive sync selected")

	res := &Result{}
	var syncedIDs []string

	for _, sig := range sigs {
		// validated_at is the eligibility anchor; a resolved row without it
		// is malformed and is left alone rather than archived.
		if sig.ValidatedAt == nil {
			res.Skipped++
			continue
		}

		rec := &Record{Signal: *sig, SyncedAt: now}
		if err := s.sink.Upsert(ctx, rec); err != nil {
			s.logger.Error(ctx, err, "archive upsert failed", "signal_id", sig.ID)
			res.Errors++
			continue
		}
		res.Synced++
		syncedIDs = append(syncedIDs, sig.ID)
	}

	if params.DeleteAfterSync && len(syncedIDs) > 0 {
		n, err := s.store.DeleteIDs(ctx, syncedIDs)
		if err != nil {
			// Synced rows stay in the primary store; the next run re-selects
			// and re-syncs them, which the upsert makes harmless.
			s.logger.Error(ctx, err, "delete after sync failed", "ids", len(syncedIDs))
			res.Errors++
		} else {
			res.Deleted = int(n)
		}
	}

	if s.hooks.OnSynced != nil && res.Synced > 0 {
		s.hooks.OnSynced(res.Synced)
	}
	if s.hooks.OnDeleted != nil && res.Deleted > 0 {
		s.hooks.OnDeleted(res.Deleted)
	}
	if s.hooks.OnErrors != nil && res.Errors > 0 {
		s.hooks.OnErrors(res.Errors)
	}

	L.Info(ctx, "archive sync complete",
		"synced", res.Synced,
		"deleted", res.Deleted,
		"errors", res.Errors,
		"skipped", res.Skipped,
	)

	return res, nil
}
