package signal

import (
	"context"
	"time"
)

// RetentionStat is one (date, status) bucket of the retention audit report.
type RetentionStat struct {
	Date   string `json:"date"`
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// Store is the persistence interface for signals in the primary store.
//
// Mutations are single-row and single-statement: no batch spans a
// transaction, so callers own per-row error isolation.
type Store interface {
	Get(ctx context.Context, id string) (*Signal, bool, error)

	// Put inserts or fully replaces a signal row.
	Put(ctx context.Context, s *Signal) error

	// Delete removes a signal. Deleting an absent id is a no-op, not an error.
	Delete(ctx context.Context, id string) error

	// ListNew returns signals with status new, optionally restricted to the
	// given priorities, ordered by priority ascending (P1 first) then
	// created_at descending, limited to limit.
	ListNew(ctx context.Context, priorities []Priority, limit int) ([]*Signal, error)

	// ListArchivable returns validated or dismissed signals whose
	// validated_at is before cutoff, oldest first, limited to limit.
	ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*Signal, error)

	// DeleteIDs removes exactly the given ids, returning how many existed.
	DeleteIDs(ctx context.Context, ids []string) (int64, error)

	// DeleteStaleBefore removes every signal created before cutoff whose
	// status is not validated, returning the number deleted.
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RetentionStats reports row counts grouped by creation date and status.
	RetentionStats(ctx context.Context) ([]RetentionStat, error)

	// CountValidated returns the number of validated rows.
	CountValidated(ctx context.Context) (int64, error)
}
