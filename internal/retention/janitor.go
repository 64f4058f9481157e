// Package retention provides the Retention Janitor: a scheduled destructive
// sweep that deletes every signal created before the start of the current
// UTC day unless it reached validated. It runs independently of triage; the
// operator is responsible for triaging frequently enough relative to this
// schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

// Hooks are optional observability callbacks, wired to Prometheus by main.
type Hooks struct {
	OnRun     func()
	OnDeleted func(n int64)
}

// Report is the audit record of one cleanup run.
type Report struct {
	Deleted            int64                  `json:"deleted"`
	ValidatedPreserved int64                  `json:"validated_preserved"`
	StatsBefore        []signal.RetentionStat `json:"stats_before"`
	StatsAfter         []signal.RetentionStat `json:"stats_after"`
}

// Janitor reclaims primary-store space from stale, never-validated signals.
type Janitor struct {
	store  signal.Store
	logger log.Logger
	hooks  Hooks

	now func() time.Time // test hook
}

// NewJanitor creates a janitor.
func NewJanitor(store signal.Store, logger log.Logger, hooks Hooks) *Janitor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Janitor{
		store:  store,
		logger: logger,
		hooks:  hooks,
		now:    time.Now,
	}
}

// Cleanup deletes every signal with created_at before UTC midnight of the
// current day and status other than validated. Running it twice in
// succession deletes nothing the second time: the predicate re-evaluates
// against the already-reduced dataset.
func (j *Janitor) Cleanup(ctx context.Context) (*Report, error) {
	if j.hooks.OnRun != nil {
		j.hooks.OnRun()
	}

	cutoff := startOfDayUTC(j.now())

	before, err := j.store.RetentionStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("retention stats before: %w", err)
	}

	deleted, err := j.store.DeleteStaleBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete stale: %w", err)
	}

	after, err := j.store.RetentionStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("retention stats after: %w", err)
	}

	preserved, err := j.store.CountValidated(ctx)
	if err != nil {
		return nil, fmt.Errorf("count validated: %w", err)
	}

	if j.hooks.OnDeleted != nil && deleted > 0 {
		j.hooks.OnDeleted(deleted)
	}

	j.logger.Info(ctx, "retention cleanup complete",
		"cutoff", cutoff.Format(time.RFC3339),
		"deleted", deleted,
		"validated_preserved", preserved,
	)

	return &Report{
		Deleted:            deleted,
		ValidatedPreserved: preserved,
		StatsBefore:        before,
		StatsAfter:         after,
	}, nil
}

// Stats returns the read-only (date, status) breakdown without deleting.
func (j *Janitor) Stats(ctx context.Context) ([]signal.RetentionStat, error) {
	return j.store.RetentionStats(ctx)
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
