// Package memstore provides an in-memory implementation of signal.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

// Store holds signals in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	signals map[string]*signal.Signal
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		signals: make(map[string]*signal.Signal),
	}
}

// Get retrieves a signal by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*signal.Signal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, false, nil
	}
	cp := *sig
	return &cp, true, nil
}

// Put stores a copy of the signal.
func (s *Store) Put(_ context.Context, sig *signal.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sig
	s.signals[sig.ID] = &cp
	return nil
}

// Delete removes a signal. Absent ids are a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signals, id)
	return nil
}

// ListNew returns new signals ordered by priority ascending then created_at
// descending, limited to limit.
func (s *Store) ListNew(_ context.Context, priorities []signal.Priority, limit int) ([]*signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := map[signal.Priority]bool{}
	for _, p := range priorities {
		allowed[p] = true
	}

	var out []*signal.Signal
	for _, sig := range s.signals {
		if sig.Status != signal.StatusNew {
			continue
		}
		if len(allowed) > 0 && !allowed[sig.Priority] {
			continue
		}
		cp := *sig
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListArchivable returns resolved signals validated before cutoff, oldest first.
func (s *Store) ListArchivable(_ context.Context, cutoff time.Time, limit int) ([]*signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*signal.Signal
	for _, sig := range s.signals {
		if sig.Status != signal.StatusValidated && sig.Status != signal.StatusDismissed {
			continue
		}
		if sig.ValidatedAt == nil || !sig.ValidatedAt.Before(cutoff) {
			continue
		}
		cp := *sig
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ValidatedAt.Before(*out[j].ValidatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteIDs removes exactly the given ids.
func (s *Store) DeleteIDs(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := s.signals[id]; ok {
			delete(s.signals, id)
			n++
		}
	}
	return n, nil
}

// DeleteStaleBefore removes non-validated signals created before cutoff.
func (s *Store) DeleteStaleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sig := range s.signals {
		if sig.Status == signal.StatusValidated {
			continue
		}
		if sig.CreatedAt.Before(cutoff) {
			delete(s.signals, id)
			n++
		}
	}
	return n, nil
}

// RetentionStats reports row counts grouped by creation date and status.
func (s *Store) RetentionStats(_ context.Context) ([]signal.RetentionStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		date   string
		status signal.Status
	}
	counts := map[key]int64{}
	for _, sig := range s.signals {
		counts[key{sig.CreatedAt.UTC().Format("2006-01-02"), sig.Status}]++
	}

	out := make([]signal.RetentionStat, 0, len(counts))
	for k, c := range counts {
		out = append(out, signal.RetentionStat{Date: k.date, Status: k.status, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// CountValidated returns the number of validated rows.
func (s *Store) CountValidated(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, sig := range s.signals {
		if sig.Status == signal.StatusValidated {
			n++
		}
	}
	return n, nil
}
