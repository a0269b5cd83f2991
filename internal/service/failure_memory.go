package service

import (
	"context"
	"sort"
	"sync"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

// FailureMemory is an in-process action -> failure count map. It is rebuilt
// from the ledger on startup via Seed.
type FailureMemory struct {
	mu      sync.RWMutex
	actions map[string]int
	causes  map[string]int
	records []domain.FailureRecord
}

func NewFailureMemory() *FailureMemory {
	return &FailureMemory{
		actions: make(map[string]int),
		causes:  make(map[string]int),
	}
}

// Seed records each failure without touching any external state.
func (f *FailureMemory) Seed(records []domain.FailureRecord) {
	for _, r := range records {
		_ = f.RecordFailure(context.Background(), r)
	}
}

func (f *FailureMemory) RecordFailure(_ context.Context, r domain.FailureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions[r.Action]++
	if r.Cause != "" {
		f.causes[r.Cause]++
	}
	f.records = append(f.records, r)
	return nil
}

func (f *FailureMemory) FailureCount(_ context.Context, action string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.actions[action], nil
}

func (f *FailureMemory) CauseCount(_ context.Context, cause string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.causes[cause], nil
}

// TopFailures returns up to n actions with the most failures, ties broken by name.
func (f *FailureMemory) TopFailures(_ context.Context, n int) ([]domain.ActionFailureCount, error) {
	f.mu.RLock()
	out := make([]domain.ActionFailureCount, 0, len(f.actions))
	for a, c := range f.actions {
		out = append(out, domain.ActionFailureCount{Action: a, Count: c})
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Action < out[j].Action
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *FailureMemory) RecentFailures(_ context.Context, n int) ([]domain.FailureRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	recs := f.records
	if n > 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return append([]domain.FailureRecord(nil), recs...), nil
}
