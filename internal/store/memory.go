package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type memoryRun struct {
	run  Run
	days []Day
}

// InMemoryRunStore implements RunStore for tests and one-off runs.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*memoryRun
}

// NewInMemoryRunStore creates an empty in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]*memoryRun)}
}

// CreateRun stores a new run.
func (s *InMemoryRunStore) CreateRun(ctx context.Context, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run = prepareRun(run)
	if _, exists := s.runs[run.ID]; exists {
		return Run{}, fmt.Errorf("run %s already exists", run.ID)
	}
	run.Params = slices.Clone(run.Params)
	s.runs[run.ID] = &memoryRun{run: run}
	return run, nil
}

// AppendDay records the next day of a run.
func (s *InMemoryRunStore) AppendDay(ctx context.Context, runID string, day Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if day.Day <= r.run.LastDay {
		return fmt.Errorf("%w: day %d after day %d", ErrDayOutOfOrder, day.Day, r.run.LastDay)
	}
	day.Events.Admitted = slices.Clone(day.Events.Admitted)
	r.days = append(r.days, day)
	r.run.LastDay = day.Day
	r.run.Final = day.Counters
	return nil
}

// GetRun returns the run matching id or a unique id prefix.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for k := range s.runs {
		ids = append(ids, k)
	}
	match, err := matchPrefix(id, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}
	run := s.runs[match].run
	return &run, nil
}

// Days returns a copy of a run's trajectory.
func (s *InMemoryRunStore) Days(ctx context.Context, runID string) ([]Day, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return slices.Clone(r.days), nil
}

// Runs lists runs newest first.
func (s *InMemoryRunStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.run)
	}
	slices.SortFunc(out, func(a, b Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteRun removes a run.
func (s *InMemoryRunStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	delete(s.runs, runID)
	return nil
}

// Close is a no-op.
func (s *InMemoryRunStore) Close() error {
	return nil
}
