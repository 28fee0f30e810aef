package store

import (
	"context"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

// Recorder persists every observed day of one run.
type Recorder struct {
	store RunStore
	runID string
}

// NewRecorder returns an observer appending to runID in s.
func NewRecorder(s RunStore, runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Observe appends the snapshot's day.
func (r *Recorder) Observe(ctx context.Context, snap epidemic.Snapshot) error {
	return r.store.AppendDay(ctx, r.runID, Day{
		Day:      snap.Day,
		Counters: snap.Counters,
		Occupied: snap.Ward.Occupied,
		Events:   snap.Events,
	})
}
