// Package store persists simulation runs: the parameters a run started
// with and the counters of every simulated day.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

var (
	// ErrRunNotFound is returned when no run matches an id or id prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an id prefix matches several runs.
	ErrAmbiguousID = errors.New("ambiguous run id prefix")

	// ErrDayOutOfOrder is returned when a day is appended at or before the
	// last recorded day of a run.
	ErrDayOutOfOrder = errors.New("day out of order")
)

// Run describes one simulation run. LastDay and Final track the most
// recently appended day; LastDay is -1 until the first append.
type Run struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Isolation  string            `json:"isolation"`
	Admission  string            `json:"admission"`
	Population int               `json:"population"`
	Seed       uint64            `json:"seed"`
	Params     json.RawMessage   `json:"params,omitempty"`
	LastDay    int               `json:"last_day"`
	Final      epidemic.Counters `json:"final"`
}

// Day is one row of a run's trajectory.
type Day struct {
	Day      int                `json:"day"`
	Counters epidemic.Counters  `json:"counters"`
	Occupied int                `json:"occupied"`
	Events   epidemic.DayEvents `json:"events"`
}

// RunStore stores runs and their daily trajectories.
type RunStore interface {
	// CreateRun stores a new run. An empty ID is replaced by a fresh UUID
	// and a zero CreatedAt by the current time. The stored run is returned.
	CreateRun(ctx context.Context, run Run) (Run, error)

	// AppendDay records the next day of a run.
	AppendDay(ctx context.Context, runID string, day Day) error

	// GetRun returns the run whose id equals or uniquely starts with id.
	GetRun(ctx context.Context, id string) (*Run, error)

	// Days returns a run's trajectory in day order.
	Days(ctx context.Context, runID string) ([]Day, error)

	// Runs lists runs newest first. limit <= 0 means all.
	Runs(ctx context.Context, limit int) ([]Run, error)

	// DeleteRun removes a run and its trajectory.
	DeleteRun(ctx context.Context, runID string) error

	Close() error
}

// NewRun describes a run about to start. params is stored as JSON so the
// run can be repeated later.
func NewRun(isolation, admission string, population int, seed uint64, params any) (Run, error) {
	run := Run{
		Isolation:  isolation,
		Admission:  admission,
		Population: population,
		Seed:       seed,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return Run{}, fmt.Errorf("encoding run parameters: %w", err)
		}
		run.Params = data
	}
	return run, nil
}

// prepareRun fills in the generated fields of a new run.
func prepareRun(run Run) Run {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.CreatedAt = run.CreatedAt.UTC().Truncate(time.Millisecond)
	run.LastDay = -1
	run.Final = epidemic.Counters{}
	return run
}

// matchPrefix resolves id against candidates: an exact match wins,
// otherwise the prefix must be unique.
func matchPrefix(id string, candidates []string) (string, error) {
	var found []string
	for _, c := range candidates {
		if c == id {
			return c, nil
		}
		if id != "" && strings.HasPrefix(c, id) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return "", ErrRunNotFound
	case 1:
		return found[0], nil
	default:
		return "", ErrAmbiguousID
	}
}
