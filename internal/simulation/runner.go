package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

// ErrNoEngine is returned when Run is called without an engine.
var ErrNoEngine = errors.New("simulation: nil engine")

// Observer receives a read-only snapshot after day 0 and after every update.
// A returned error aborts the run.
type Observer interface {
	Observe(ctx context.Context, snap epidemic.Snapshot) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, snap epidemic.Snapshot) error

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, snap epidemic.Snapshot) error {
	return f(ctx, snap)
}

// RunOptions bounds a run and lists who watches it.
type RunOptions struct {
	// MaxDays is the number of updates after day 0. Zero or less means
	// run until clear, which requires StopWhenClear.
	MaxDays int

	// StopWhenClear ends the run on the first day without infected persons.
	StopWhenClear bool

	// Observers are called in order for every settled day.
	Observers []Observer
}

// DayRecord is the per-day summary kept in a Result.
type DayRecord struct {
	Day      int                `json:"day"`
	Counters epidemic.Counters  `json:"counters"`
	Occupied int                `json:"occupied"`
	Events   epidemic.DayEvents `json:"events"`
}

// Result captures a finished (or interrupted) run.
type Result struct {
	// Trajectory holds one record per observed day, day 0 first.
	Trajectory []DayRecord

	// Final is the engine state after the last update.
	Final *epidemic.State

	// DaysToClear is the first day on which no infected persons remained,
	// or -1 if the run ended with infections still present.
	DaysToClear int
}

// Summary returns the last day's counters.
func (r *Result) Summary() epidemic.Counters {
	if r == nil || len(r.Trajectory) == 0 {
		return epidemic.Counters{}
	}
	return r.Trajectory[len(r.Trajectory)-1].Counters
}

// PeakInfected returns the highest infected count and the day it was reached.
func (r *Result) PeakInfected() (count, day int) {
	if r == nil {
		return 0, 0
	}
	for _, rec := range r.Trajectory {
		if rec.Counters.Infected > count {
			count, day = rec.Counters.Infected, rec.Day
		}
	}
	return count, day
}

// Runner drives a single engine through its days.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a runner that logs nothing.
func NewRunner() *Runner {
	return &Runner{}
}

// SetLogger sets the logger used for run start and end messages.
func (r *Runner) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// Run initializes engine, observes day 0, then updates and observes until a
// stop condition holds. On cancellation or an observer failure the partial
// result is returned together with the error.
func (r *Runner) Run(ctx context.Context, engine *epidemic.Engine, opts RunOptions) (*Result, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if opts.MaxDays <= 0 && !opts.StopWhenClear {
		return nil, fmt.Errorf("simulation: unbounded run: set MaxDays or StopWhenClear")
	}

	state, err := engine.Initialize()
	if err != nil {
		return nil, fmt.Errorf("initializing population: %w", err)
	}

	res := &Result{Final: state, DaysToClear: -1}
	if r.logger != nil {
		r.logger.Debug("run started",
			"population", state.Population,
			"isolation", state.Isolation,
			"admission", state.Admission,
			"max_days", opts.MaxDays)
	}

	if err := r.observe(ctx, state, res, opts.Observers); err != nil {
		return res, err
	}

	for {
		if opts.StopWhenClear && res.DaysToClear >= 0 {
			break
		}
		if opts.MaxDays > 0 && state.Day >= opts.MaxDays {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := engine.Update(state); err != nil {
			return res, err
		}
		if err := r.observe(ctx, state, res, opts.Observers); err != nil {
			return res, err
		}
	}

	if r.logger != nil {
		c := state.Counters
		r.logger.Debug("run finished",
			"day", state.Day,
			"healthy", c.Healthy,
			"recovered", c.Recovered,
			"dead", c.Dead,
			"days_to_clear", res.DaysToClear)
	}
	return res, nil
}

func (r *Runner) observe(ctx context.Context, state *epidemic.State, res *Result, observers []Observer) error {
	res.Trajectory = append(res.Trajectory, DayRecord{
		Day:      state.Day,
		Counters: state.Counters,
		Occupied: state.Ward.Occupied,
		Events:   copyEvents(state.Events),
	})
	if res.DaysToClear < 0 && state.Clear() {
		res.DaysToClear = state.Day
	}
	if len(observers) == 0 {
		return nil
	}

	snap := state.Snapshot()
	for i, o := range observers {
		if err := o.Observe(ctx, snap); err != nil {
			return fmt.Errorf("observer %d on day %d: %w", i, state.Day, err)
		}
	}
	return nil
}

func copyEvents(ev epidemic.DayEvents) epidemic.DayEvents {
	ev.Admitted = append([]int(nil), ev.Admitted...)
	return ev
}
