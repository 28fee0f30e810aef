package simulation

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

func newEngine(t *testing.T, mutate func(c *epidemic.Config), seed uint64) *epidemic.Engine {
	t.Helper()
	cfg := epidemic.DefaultConfig()
	cfg.Population.Size = 120
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := epidemic.NewEngine(cfg, epidemic.NewSeededRand(seed))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestRunner_MaxDays(t *testing.T) {
	e := newEngine(t, nil, 42)
	var seen []int
	obs := ObserverFunc(func(_ context.Context, snap epidemic.Snapshot) error {
		seen = append(seen, snap.Day)
		return nil
	})

	res, err := NewRunner().Run(context.Background(), e, RunOptions{MaxDays: 25, Observers: []Observer{obs}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trajectory) != 26 {
		t.Fatalf("trajectory has %d days, want 26 (day 0 through 25)", len(res.Trajectory))
	}
	if res.Final.Day != 25 {
		t.Errorf("Final.Day = %d, want 25", res.Final.Day)
	}
	if len(seen) != 26 || seen[0] != 0 || seen[25] != 25 {
		t.Errorf("observer saw days %v", seen)
	}
	AssertContiguousDays(t, res)
	AssertCountersConserved(t, res, 120)
	AssertOutcomesMonotonic(t, res)
	AssertWardWithin(t, res, res.Final.Ward.Capacity)
}

func TestRunner_StopWhenClear(t *testing.T) {
	e := newEngine(t, func(c *epidemic.Config) {
		c.Population.Size = 50
		c.Population.PatientDensity = 1
		c.Isolation = epidemic.CompleteIsolation{}
	}, 11)

	res, err := NewRunner().Run(context.Background(), e, RunOptions{StopWhenClear: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	AssertClearsWithin(t, res, e.Config().Virus.DeathCeiling+1)
	if res.Final.Day != res.DaysToClear {
		t.Errorf("run continued to day %d after clearing on day %d", res.Final.Day, res.DaysToClear)
	}
	final := res.Summary()
	if final.Infected != 0 || final.Recovered+final.Dead != 50 {
		t.Errorf("final counters %+v", final)
	}
}

func TestRunner_ClearOnDayZero(t *testing.T) {
	e := newEngine(t, func(c *epidemic.Config) {
		c.Population.PatientDensity = 0
		c.Population.CarrierDensity = 0
	}, 3)

	res, err := NewRunner().Run(context.Background(), e, RunOptions{MaxDays: 10, StopWhenClear: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.DaysToClear != 0 || len(res.Trajectory) != 1 {
		t.Errorf("DaysToClear = %d with %d records, want 0 and 1", res.DaysToClear, len(res.Trajectory))
	}
}

func TestRunner_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRunner().Run(ctx, nil, RunOptions{MaxDays: 1}); !errors.Is(err, ErrNoEngine) {
		t.Errorf("nil engine: error = %v", err)
	}
	if _, err := NewRunner().Run(ctx, newEngine(t, nil, 1), RunOptions{}); err == nil {
		t.Error("unbounded run accepted")
	}
}

func TestRunner_ObserverErrorAborts(t *testing.T) {
	boom := errors.New("disk full")
	obs := ObserverFunc(func(_ context.Context, snap epidemic.Snapshot) error {
		if snap.Day == 3 {
			return boom
		}
		return nil
	})

	res, err := NewRunner().Run(context.Background(), newEngine(t, nil, 5), RunOptions{MaxDays: 50, Observers: []Observer{obs}})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if res == nil || res.Final.Day != 3 {
		t.Errorf("partial result should stop at day 3, got %+v", res)
	}
}

func TestRunner_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	obs := ObserverFunc(func(_ context.Context, snap epidemic.Snapshot) error {
		if snap.Day == 2 {
			cancel()
		}
		return nil
	})

	res, err := NewRunner().Run(ctx, newEngine(t, nil, 9), RunOptions{MaxDays: 100, Observers: []Observer{obs}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if got := len(res.Trajectory); got != 3 {
		t.Errorf("trajectory has %d days after cancelling on day 2", got)
	}
}

func TestRunner_Reproducible(t *testing.T) {
	run := func() []DayRecord {
		e := newEngine(t, func(c *epidemic.Config) {
			c.Isolation = epidemic.TimelyIsolation{}
			c.Admission = epidemic.SeverityAdmission{}
		}, 2020)
		res, err := NewRunner().Run(context.Background(), e, RunOptions{MaxDays: 40})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res.Trajectory
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Counters != b[i].Counters || !slices.Equal(a[i].Events.Admitted, b[i].Events.Admitted) {
			t.Fatalf("day %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestResult_PeakInfected(t *testing.T) {
	res := &Result{Trajectory: []DayRecord{
		{Day: 0, Counters: epidemic.Counters{Infected: 3}},
		{Day: 1, Counters: epidemic.Counters{Infected: 9}},
		{Day: 2, Counters: epidemic.Counters{Infected: 9}},
		{Day: 3, Counters: epidemic.Counters{Infected: 4}},
	}}
	count, day := res.PeakInfected()
	if count != 9 || day != 1 {
		t.Errorf("PeakInfected() = %d on day %d, want 9 on day 1", count, day)
	}
	if got := res.Summary(); got.Infected != 4 {
		t.Errorf("Summary() = %+v", got)
	}

	var empty *Result
	if c, _ := empty.PeakInfected(); c != 0 {
		t.Error("nil result has a peak")
	}
}
