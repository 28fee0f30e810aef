package simulation

import "testing"

// AssertCountersConserved asserts that every recorded day accounts for the
// whole initial population.
func AssertCountersConserved(t testing.TB, result *Result, population int) {
	t.Helper()
	for _, rec := range result.Trajectory {
		if got := rec.Counters.Total(); got != population {
			t.Errorf("AssertCountersConserved: day %d: counters %+v sum to %d, want %d", rec.Day, rec.Counters, got, population)
		}
	}
}

// AssertOutcomesMonotonic asserts that recovered and dead never decrease.
func AssertOutcomesMonotonic(t testing.TB, result *Result) {
	t.Helper()
	for i := 1; i < len(result.Trajectory); i++ {
		prev, cur := result.Trajectory[i-1], result.Trajectory[i]
		if cur.Counters.Recovered < prev.Counters.Recovered {
			t.Errorf("AssertOutcomesMonotonic: day %d: recovered fell %d -> %d", cur.Day, prev.Counters.Recovered, cur.Counters.Recovered)
		}
		if cur.Counters.Dead < prev.Counters.Dead {
			t.Errorf("AssertOutcomesMonotonic: day %d: dead fell %d -> %d", cur.Day, prev.Counters.Dead, cur.Counters.Dead)
		}
	}
}

// AssertWardWithin asserts that ward occupancy never exceeded capacity.
func AssertWardWithin(t testing.TB, result *Result, capacity int) {
	t.Helper()
	for _, rec := range result.Trajectory {
		if rec.Occupied > capacity {
			t.Errorf("AssertWardWithin: day %d: %d beds occupied of %d", rec.Day, rec.Occupied, capacity)
		}
	}
}

// AssertClearsWithin asserts that the run reached zero infected by day.
func AssertClearsWithin(t testing.TB, result *Result, day int) {
	t.Helper()
	if result.DaysToClear < 0 {
		t.Errorf("AssertClearsWithin: infections never cleared (final %+v)", result.Summary())
		return
	}
	if result.DaysToClear > day {
		t.Errorf("AssertClearsWithin: cleared on day %d, want by day %d", result.DaysToClear, day)
	}
}

// AssertContiguousDays asserts that the trajectory starts at day 0 and has
// no gaps.
func AssertContiguousDays(t testing.TB, result *Result) {
	t.Helper()
	for i, rec := range result.Trajectory {
		if rec.Day != i {
			t.Errorf("AssertContiguousDays: record %d is day %d", i, rec.Day)
			return
		}
	}
}
