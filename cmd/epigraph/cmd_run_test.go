package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/epigraph/internal/config"
	"github.com/nvandessel/epigraph/internal/epidemic"
)

var smallRun = []string{"--population", "60", "--days", "20", "--seed", "3"}

func runArgs(extra ...string) []string {
	return append(append([]string{"run"}, smallRun...), extra...)
}

func TestRunCmd_JSON(t *testing.T) {
	isolateHome(t)

	var got runSummary
	decodeJSON(t, mustExecute(t, runArgs("--json", "--trajectory")...), &got)

	if got.Population != 60 || got.Seed != 3 {
		t.Errorf("population/seed = %d/%d, want 60/3", got.Population, got.Seed)
	}
	if got.Final.Total() != 60 {
		t.Errorf("final counters %+v do not sum to 60", got.Final)
	}
	if got.Days > 20 {
		t.Errorf("ran %d days, limit was 20", got.Days)
	}
	if len(got.Trajectory) != got.Days+1 {
		t.Errorf("trajectory has %d days, want %d", len(got.Trajectory), got.Days+1)
	}
	if got.RunID == "" {
		t.Error("run was not recorded")
	}
	if got.Beds != 3 {
		t.Errorf("beds = %d, want 3", got.Beds)
	}
}

func TestRunCmd_Reproducible(t *testing.T) {
	isolateHome(t)

	var a, b runSummary
	decodeJSON(t, mustExecute(t, runArgs("--json", "--no-record", "--isolation", "timely")...), &a)
	decodeJSON(t, mustExecute(t, runArgs("--json", "--no-record", "--isolation", "timely")...), &b)

	if a.Final != b.Final || a.PeakInfected != b.PeakInfected || a.PeakDay != b.PeakDay || a.Days != b.Days {
		t.Errorf("same seed gave different outcomes:\n%+v\n%+v", a, b)
	}
	if a.RunID != "" {
		t.Errorf("--no-record still recorded run %s", a.RunID)
	}
}

func TestRunCmd_FlagsOverrideConfigFile(t *testing.T) {
	home := isolateHome(t)

	path := filepath.Join(home, "scenario.yaml")
	data := "population: 40\nisolation: partial\nadmission: sequential\nmax_days: 5\nstop_when_clear: false\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	var got runSummary
	decodeJSON(t, mustExecute(t, "run", "--config", path, "--admission", "severity", "--seed", "9", "--no-record", "--json"), &got)

	if got.Population != 40 || got.Isolation != epidemic.IsolationPartial || got.Admission != epidemic.AdmissionSeverity {
		t.Errorf("got population=%d isolation=%s admission=%s", got.Population, got.Isolation, got.Admission)
	}
	if got.Days != 5 {
		t.Errorf("days = %d, want max_days 5 from the file", got.Days)
	}
}

func TestRunCmd_InvalidFlags(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown isolation", []string{"--isolation", "quarantine"}},
		{"unknown admission", []string{"--admission", "lottery"}},
		{"bed rate above one", []string{"--bed-rate", "1.5"}},
		{"empty cluster range", []string{"--clusters", "5,5"}},
		{"zero days", []string{"--days", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"run", "--no-record"}, tt.args...)...)
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("error = %v, want config.ErrInvalid", err)
			}
		})
	}
}

func TestRunCmd_ProgressAndSummary(t *testing.T) {
	isolateHome(t)

	out := mustExecute(t, runArgs("--no-record", "--every", "5")...)
	if !strings.Contains(out, "persons: 60, ") || !strings.Contains(out, "- day: 0\n") {
		t.Errorf("missing progress lines:\n%s", out)
	}
	if !strings.Contains(out, "day: 5\n") {
		t.Errorf("missing day 5 status line:\n%s", out)
	}
	for _, want := range []string{"Policy:", "Seed:          3", "Peak infected:", "Final:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_MetricsOut(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "metrics.prom")

	mustExecute(t, runArgs("--no-record", "--metrics-out", path)...)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"epigraph_population", "epigraph_runs_total", "epigraph_hospital_capacity"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %s", want)
		}
	}
}

func TestPacer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := pacer(time.Hour).Observe(ctx, epidemic.Snapshot{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Observe() = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("pacer ignored cancellation")
	}
}
