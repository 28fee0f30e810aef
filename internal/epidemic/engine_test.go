package epidemic

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/nvandessel/epigraph/internal/population"
)

type policyCombo struct {
	isolation IsolationPolicy
	admission AdmissionPolicy
}

func allCombos() []policyCombo {
	var combos []policyCombo
	for _, iso := range IsolationNames {
		for _, adm := range AdmissionNames {
			i, _ := ParseIsolation(iso)
			a, _ := ParseAdmission(adm)
			combos = append(combos, policyCombo{isolation: i, admission: a})
		}
	}
	return combos
}

func newTestEngine(t *testing.T, cfg Config, seed uint64) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, NewSeededRand(seed))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func runDays(t *testing.T, e *Engine, days int, each func(s *State)) *State {
	t.Helper()
	s, err := e.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if each != nil {
		each(s)
	}
	for d := 0; d < days; d++ {
		if err := e.Update(s); err != nil {
			t.Fatalf("Update day %d: %v", s.Day, err)
		}
		if each != nil {
			each(s)
		}
	}
	return s
}

func TestNewEngine_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "negative size", mutate: func(c *Config) { c.Population.Size = -1 }},
		{name: "patient density above 1", mutate: func(c *Config) { c.Population.PatientDensity = 1.5 }},
		{name: "negative carrier density", mutate: func(c *Config) { c.Population.CarrierDensity = -0.1 }},
		{name: "empty cluster range", mutate: func(c *Config) { c.Population.ClusterRange = [2]int{5, 5} }},
		{name: "zero cluster start", mutate: func(c *Config) { c.Population.ClusterRange = [2]int{0, 5} }},
		{name: "bed rate above 1", mutate: func(c *Config) { c.BedRate = 2 }},
		{name: "negative density", mutate: func(c *Config) { c.Density = -1 }},
		{name: "zero incubation", mutate: func(c *Config) { c.Virus.IncubationPeriod = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewEngine(cfg, NewSeededRand(1))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewEngine() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestEngine_Invariants(t *testing.T) {
	for _, combo := range allCombos() {
		name := combo.isolation.Name() + "/" + combo.admission.Name()
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Population.Size = 200
			cfg.Isolation = combo.isolation
			cfg.Admission = combo.admission
			e := newTestEngine(t, cfg, 42)

			var prev Counters
			recovered := map[int]bool{}
			runDays(t, e, 80, func(s *State) {
				if got := s.Counters.Total(); got != 200 {
					t.Fatalf("day %d: counters %+v sum to %d", s.Day, s.Counters, got)
				}
				if s.Counters.Recovered < prev.Recovered || s.Counters.Dead < prev.Dead {
					t.Fatalf("day %d: recovered/dead decreased: %+v -> %+v", s.Day, prev, s.Counters)
				}
				if s.Ward.Occupied > s.Ward.Capacity {
					t.Fatalf("day %d: ward %d/%d over capacity", s.Day, s.Ward.Occupied, s.Ward.Capacity)
				}
				prev = s.Counters

				hospitalized := 0
				for _, id := range s.Graph.IDs() {
					p := s.Graph.Person(id)
					if p.History.Len() > s.Graph.Window() {
						t.Fatalf("person %d holds %d history slots", id, p.History.Len())
					}
					if p.InHospital {
						hospitalized++
					}
					if recovered[id] {
						if !p.IsRecovered() || p.DisplayState != population.Recovered {
							t.Fatalf("day %d: recovered person %d changed state to (%v, %v)", s.Day, id, p.DisplayState, p.TrueState)
						}
						if p.Isolated || p.InHospital {
							t.Fatalf("day %d: recovered person %d isolated or hospitalized", s.Day, id)
						}
					}
					if p.IsRecovered() {
						recovered[id] = true
					}
				}
				if hospitalized != s.Ward.Occupied {
					t.Fatalf("day %d: %d hospitalized persons, ward says %d", s.Day, hospitalized, s.Ward.Occupied)
				}
			})
		})
	}
}

func TestEngine_TrueStateNeverDecreases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Isolation = TimelyIsolation{}
	cfg.Admission = SequentialAdmission{}
	e := newTestEngine(t, cfg, 7)

	last := map[int]float64{}
	runDays(t, e, 60, func(s *State) {
		for _, id := range s.Graph.IDs() {
			p := s.Graph.Person(id)
			if before, ok := last[id]; ok && p.TrueState < before && p.TrueState != population.Recovered {
				t.Fatalf("day %d: person %d TrueState went %v -> %v", s.Day, id, before, p.TrueState)
			}
			last[id] = p.TrueState
		}
	})
}

func TestEngine_SeedReproducibility(t *testing.T) {
	trajectory := func() []Counters {
		cfg := DefaultConfig()
		cfg.Isolation = TimelyIsolation{}
		cfg.Admission = SeverityAdmission{}
		e := newTestEngine(t, cfg, 2020)
		var out []Counters
		runDays(t, e, 50, func(s *State) { out = append(out, s.Counters) })
		return out
	}
	a, b := trajectory(), trajectory()
	if !slices.Equal(a, b) {
		t.Error("identical seeds produced different trajectories")
	}
}

func TestEngine_NoInitialInfections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population.Size = 50
	cfg.Population.PatientDensity = 0
	cfg.Population.CarrierDensity = 0
	cfg.Density = 1
	e := newTestEngine(t, cfg, 3)

	s, err := e.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	day0 := s.Counters
	for d := 0; d < 30; d++ {
		if err := e.Update(s); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if s.Counters != day0 {
			t.Fatalf("day %d counters %+v differ from day 0 %+v", s.Day, s.Counters, day0)
		}
	}
	if !s.Clear() {
		t.Error("Clear() = false with no infections")
	}
}

func TestEngine_CompleteIsolationDrainsInfections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population.Size = 50
	cfg.Population.PatientDensity = 1
	cfg.Isolation = CompleteIsolation{}
	e := newTestEngine(t, cfg, 11)

	s, err := e.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.Counters.Infected != 50 {
		t.Fatalf("initial infected = %d, want 50", s.Counters.Infected)
	}

	prev := s.Counters.Infected
	for !s.Clear() {
		if s.Day > cfg.Virus.DeathCeiling {
			t.Fatalf("infections remain after %d days: %+v", s.Day, s.Counters)
		}
		if err := e.Update(s); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if s.Graph.EdgeCount() != 0 {
			t.Fatalf("day %d: complete isolation left %d edges", s.Day, s.Graph.EdgeCount())
		}
		if s.Counters.Infected > prev {
			t.Fatalf("day %d: infected rose %d -> %d", s.Day, prev, s.Counters.Infected)
		}
		if s.Events.Infections != 0 {
			t.Fatalf("day %d: %d new infections under complete isolation", s.Day, s.Events.Infections)
		}
		prev = s.Counters.Infected
	}
	if s.Counters.Recovered+s.Counters.Dead != 50 {
		t.Errorf("final counters %+v", s.Counters)
	}
}

func TestEngine_ZeroCapacityMatchesBaseline(t *testing.T) {
	trajectory := func(adm AdmissionPolicy) []Counters {
		cfg := DefaultConfig()
		cfg.BedRate = 0
		cfg.Admission = adm
		e := newTestEngine(t, cfg, 99)
		var out []Counters
		runDays(t, e, 60, func(s *State) {
			if s.Ward.Occupied != 0 {
				t.Fatalf("day %d: zero-capacity ward holds %d", s.Day, s.Ward.Occupied)
			}
			out = append(out, s.Counters)
		})
		return out
	}

	baseline := trajectory(NoAdmission{})
	for _, adm := range []AdmissionPolicy{SeverityAdmission{}, SequentialAdmission{}} {
		if got := trajectory(adm); !slices.Equal(got, baseline) {
			t.Errorf("%s with zero beds diverged from baseline", adm.Name())
		}
	}
}

func TestEngine_UpdateDetectsCorruptCounters(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 5)
	s, err := e.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	s.Counters.Healthy += 3

	if err := e.Update(s); !errors.Is(err, ErrInvariant) {
		t.Errorf("Update() error = %v, want ErrInvariant", err)
	}
}

func TestEngine_SnapshotIsDetached(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 8)
	s := runDays(t, e, 3, nil)

	snap := s.Snapshot()
	if snap.Day != 3 || len(snap.Persons) != s.Graph.Len() {
		t.Fatalf("snapshot day=%d persons=%d", snap.Day, len(snap.Persons))
	}
	if len(snap.Edges) != s.Graph.EdgeCount() {
		t.Errorf("snapshot has %d edges, graph %d", len(snap.Edges), s.Graph.EdgeCount())
	}

	before := fmt.Sprint(snap.Counters)
	if err := e.Update(s); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if fmt.Sprint(snap.Counters) != before || snap.Day != 3 {
		t.Error("snapshot changed after a later update")
	}
	for _, pv := range snap.Persons {
		if pv.Color == "" {
			t.Fatalf("person %d has no color", pv.ID)
		}
	}
}

func TestEngine_CompleteIsolationKeepsDayZeroContacts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population.Size = 50
	cfg.Isolation = CompleteIsolation{}
	e := newTestEngine(t, cfg, 11)

	s, err := e.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.Events.Meetings == 0 || s.Graph.EdgeCount() == 0 {
		t.Fatalf("day 0: meetings=%d edges=%d, want initial contacts", s.Events.Meetings, s.Graph.EdgeCount())
	}
	recorded := 0
	for _, id := range s.Graph.IDs() {
		recorded += len(s.Graph.Person(id).History.Contacts(0))
	}
	if recorded == 0 {
		t.Error("day-0 contacts missing from histories")
	}

	if err := e.Update(s); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Graph.EdgeCount() != 0 || s.Events.Infections != 0 {
		t.Errorf("day 1: edges=%d infections=%d, want none", s.Graph.EdgeCount(), s.Events.Infections)
	}
}
