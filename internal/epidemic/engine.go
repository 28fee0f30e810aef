package epidemic

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nvandessel/epigraph/internal/logging"
	"github.com/nvandessel/epigraph/internal/population"
	"github.com/nvandessel/epigraph/internal/virus"
)

// ErrInvalidConfig is returned by NewEngine for unusable configuration.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds the engine's tunable parameters.
type Config struct {
	// Population configures the initial population. Its IncubationPeriod
	// is taken from Virus.
	Population population.Params

	// Virus holds the distribution model coefficients.
	Virus virus.Params

	// Density is the number of meetings per cluster member per day. Default: 2.
	Density float64

	// BedRate sizes the hospital as a share of the population. Default: 0.05.
	BedRate float64

	// Isolation and Admission are the intervention policies. Nil means none.
	Isolation IsolationPolicy
	Admission AdmissionPolicy
}

// DefaultConfig returns the configuration of the reference scenario:
// 300 persons, 10% patients, 10% carriers, 10 to 19 clusters a day.
func DefaultConfig() Config {
	return Config{
		Population: population.Params{
			Size:           300,
			PatientDensity: 0.1,
			CarrierDensity: 0.1,
			ClusterRange:   [2]int{10, 20},
		},
		Virus:   virus.DefaultParams(),
		Density: 2,
		BedRate: 0.05,
	}
}

// Validate checks ranges that the population and ward rely on.
func (c Config) Validate() error {
	p := c.Population
	if p.Size < 0 {
		return fmt.Errorf("%w: population size must be non-negative, got %d", ErrInvalidConfig, p.Size)
	}
	if p.PatientDensity < 0 || p.PatientDensity > 1 {
		return fmt.Errorf("%w: patient density must be in [0, 1], got %f", ErrInvalidConfig, p.PatientDensity)
	}
	if p.CarrierDensity < 0 || p.CarrierDensity > 1 {
		return fmt.Errorf("%w: carrier density must be in [0, 1], got %f", ErrInvalidConfig, p.CarrierDensity)
	}
	if p.ClusterRange[0] < 1 || p.ClusterRange[1] <= p.ClusterRange[0] {
		return fmt.Errorf("%w: cluster range [%d, %d) must be non-empty and start at 1 or above",
			ErrInvalidConfig, p.ClusterRange[0], p.ClusterRange[1])
	}
	if c.Density < 0 {
		return fmt.Errorf("%w: density must be non-negative, got %f", ErrInvalidConfig, c.Density)
	}
	if c.BedRate < 0 || c.BedRate > 1 {
		return fmt.Errorf("%w: bed rate must be in [0, 1], got %f", ErrInvalidConfig, c.BedRate)
	}
	if err := c.Virus.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Engine advances a State one simulated day at a time. All randomness
// comes from the injected source, so a fixed seed reproduces a run.
type Engine struct {
	config    Config
	model     *virus.Model
	isolation IsolationPolicy
	admission AdmissionPolicy
	rng       *rand.Rand
	logger    *slog.Logger
	trace     *logging.TraceLog
}

// NewEngine validates config and creates an engine drawing from rng.
func NewEngine(config Config, rng *rand.Rand) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	model, err := virus.NewModel(config.Virus)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	config.Population.IncubationPeriod = config.Virus.IncubationPeriod

	e := &Engine{
		config:    config,
		model:     model,
		isolation: config.Isolation,
		admission: config.Admission,
		rng:       rng,
	}
	if e.isolation == nil {
		e.isolation = NoIsolation{}
	}
	if e.admission == nil {
		e.admission = NoAdmission{}
	}
	return e, nil
}

// NewSeededRand returns a deterministic random source for seed.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SetLogger sets the structured logger and the JSONL event trace.
func (e *Engine) SetLogger(logger *slog.Logger, trace *logging.TraceLog) {
	e.logger = logger
	e.trace = trace
}

// Model returns the engine's distribution model.
func (e *Engine) Model() *virus.Model {
	return e.model
}

// Config returns the validated configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Initialize creates day 0: the population and its first contacts.
func (e *Engine) Initialize() (*State, error) {
	g, census := population.Initialize(e.config.Population, e.rng)

	s := &State{
		Population: g.Size(),
		Graph:      g,
		Counters: Counters{
			Healthy:  census.Healthy,
			Infected: census.Infected,
		},
		Ward:      NewWard(g.Size(), e.config.BedRate),
		Isolation: e.isolation.Name(),
		Admission: e.admission.Name(),
		model:     e.model,
	}
	// Day-0 contacts exist under every policy; updateLinks drops them
	// before any spread when the policy forbids contact.
	s.Events.Meetings = g.RegenerateContacts(0, e.config.Density, e.rng)

	if err := s.CheckInvariant(); err != nil {
		return nil, err
	}
	e.logDay(s)
	return s, nil
}

// Update simulates one day:
//
//  1. advance the day counter
//  2. replace yesterday's contacts
//  3. spread infection along today's contacts
//  4. scan every person: symptom onset, policy hooks, recovery or death
//  5. end-of-day admission
func (e *Engine) Update(s *State) error {
	s.Day++
	s.Events = DayEvents{}

	e.updateLinks(s)
	e.propagateInfection(s)
	e.scan(s)
	e.admission.EndOfDay(s)
	s.Graph.Compact()

	if err := s.CheckInvariant(); err != nil {
		return fmt.Errorf("day %d: %w", s.Day, err)
	}
	e.logDay(s)
	return nil
}

func (e *Engine) updateLinks(s *State) {
	g := s.Graph
	if !e.isolation.AllowsContacts() {
		g.ClearEdges()
		g.ReassignClusters(e.config.Population.ClusterRange, e.rng)
		return
	}
	s.Events.Meetings = g.UpdateLinks(s.Day, e.config.Density, e.config.Population.ClusterRange, e.rng)
}

// propagateInfection exposes every healthy person to their infected
// neighbors. Exposure is judged against the infections present when the
// pass starts, so the order of the pass does not matter.
func (e *Engine) propagateInfection(s *State) {
	g := s.Graph
	ids := g.IDs()

	infected := make(map[int]bool)
	for _, id := range ids {
		if g.Person(id).IsInfected() {
			infected[id] = true
		}
	}

	for _, id := range ids {
		p := g.Person(id)
		if !p.IsHealthy() {
			continue
		}
		sick := 0
		for _, n := range g.Neighbors(id) {
			if infected[n] {
				sick++
			}
		}
		if sick == 0 {
			continue
		}
		if e.rng.Float64() >= e.model.InfectionProbability(sick) {
			continue
		}

		p.TrueState = population.Onset
		s.Counters.Healthy--
		s.Counters.Infected++
		s.Events.Infections++
		if e.rng.Float64() < e.model.SymptomOnsetProbability(p.TrueState) {
			p.DisplayState = population.Onset
		} else {
			p.DisplayState = population.Healthy
		}
	}
}

// scan walks a frozen snapshot of ids. Deaths only tombstone, so the set of
// persons visited today never depends on who dies during the scan.
func (e *Engine) scan(s *State) {
	for _, id := range s.Graph.IDs() {
		p := s.Graph.Person(id)
		if p == nil || p.IsRecovered() {
			continue
		}

		advanced := false
		if p.IsCarrier() {
			p.TrueState++
			advanced = true
			if e.rng.Float64() < e.model.SymptomOnsetProbability(p.TrueState) {
				p.DisplayState = population.Onset
				s.Events.Onsets++
			}
		}

		if !p.IsSymptomatic() {
			e.isolation.OnUnaffected(s, p)
			continue
		}

		onset := p.DisplayState == population.Onset
		e.isolation.OnSymptomatic(s, p, onset)
		e.admission.OnSymptomatic(s, p, onset)

		if e.resolve(s, p) {
			continue
		}
		if advanced {
			p.DisplayState++
		} else {
			p.Advance()
		}
		e.admission.Candidate(s, p)
	}
}

// resolve rolls recovery, then death, against the infection clock. It
// reports whether the person left the infected population.
func (e *Engine) resolve(s *State, p *population.Person) bool {
	day := p.TrueState
	if e.rng.Float64() < e.model.RecoveryProbability(day, p.InHospital) {
		s.Ward.Discharge(p)
		p.Recover()
		s.Counters.Infected--
		s.Counters.Recovered++
		s.Events.Recoveries++
		return true
	}
	if e.rng.Float64() < e.model.DeathProbability(day, p.InHospital) {
		s.Ward.Discharge(p)
		s.Graph.Remove(p.ID)
		s.Counters.Infected--
		s.Counters.Dead++
		s.Events.Deaths++
		return true
	}
	return false
}

func (e *Engine) logDay(s *State) {
	if e.logger != nil {
		e.logger.Debug("day simulated",
			"day", s.Day,
			"healthy", s.Counters.Healthy,
			"infected", s.Counters.Infected,
			"recovered", s.Counters.Recovered,
			"dead", s.Counters.Dead,
			"occupied", s.Ward.Occupied)
		if len(s.Events.Admitted) > 0 {
			logging.Trace(e.logger, "admitted", "day", s.Day, "persons", s.Events.Admitted)
		}
	}
	e.trace.Log(map[string]any{
		"event":     "day",
		"day":       s.Day,
		"isolation": s.Isolation,
		"admission": s.Admission,
		"counters":  s.Counters,
		"events":    s.Events,
		"occupied":  s.Ward.Occupied,
		"capacity":  s.Ward.Capacity,
	})
}
