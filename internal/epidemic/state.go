// Package epidemic runs the day-by-day epidemic on a contact graph. An
// Engine owns the transition rules; a State holds everything a run
// mutates (graph, counters, hospital ward, day). Isolation and admission
// policies are injected into the Engine and composed orthogonally.
package epidemic

import (
	"errors"
	"fmt"

	"github.com/nvandessel/epigraph/internal/population"
	"github.com/nvandessel/epigraph/internal/virus"
)

// ErrInvariant reports an inconsistent State after a day's update.
var ErrInvariant = errors.New("simulation invariant violated")

// Counters are the population totals. Dead persons are removed from the
// graph but still counted, so the four fields always sum to the initial
// population size.
type Counters struct {
	Healthy   int `json:"healthy"`
	Infected  int `json:"infected"`
	Recovered int `json:"recovered"`
	Dead      int `json:"dead"`
}

// Total returns the sum of all counters.
func (c Counters) Total() int {
	return c.Healthy + c.Infected + c.Recovered + c.Dead
}

// DayEvents summarizes what happened during the last update.
type DayEvents struct {
	Meetings   int   `json:"meetings"`
	Infections int   `json:"infections"`
	Onsets     int   `json:"onsets"`
	Recoveries int   `json:"recoveries"`
	Deaths     int   `json:"deaths"`
	Traced     int   `json:"traced"`
	Admitted   []int `json:"admitted,omitempty"`
}

// State is the mutable state of one simulation run.
type State struct {
	Day        int
	Population int
	Graph      *population.Graph
	Counters   Counters
	Ward       *Ward
	Events     DayEvents

	// Isolation and Admission name the policies driving this run.
	Isolation string
	Admission string

	model *virus.Model
	queue []int

	// traced maps a person to the last day contact tracing isolated them.
	traced map[int]int
}

func (s *State) markTraced(id int) {
	if s.traced == nil {
		s.traced = make(map[int]int)
	}
	s.traced[id] = s.Day
}

// tracedToday reports whether id was traced during the current update.
func (s *State) tracedToday(id int) bool {
	day, ok := s.traced[id]
	return ok && day == s.Day
}

// NewState wraps an existing graph. Counters are derived from the
// persons' current states; persons missing from the arena count as dead.
func NewState(g *population.Graph, model *virus.Model, ward *Ward) *State {
	s := &State{
		Population: g.Size(),
		Graph:      g,
		Ward:       ward,
		model:      model,
	}
	if s.Ward == nil {
		s.Ward = NewWard(g.Size(), 0)
	}
	s.Counters.Dead = g.Size() - g.Len()
	for _, id := range g.IDs() {
		p := g.Person(id)
		switch {
		case p.IsRecovered():
			s.Counters.Recovered++
		case p.IsInfected():
			s.Counters.Infected++
		default:
			s.Counters.Healthy++
		}
	}
	return s
}

// Model returns the distribution model the run uses.
func (s *State) Model() *virus.Model {
	return s.model
}

// Clear reports whether no infected persons remain. It is a steady state,
// not an end: updates remain valid.
func (s *State) Clear() bool {
	return s.Counters.Infected == 0
}

// Admit hospitalizes a symptomatic person if a bed is free. Admission
// isolates the person and drops today's contacts.
func (s *State) Admit(p *population.Person) bool {
	if p.InHospital || !p.IsSymptomatic() {
		return false
	}
	if !s.Ward.Admit(p) {
		return false
	}
	s.Graph.DropEdges(p.ID)
	s.Events.Admitted = append(s.Events.Admitted, p.ID)
	return true
}

// CheckInvariant verifies the counter and ward invariants.
func (s *State) CheckInvariant() error {
	if total := s.Counters.Total(); total != s.Population {
		return fmt.Errorf("%w: counters %+v sum to %d, population is %d", ErrInvariant, s.Counters, total, s.Population)
	}
	if dead := s.Graph.Size() - s.Graph.Len(); dead != s.Counters.Dead {
		return fmt.Errorf("%w: %d removed persons but dead counter is %d", ErrInvariant, dead, s.Counters.Dead)
	}
	if s.Ward.Occupied < 0 || s.Ward.Occupied > s.Ward.Capacity {
		return fmt.Errorf("%w: ward occupancy %d outside [0, %d]", ErrInvariant, s.Ward.Occupied, s.Ward.Capacity)
	}
	return nil
}
