package epidemic

import (
	"fmt"
	"strings"

	"github.com/nvandessel/epigraph/internal/population"
)

// IsolationPolicy decides who is cut off from contact generation.
type IsolationPolicy interface {
	// Name identifies the policy in config, logs and metrics.
	Name() string

	// AllowsContacts reports whether same-day contacts are generated at all.
	AllowsContacts() bool

	// OnSymptomatic is called for every symptomatic person during the daily
	// scan, before resolution. onset is true on the first symptomatic day.
	OnSymptomatic(s *State, p *population.Person, onset bool)

	// OnUnaffected is called for every alive person without symptoms who
	// is not recovered.
	OnUnaffected(s *State, p *population.Person)
}

// Isolation policy names.
const (
	IsolationNone     = "none"
	IsolationComplete = "complete"
	IsolationPartial  = "partial"
	IsolationTimely   = "timely"
)

// IsolationNames lists the recognized isolation policies.
var IsolationNames = []string{IsolationNone, IsolationComplete, IsolationPartial, IsolationTimely}

// ParseIsolation returns the isolation policy registered under name.
func ParseIsolation(name string) (IsolationPolicy, error) {
	switch strings.ToLower(name) {
	case "", IsolationNone:
		return NoIsolation{}, nil
	case IsolationComplete:
		return CompleteIsolation{}, nil
	case IsolationPartial:
		return PartialIsolation{}, nil
	case IsolationTimely:
		return TimelyIsolation{}, nil
	default:
		return nil, fmt.Errorf("unknown isolation policy %q (valid: %s)", name, strings.Join(IsolationNames, ", "))
	}
}

// NoIsolation leaves contacts unrestricted.
type NoIsolation struct{}

func (NoIsolation) Name() string                                    { return IsolationNone }
func (NoIsolation) AllowsContacts() bool                            { return true }
func (NoIsolation) OnSymptomatic(*State, *population.Person, bool) {}
func (NoIsolation) OnUnaffected(*State, *population.Person)         {}

// CompleteIsolation separates everyone from everyone: no contacts are
// generated, so nobody is infected through contact. Existing infections
// still progress and resolve.
type CompleteIsolation struct{}

func (CompleteIsolation) Name() string                                    { return IsolationComplete }
func (CompleteIsolation) AllowsContacts() bool                            { return false }
func (CompleteIsolation) OnSymptomatic(*State, *population.Person, bool) {}
func (CompleteIsolation) OnUnaffected(*State, *population.Person)         {}

// PartialIsolation isolates a person once symptoms show and cuts today's
// edges to neighbors without visible illness. Isolation ends on recovery.
type PartialIsolation struct{}

func (PartialIsolation) Name() string         { return IsolationPartial }
func (PartialIsolation) AllowsContacts() bool { return true }

func (PartialIsolation) OnSymptomatic(s *State, p *population.Person, _ bool) {
	p.Isolated = true
	for _, n := range s.Graph.Neighbors(p.ID) {
		q := s.Graph.Person(n)
		if q != nil && q.DisplayState == population.Healthy {
			s.Graph.RemoveEdge(p.ID, n)
		}
	}
}

func (PartialIsolation) OnUnaffected(*State, *population.Person) {}

// TimelyIsolation traces contacts: on the day a person turns symptomatic,
// everyone in their contact history is isolated with a head start equal to
// the days since the meeting. Isolation of a contact is lifted once it has
// covered the incubation period and the contact carries no infection.
type TimelyIsolation struct{}

func (TimelyIsolation) Name() string         { return IsolationTimely }
func (TimelyIsolation) AllowsContacts() bool { return true }

func (TimelyIsolation) OnSymptomatic(s *State, p *population.Person, onset bool) {
	p.Isolated = true
	if !onset {
		return
	}
	window := s.Graph.Window()
	p.History.Each(s.Day, func(slot, _ int, contacts []int) {
		elapsed := population.Elapsed(s.Day, slot, window)
		for _, id := range contacts {
			q := s.Graph.Person(id)
			if q == nil || q.ID == p.ID || q.IsRecovered() {
				continue
			}
			if !q.Isolated {
				q.Isolated = true
				q.IsolationDays = elapsed
			} else {
				q.IsolationDays = min(q.IsolationDays, elapsed)
			}
			s.markTraced(q.ID)
			s.Events.Traced++
		}
	})
}

func (TimelyIsolation) OnUnaffected(s *State, p *population.Person) {
	// The elapsed days set by tracing already count today.
	if !p.Isolated || p.InHospital || s.tracedToday(p.ID) {
		return
	}
	p.IsolationDays++
	if s.model.IsolationExpired(p.IsolationDays) && !p.IsInfected() {
		p.Isolated = false
	}
}
