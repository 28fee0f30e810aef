package epidemic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/epigraph/internal/population"
)

// AdmissionPolicy decides which symptomatic persons get a hospital bed.
type AdmissionPolicy interface {
	// Name identifies the policy in config, logs and metrics.
	Name() string

	// OnSymptomatic is called for every symptomatic person during the daily
	// scan, before resolution.
	OnSymptomatic(s *State, p *population.Person, onset bool)

	// Candidate is called for symptomatic persons who are still ill after
	// the day's recovery and death checks.
	Candidate(s *State, p *population.Person)

	// EndOfDay runs once after the scan.
	EndOfDay(s *State)
}

// Admission policy names.
const (
	AdmissionNone       = "none"
	AdmissionSequential = "sequential"
	AdmissionSeverity   = "severity"
)

// AdmissionNames lists the recognized admission policies.
var AdmissionNames = []string{AdmissionNone, AdmissionSequential, AdmissionSeverity}

// ParseAdmission returns the admission policy registered under name.
func ParseAdmission(name string) (AdmissionPolicy, error) {
	switch strings.ToLower(name) {
	case "", AdmissionNone:
		return NoAdmission{}, nil
	case AdmissionSequential:
		return SequentialAdmission{}, nil
	case AdmissionSeverity:
		return SeverityAdmission{}, nil
	default:
		return nil, fmt.Errorf("unknown admission policy %q (valid: %s)", name, strings.Join(AdmissionNames, ", "))
	}
}

// NoAdmission never hospitalizes anyone.
type NoAdmission struct{}

func (NoAdmission) Name() string                                    { return AdmissionNone }
func (NoAdmission) OnSymptomatic(*State, *population.Person, bool) {}
func (NoAdmission) Candidate(*State, *population.Person)            {}
func (NoAdmission) EndOfDay(*State)                                 {}

// SequentialAdmission admits symptomatic persons in the order the daily
// scan meets them, as long as beds are free.
type SequentialAdmission struct{}

func (SequentialAdmission) Name() string { return AdmissionSequential }

func (SequentialAdmission) OnSymptomatic(s *State, p *population.Person, _ bool) {
	s.Admit(p)
}

func (SequentialAdmission) Candidate(*State, *population.Person) {}
func (SequentialAdmission) EndOfDay(*State)                      {}

// SeverityAdmission ranks patients by their estimated time since
// infection. Every symptomatic person raises the HospitalPriority of each
// contact in their history to at least the days since that meeting; at the
// end of the day the waiting patients are admitted highest priority first.
type SeverityAdmission struct{}

func (SeverityAdmission) Name() string { return AdmissionSeverity }

func (SeverityAdmission) OnSymptomatic(s *State, p *population.Person, _ bool) {
	window := s.Graph.Window()
	p.History.Each(s.Day, func(slot, _ int, contacts []int) {
		elapsed := population.Elapsed(s.Day, slot, window)
		for _, id := range contacts {
			q := s.Graph.Person(id)
			if q == nil || q.IsRecovered() {
				continue
			}
			q.HospitalPriority = max(q.HospitalPriority, elapsed)
		}
	})
}

func (SeverityAdmission) Candidate(s *State, p *population.Person) {
	if !p.InHospital {
		s.queue = append(s.queue, p.ID)
	}
}

// EndOfDay admits while candidates remain and beds are free. Ties keep
// scan order.
func (SeverityAdmission) EndOfDay(s *State) {
	queue := s.queue
	s.queue = nil

	slices.SortStableFunc(queue, func(a, b int) int {
		return priorityOf(s, b) - priorityOf(s, a)
	})
	for i := 0; i < len(queue) && s.Ward.Free() > 0; i++ {
		p := s.Graph.Person(queue[i])
		if p == nil {
			continue
		}
		s.Admit(p)
	}
}

func priorityOf(s *State, id int) int {
	if p := s.Graph.Person(id); p != nil {
		return p.HospitalPriority
	}
	return -1
}
