package epidemic

import "github.com/nvandessel/epigraph/internal/population"

// PersonView is a read-only copy of one person's observable attributes.
type PersonView struct {
	ID           int              `json:"id"`
	DisplayState float64          `json:"state"`
	TrueState    float64          `json:"real"`
	Cluster      int              `json:"loc"`
	Isolated     bool             `json:"isolated"`
	InHospital   bool             `json:"in_hospital"`
	Color        population.Color `json:"color"`
}

// Snapshot is a settled, read-only copy of a State taken between updates.
// Observers receive snapshots, never the live State.
type Snapshot struct {
	Day        int          `json:"day"`
	Population int          `json:"population"`
	Isolation  string       `json:"isolation"`
	Admission  string       `json:"admission"`
	Counters   Counters     `json:"counters"`
	Ward       Ward         `json:"ward"`
	Events     DayEvents    `json:"events"`
	Persons    []PersonView `json:"persons"`
	Edges      [][2]int     `json:"edges"`
}

// Snapshot copies the observable state.
func (s *State) Snapshot() Snapshot {
	ids := s.Graph.IDs()
	persons := make([]PersonView, 0, len(ids))
	for _, id := range ids {
		p := s.Graph.Person(id)
		persons = append(persons, PersonView{
			ID:           p.ID,
			DisplayState: p.DisplayState,
			TrueState:    p.TrueState,
			Cluster:      p.Cluster,
			Isolated:     p.Isolated,
			InHospital:   p.InHospital,
			Color:        p.Color(),
		})
	}

	events := s.Events
	events.Admitted = append([]int(nil), s.Events.Admitted...)

	return Snapshot{
		Day:        s.Day,
		Population: s.Population,
		Isolation:  s.Isolation,
		Admission:  s.Admission,
		Counters:   s.Counters,
		Ward:       *s.Ward,
		Events:     events,
		Persons:    persons,
		Edges:      s.Graph.Edges(),
	}
}
