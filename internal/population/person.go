// Package population models the simulated society: persons, their daily
// contact graph and the rolling contact history used for tracing.
package population

// Illness clock encodings shared by DisplayState and TrueState.
const (
	// Healthy is the clock value of an uninfected (or untracked) person.
	Healthy = 0.0
	// Recovered is terminal: the person is immune for the rest of the run.
	Recovered = 0.5
	// Onset is the first day of an infection or of visible symptoms.
	Onset = 1.0
)

// Color is the display color of a person, derived from state.
type Color string

const (
	ColorHealthy      Color = "blue"
	ColorSymptomatic  Color = "red"
	ColorCarrier      Color = "yellow"
	ColorRecovered    Color = "green"
	ColorHospitalized Color = "black"
)

// Person is one node of the contact graph.
type Person struct {
	// ID is the stable arena index of the person.
	ID int `json:"id"`

	// DisplayState is the observable clock: 0 healthy or untracked,
	// 0.5 recovered, >=1 consecutive days symptomatic.
	DisplayState float64 `json:"state"`

	// TrueState is the ground-truth clock: 0 healthy, 0.5 recovered,
	// >=1 consecutive days infected.
	TrueState float64 `json:"real"`

	// Cluster is the crowd the person belongs to today.
	Cluster int `json:"loc"`

	// History records who the person met over the incubation window.
	History *History `json:"-"`

	Isolated      bool `json:"isolation"`
	IsolationDays int  `json:"iso_day"`

	InHospital       bool `json:"hospital"`
	HospitalPriority int  `json:"hos_order"`
}

// IsHealthy reports whether the person can still be infected.
func (p *Person) IsHealthy() bool { return p.TrueState == Healthy }

// IsRecovered reports whether the person is permanently immune.
func (p *Person) IsRecovered() bool { return p.TrueState == Recovered }

// IsInfected reports an active infection, symptomatic or not.
func (p *Person) IsInfected() bool { return p.TrueState >= Onset }

// IsSymptomatic reports visible symptoms.
func (p *Person) IsSymptomatic() bool { return p.DisplayState >= Onset }

// IsCarrier reports an infection that has not yet shown symptoms.
func (p *Person) IsCarrier() bool { return p.IsInfected() && !p.IsSymptomatic() }

// Color projects the person's state onto a display color.
func (p *Person) Color() Color {
	switch {
	case p.InHospital:
		return ColorHospitalized
	case p.IsRecovered():
		return ColorRecovered
	case p.IsSymptomatic():
		return ColorSymptomatic
	case p.IsInfected():
		return ColorCarrier
	default:
		return ColorHealthy
	}
}

// Recover moves the person into the terminal recovered state and lifts
// isolation. Hospital bookkeeping is the caller's job.
func (p *Person) Recover() {
	p.DisplayState = Recovered
	p.TrueState = Recovered
	p.Isolated = false
	p.InHospital = false
}

// Advance moves both illness clocks forward by one day.
func (p *Person) Advance() {
	p.DisplayState++
	p.TrueState++
}
