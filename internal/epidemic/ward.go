package epidemic

import (
	"math"

	"github.com/nvandessel/epigraph/internal/population"
)

// Ward is the hospital: a bounded pool of beds.
type Ward struct {
	Capacity int `json:"capacity"`
	Occupied int `json:"occupied"`
}

// NewWard sizes a ward at floor(populationSize * bedRate) beds.
func NewWard(populationSize int, bedRate float64) *Ward {
	capacity := int(math.Floor(float64(populationSize) * bedRate))
	if capacity < 0 {
		capacity = 0
	}
	return &Ward{Capacity: capacity}
}

// Free returns the number of empty beds.
func (w *Ward) Free() int {
	return w.Capacity - w.Occupied
}

// Admit takes a bed for p. It fails when the ward is full.
func (w *Ward) Admit(p *population.Person) bool {
	if p.InHospital {
		return true
	}
	if w.Occupied >= w.Capacity {
		return false
	}
	w.Occupied++
	p.InHospital = true
	p.Isolated = true
	return true
}

// Discharge frees p's bed, if it holds one.
func (w *Ward) Discharge(p *population.Person) {
	if !p.InHospital {
		return
	}
	w.Occupied--
	p.InHospital = false
	p.Isolated = false
}
