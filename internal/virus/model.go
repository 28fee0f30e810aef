// Package virus holds the distribution model that turns a person's illness
// progression into transition probabilities. The model is pure: it carries
// only its configured coefficients and never mutates population state.
package virus

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Scaling applied to the recovery density. Hospital care improves the odds.
const (
	RecoveryScale         = 20.0
	HospitalRecoveryScale = 30.0

	// HospitalDeathCeilingBonus raises the death ceiling for hospitalized
	// patients, lowering their death probability.
	HospitalDeathCeilingBonus = 5
)

// ErrInvalidParams is returned by NewModel for out-of-range coefficients.
var ErrInvalidParams = errors.New("invalid virus parameters")

// Params configures a Model.
type Params struct {
	// IncubationPeriod (hidden days) is the length of the contact-history
	// window and the day at which symptom onset becomes certain. Default: 14.
	IncubationPeriod int

	// RecoveryMean and RecoveryStdDev shape the normal recovery density.
	// Defaults: 30, 15.
	RecoveryMean   float64
	RecoveryStdDev float64

	// DeathCeiling is the illness day at which death becomes certain. Default: 51.
	DeathCeiling int

	// InfectionCap saturates the sick-neighbor count. Default: 9.
	InfectionCap int
}

// DefaultParams returns the default virus coefficients.
func DefaultParams() Params {
	return Params{
		IncubationPeriod: 14,
		RecoveryMean:     30,
		RecoveryStdDev:   15,
		DeathCeiling:     51,
		InfectionCap:     9,
	}
}

// Validate checks that the coefficients describe a usable model.
func (p Params) Validate() error {
	if p.IncubationPeriod < 1 {
		return fmt.Errorf("%w: incubation period must be at least 1, got %d", ErrInvalidParams, p.IncubationPeriod)
	}
	if p.RecoveryStdDev <= 0 {
		return fmt.Errorf("%w: recovery stddev must be positive, got %f", ErrInvalidParams, p.RecoveryStdDev)
	}
	if p.DeathCeiling < 1 {
		return fmt.Errorf("%w: death ceiling must be at least 1, got %d", ErrInvalidParams, p.DeathCeiling)
	}
	if p.InfectionCap < 0 {
		return fmt.Errorf("%w: infection cap must be non-negative, got %d", ErrInvalidParams, p.InfectionCap)
	}
	return nil
}

// Model computes recovery, death, infection and symptom-onset probabilities.
type Model struct {
	params   Params
	recovery distuv.Normal
}

// NewModel validates params and builds a Model.
func NewModel(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		params: params,
		recovery: distuv.Normal{
			Mu:    params.RecoveryMean,
			Sigma: params.RecoveryStdDev,
		},
	}, nil
}

// Params returns the model's coefficients.
func (m *Model) Params() Params {
	return m.params
}

// IncubationPeriod returns the hidden-day window length.
func (m *Model) IncubationPeriod() int {
	return m.params.IncubationPeriod
}

// RecoveryProbability is the scaled normal density at illnessDay.
func (m *Model) RecoveryProbability(illnessDay float64, inHospital bool) float64 {
	scale := RecoveryScale
	if inHospital {
		scale = HospitalRecoveryScale
	}
	return clamp01(m.recovery.Prob(illnessDay) * scale)
}

// DeathProbability follows 1 / (ceiling - min(day, ceiling)). The
// denominator never drops below 1, so the probability reaches 1.0 at
// ceiling-1 and stays there.
func (m *Model) DeathProbability(illnessDay float64, inHospital bool) float64 {
	ceiling := float64(m.params.DeathCeiling)
	if inHospital {
		ceiling += HospitalDeathCeilingBonus
	}
	x := math.Min(illnessDay, ceiling)
	denom := math.Max(ceiling-x, 1)
	return clamp01(1 / denom)
}

// InfectionProbability is log10(1 + min(n, cap)); monotonic and saturating.
func (m *Model) InfectionProbability(sickNeighbors int) float64 {
	n := sickNeighbors
	if n > m.params.InfectionCap {
		n = m.params.InfectionCap
	}
	if n < 0 {
		n = 0
	}
	return clamp01(math.Log10(1 + float64(n)))
}

// SymptomOnsetProbability ramps linearly to 1.0 at the incubation period.
func (m *Model) SymptomOnsetProbability(infectionDay float64) float64 {
	return clamp01(infectionDay / float64(m.params.IncubationPeriod))
}

// IsolationExpired reports whether an isolation of daysIsolated days has
// covered the full incubation period.
func (m *Model) IsolationExpired(daysIsolated int) bool {
	return daysIsolated >= m.params.IncubationPeriod
}

func clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
