// Package metrics exports simulation progress as Prometheus metrics.
//
// A Metrics value is an observer: every observed snapshot sets the
// population gauges and adds the day's events to the counters. All series
// carry the isolation and admission policy names, so concurrent runs of
// different policy combinations stay apart in one registry.
package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

const namespace = "epigraph"

var policyLabels = []string{"isolation", "admission"}

// Metrics holds the simulation gauges and counters.
type Metrics struct {
	// Population is the number of persons per state.
	// Labels: isolation, admission, state (healthy, infected, recovered, dead)
	Population *prometheus.GaugeVec

	// Day is the last observed simulation day.
	Day *prometheus.GaugeVec

	// HospitalOccupied and HospitalCapacity describe the ward.
	HospitalOccupied *prometheus.GaugeVec
	HospitalCapacity *prometheus.GaugeVec

	// Events counts daily transitions.
	// Labels: isolation, admission, event (infection, onset, recovery, death, traced, admission)
	Events *prometheus.CounterVec

	// Meetings counts generated contacts.
	Meetings *prometheus.CounterVec

	// Runs counts started runs (day-0 observations).
	Runs *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers the metrics on reg. A nil reg uses a fresh
// private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Population: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population",
			Help:      "Number of persons by illness state",
		}, append([]string{"state"}, policyLabels...)),
		Day: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "day",
			Help:      "Last observed simulation day",
		}, policyLabels),
		HospitalOccupied: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hospital",
			Name:      "occupied",
			Help:      "Occupied hospital beds",
		}, policyLabels),
		HospitalCapacity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hospital",
			Name:      "capacity",
			Help:      "Total hospital beds",
		}, policyLabels),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Daily transitions by event kind",
		}, append([]string{"event"}, policyLabels...)),
		Meetings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meetings_total",
			Help:      "Contacts generated between persons",
		}, policyLabels),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Simulation runs started",
		}, policyLabels),
		gatherer: reg,
	}
}

// Observe records one snapshot.
func (m *Metrics) Observe(_ context.Context, s epidemic.Snapshot) error {
	iso, adm := s.Isolation, s.Admission

	m.Population.WithLabelValues("healthy", iso, adm).Set(float64(s.Counters.Healthy))
	m.Population.WithLabelValues("infected", iso, adm).Set(float64(s.Counters.Infected))
	m.Population.WithLabelValues("recovered", iso, adm).Set(float64(s.Counters.Recovered))
	m.Population.WithLabelValues("dead", iso, adm).Set(float64(s.Counters.Dead))
	m.Day.WithLabelValues(iso, adm).Set(float64(s.Day))
	m.HospitalOccupied.WithLabelValues(iso, adm).Set(float64(s.Ward.Occupied))
	m.HospitalCapacity.WithLabelValues(iso, adm).Set(float64(s.Ward.Capacity))

	if s.Day == 0 {
		m.Runs.WithLabelValues(iso, adm).Inc()
	}

	e := s.Events
	m.Meetings.WithLabelValues(iso, adm).Add(float64(e.Meetings))
	m.Events.WithLabelValues("infection", iso, adm).Add(float64(e.Infections))
	m.Events.WithLabelValues("onset", iso, adm).Add(float64(e.Onsets))
	m.Events.WithLabelValues("recovery", iso, adm).Add(float64(e.Recoveries))
	m.Events.WithLabelValues("death", iso, adm).Add(float64(e.Deaths))
	m.Events.WithLabelValues("traced", iso, adm).Add(float64(e.Traced))
	m.Events.WithLabelValues("admission", iso, adm).Add(float64(len(e.Admitted)))
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// WriteText writes every gathered metric family in text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
