package metrics

import (
	"time"

	"github.com/kilianp07/fleetcharge/core/montecarlo"
	"github.com/kilianp07/fleetcharge/core/report"
)

// PlanEvent describes one computed charging plan.
type PlanEvent struct {
	RunID    string
	SlotMode string
	Time     time.Time
	Summary  report.Summary
	// HourlyDelivered is the energy delivered to the whole fleet per hour.
	HourlyDelivered []float64
	// Assignments is the exact slot log of the run, zero-energy slots
	// excluded.
	Assignments []report.AssignmentRecord
}

// MetricsSink records charging plans for observability purposes.
type MetricsSink interface {
	RecordPlan(ev PlanEvent) error
}

// MonteCarloEvent describes one deficit sensitivity run.
type MonteCarloEvent struct {
	RunID   string
	Time    time.Time
	Stats   montecarlo.Stats
	Samples []float64
}

// MonteCarloRecorder is implemented by sinks able to record Monte Carlo
// runs.
type MonteCarloRecorder interface {
	RecordMonteCarlo(ev MonteCarloEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanEvent) error             { return nil }
func (NopSink) RecordMonteCarlo(MonteCarloEvent) error { return nil }

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the plan to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordPlan(ev PlanEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordMonteCarlo forwards the run to the sinks supporting it.
func (m *MultiSink) RecordMonteCarlo(ev MonteCarloEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(MonteCarloRecorder); ok {
			if err := rec.RecordMonteCarlo(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
