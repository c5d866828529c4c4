package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	plans int
	runs  int
	err   error
}

func (r *recordSink) RecordPlan(PlanEvent) error {
	r.plans++
	return r.err
}

func (r *recordSink) RecordMonteCarlo(MonteCarloEvent) error {
	r.runs++
	return nil
}

type planOnlySink struct{ plans int }

func (p *planOnlySink) RecordPlan(PlanEvent) error {
	p.plans++
	return nil
}

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &planOnlySink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordPlan(PlanEvent{}); err != nil {
		t.Fatalf("record plan: %v", err)
	}
	if err := m.RecordMonteCarlo(MonteCarloEvent{}); err != nil {
		t.Fatalf("record monte carlo: %v", err)
	}
	if s1.plans != 1 || s2.plans != 1 || s1.runs != 1 {
		t.Fatalf("events not forwarded")
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &planOnlySink{}
	if err := NewMultiSink(s1, s2).RecordPlan(PlanEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s2.plans != 0 {
		t.Fatalf("second sink should not be called")
	}
}
