package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetcharge/config"
	coremetrics "github.com/kilianp07/fleetcharge/core/metrics"
	"github.com/kilianp07/fleetcharge/core/model"
	"github.com/kilianp07/fleetcharge/core/report"
	"github.com/kilianp07/fleetcharge/infra/logger"
	"github.com/kilianp07/fleetcharge/infra/metrics"
)

type recordingSink struct {
	plans  []coremetrics.PlanEvent
	mcs    []coremetrics.MonteCarloEvent
	err    error
	closed bool
}

func (s *recordingSink) RecordPlan(ev coremetrics.PlanEvent) error {
	s.plans = append(s.plans, ev)
	return s.err
}

func (s *recordingSink) RecordMonteCarlo(ev coremetrics.MonteCarloEvent) error {
	s.mcs = append(s.mcs, ev)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

// scenario is three 60 kWh vehicles, one empty, one 60 kWh charger and a
// single hour window.
func scenario() *config.Config {
	cfg, err := config.DecodeScenario(strings.NewReader(`
fleet:
  groups:
    - count: 3
      capacity: 60
  initial_charges: [0, 60, 60]
chargers:
  classes:
    - name: dc
      count: 1
      unit_capacity: 60
window:
  rates: [1]
`), "yaml")
	if err != nil {
		panic(err)
	}
	return cfg
}

func newPlanner(t *testing.T, cfg *config.Config, sink coremetrics.MetricsSink) *Planner {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC) }
	p, err := New(cfg, WithSink(sink), WithLogger(logger.NopLogger{}), WithClock(clock), WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)
	return p
}

func TestPlan(t *testing.T) {
	sink := &recordingSink{}
	p := newPlanner(t, scenario(), sink)

	run, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, [][]float64{{60}, {0}, {0}}, run.Result.Matrix())
	assert.InDelta(t, 60, run.Summary.DeliveredEnergy, 1e-9)
	assert.False(t, run.Summary.WindowInsufficient)
	assert.Equal(t, []float64{60}, run.HourlyDelivered())
	assert.Equal(t, []report.AssignmentRecord{{Hour: 0, Slot: 0, Vehicle: 0, Energy: 60}}, run.Assignments(true))
	assert.Equal(t, run.Assignments(true), run.Assignments(false))
	assert.Len(t, run.Records(), 3)

	require.Len(t, sink.plans, 1)
	ev := sink.plans[0]
	assert.Equal(t, run.ID, ev.RunID)
	assert.Equal(t, "per_class", ev.SlotMode)
	assert.Equal(t, run.Summary, ev.Summary)
	assert.Len(t, ev.Assignments, 1)
}

func TestPlanUsesCache(t *testing.T) {
	p := newPlanner(t, scenario(), &recordingSink{})
	first, err := p.Plan(context.Background())
	require.NoError(t, err)
	second, err := p.Plan(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Same(t, first.Result, second.Result)
	hits, misses := p.CacheStats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestPlanWindowInsufficient(t *testing.T) {
	cfg := scenario()
	cfg.Fleet.InitialCharges = []float64{0, 10, 50}
	cfg.Window.DemandCeiling = model.Ceiling(20)
	p := newPlanner(t, cfg, &recordingSink{})

	run, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{20}, {0}, {0}}, run.Result.Matrix())
	assert.True(t, run.Summary.WindowInsufficient)
	assert.InDelta(t, 100, run.Summary.UnmetEnergy, 1e-9)
}

func TestPlanSampledChargesAreSeeded(t *testing.T) {
	cfg := scenario()
	cfg.Fleet.InitialCharges = nil
	cfg.Fleet.Seed = 42
	p := newPlanner(t, cfg, &recordingSink{})

	a, err := p.Fleet()
	require.NoError(t, err)
	b, err := p.Fleet()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	for _, v := range a {
		assert.GreaterOrEqual(t, v.InitialCharge, 9.0)
		assert.LessOrEqual(t, v.InitialCharge, 24.0)
	}
}

func TestPlanSinkErrorDoesNotFail(t *testing.T) {
	p := newPlanner(t, scenario(), &recordingSink{err: errors.New("down")})
	_, err := p.Plan(context.Background())
	assert.NoError(t, err)
}

func TestPlanCanceled(t *testing.T) {
	p := newPlanner(t, scenario(), &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Plan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonteCarlo(t *testing.T) {
	cfg := scenario()
	cfg.Fleet.Groups = []model.VehicleGroup{{Count: 5, Capacity: 100}}
	cfg.MonteCarlo.Seed = 3
	sink := &recordingSink{}
	p := newPlanner(t, cfg, sink)

	run, err := p.MonteCarlo(context.Background(), 400, 2)
	require.NoError(t, err)
	assert.Len(t, run.Samples, 400)
	assert.Equal(t, 400, run.Stats.N)
	assert.GreaterOrEqual(t, run.Stats.Min, 300.0)
	assert.LessOrEqual(t, run.Stats.Max, 425.0)

	require.Len(t, sink.mcs, 1)
	assert.Equal(t, run.Stats, sink.mcs[0].Stats)

	_, err = p.MonteCarlo(context.Background(), -1, 0)
	assert.NoError(t, err, "negative overrides fall back to the configuration")
}

func TestNewFromConfiguredSinks(t *testing.T) {
	cfg := scenario()
	p, err := New(cfg, WithLogger(logger.NopLogger{}))
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, p.sink)

	_, err = New(nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
}

func TestCloseWritesTextfileAndClosesSinks(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	closer := &recordingSink{}

	cfg := scenario()
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "fleetcharge.prom")
	p, err := New(cfg, WithSink(coremetrics.NewMultiSink(prom, closer)), WithLogger(logger.NopLogger{}), WithGatherer(reg))
	require.NoError(t, err)

	_, err = p.Plan(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	assert.True(t, closer.closed)
	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fleetcharge_energy_delivered_kwh 60")
}
