package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fleetcharge/config"
	"github.com/kilianp07/fleetcharge/core/allocation"
	coremetrics "github.com/kilianp07/fleetcharge/core/metrics"
	"github.com/kilianp07/fleetcharge/core/model"
	"github.com/kilianp07/fleetcharge/core/montecarlo"
	"github.com/kilianp07/fleetcharge/core/report"
	"github.com/kilianp07/fleetcharge/infra/logger"
	"github.com/kilianp07/fleetcharge/infra/metrics"
)

// Planner computes charging plans and deficit sensitivity runs for the
// configured depot.
type Planner struct {
	cfg      *config.Config
	log      logger.Logger
	sink     coremetrics.MetricsSink
	cache    *allocation.Cache
	gatherer prometheus.Gatherer
	now      func() time.Time
	newID    func() string
}

// Option customizes a Planner.
type Option func(*Planner)

// WithLogger replaces the component logger.
func WithLogger(l logger.Logger) Option { return func(p *Planner) { p.log = l } }

// WithSink bypasses the sinks declared in the configuration.
func WithSink(s coremetrics.MetricsSink) Option { return func(p *Planner) { p.sink = s } }

// WithGatherer selects the registry dumped to the metrics textfile.
func WithGatherer(g prometheus.Gatherer) Option { return func(p *Planner) { p.gatherer = g } }

// WithClock overrides the time source stamped on runs.
func WithClock(now func() time.Time) Option { return func(p *Planner) { p.now = now } }

// New creates a Planner from the configuration.
func New(cfg *config.Config, opts ...Option) (*Planner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", model.ErrInvalidConfiguration)
	}
	p := &Planner{
		cfg:      cfg,
		gatherer: prometheus.DefaultGatherer,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logger.NewZerologLogger("planner", cfg.Logging.Level)
	}
	if p.sink == nil {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		p.sink = sink
	}
	engine := allocation.NewEngine(logger.NewZerologLogger("allocation", cfg.Logging.Level))
	p.cache = allocation.NewCache(engine, 0)
	return p, nil
}

// PlanRun is the outcome of one allocation.
type PlanRun struct {
	ID        string
	Time      time.Time
	Request   allocation.Request
	Result    *allocation.Result
	Summary   report.Summary
	Resources []model.ResourceClass
}

// Records returns the dense per vehicle and hour view of the plan.
func (r *PlanRun) Records() []report.Record {
	return report.ToRecords(r.Result)
}

// Assignments returns the slot assignments of the plan. The exact variant
// comes from the engine log; otherwise slots are rebuilt from the matrix.
func (r *PlanRun) Assignments(exact bool) []report.AssignmentRecord {
	if exact {
		return report.FromAssignmentLog(r.Result.Assignments())
	}
	return report.ToAssignmentRecords(r.Result, model.TotalSlots(r.Resources))
}

// HourlyDelivered returns the fleet wide energy delivered per hour.
func (r *PlanRun) HourlyDelivered() []float64 {
	out := make([]float64, r.Result.Hours())
	for h := range out {
		out[h] = r.Result.HourTotal(h)
	}
	return out
}

// Fleet builds the vehicles of the configuration with their initial
// charges, pinned or sampled.
func (p *Planner) Fleet() (model.Fleet, error) {
	fc := p.cfg.Fleet
	fleet, err := model.ExpandFleet(fc.Groups)
	if err != nil {
		return nil, err
	}
	if len(fc.InitialCharges) > 0 {
		return fleet.WithInitialCharges(fc.InitialCharges)
	}
	return montecarlo.SampleInitialCharges(fleet, fc.ChargeRange(), montecarlo.NewSource(fc.Seed))
}

// Plan allocates the charging window for the configured fleet and records
// the outcome to the metrics sink.
func (p *Planner) Plan(ctx context.Context) (*PlanRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fleet, err := p.Fleet()
	if err != nil {
		return nil, fmt.Errorf("fleet: %w", err)
	}
	resources := p.cfg.Chargers.Resources()
	req := allocation.Request{
		Vehicles:      fleet,
		Resources:     resources,
		Rates:         p.cfg.Window.Rates,
		DemandCeiling: p.cfg.Window.DemandCeiling,
		Mode:          p.cfg.Chargers.SlotMode(),
		MaxConcurrent: p.cfg.Chargers.MaxConcurrent,
		ExclusivePlug: p.cfg.Chargers.ExclusivePlug,
	}
	res, err := p.cache.Allocate(req)
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	run := &PlanRun{
		ID:        p.newID(),
		Time:      p.now(),
		Request:   req,
		Result:    res,
		Resources: resources,
		Summary: report.Summarize(res, report.Input{
			Fleet:     fleet,
			Resources: resources,
			Rates:     req.Rates,
			Days:      p.cfg.Window.Days(),
		}),
	}
	p.log.Infow("plan computed", map[string]any{
		"run_id":    run.ID,
		"vehicles":  run.Summary.Vehicles,
		"hours":     run.Summary.Hours,
		"delivered": run.Summary.DeliveredEnergy,
		"unmet":     run.Summary.UnmetEnergy,
		"cost":      run.Summary.TotalCost,
	})
	if run.Summary.WindowInsufficient {
		p.log.Warnf("charging window insufficient for run %s: %.3f kWh unmet", run.ID, run.Summary.UnmetEnergy)
	}
	ev := coremetrics.PlanEvent{
		RunID:           run.ID,
		SlotMode:        req.Mode.String(),
		Time:            run.Time,
		Summary:         run.Summary,
		HourlyDelivered: run.HourlyDelivered(),
		Assignments:     run.Assignments(true),
	}
	if err := p.sink.RecordPlan(ev); err != nil {
		p.log.Errorf("record plan %s: %v", run.ID, err)
	}
	return run, nil
}

// MonteCarloRun is the outcome of one deficit sensitivity analysis.
type MonteCarloRun struct {
	ID      string
	Time    time.Time
	Samples []float64
	Stats   montecarlo.Stats
}

// MonteCarlo samples the fleet deficit distribution. Iterations and
// workers, when positive, override the configuration.
func (p *Planner) MonteCarlo(ctx context.Context, iterations, workers int) (*MonteCarloRun, error) {
	opts := p.cfg.MonteCarlo.Options(p.cfg.Fleet.ChargeRange())
	if iterations > 0 {
		opts.Iterations = iterations
	}
	if workers > 0 {
		opts.Workers = workers
	}
	start := p.now()
	samples, err := montecarlo.SampleDeficit(ctx, p.cfg.Fleet.Groups, opts)
	if err != nil {
		return nil, fmt.Errorf("sample deficit: %w", err)
	}
	run := &MonteCarloRun{
		ID:      p.newID(),
		Time:    start,
		Samples: samples,
		Stats:   montecarlo.Summarize(samples),
	}
	p.log.Infow("deficit sampled", map[string]any{
		"run_id":     run.ID,
		"iterations": run.Stats.N,
		"mean":       run.Stats.Mean,
		"p95":        run.Stats.P95,
	})
	if rec, ok := p.sink.(coremetrics.MonteCarloRecorder); ok {
		ev := coremetrics.MonteCarloEvent{RunID: run.ID, Time: run.Time, Stats: run.Stats, Samples: run.Samples}
		if err := rec.RecordMonteCarlo(ev); err != nil {
			p.log.Errorf("record monte carlo %s: %v", run.ID, err)
		}
	}
	return run, nil
}

// Close writes the metrics textfile, when configured, and releases the
// sinks holding connections.
func (p *Planner) Close() error {
	var errs []error
	if err := metrics.WriteTextfile(p.cfg.Metrics.Textfile, p.gatherer); err != nil {
		errs = append(errs, err)
	}
	if c, ok := p.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// CacheStats reports allocation cache hits and misses since creation.
func (p *Planner) CacheStats() (hits, misses int) {
	return p.cache.Stats()
}
