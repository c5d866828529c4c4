package metrics

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetcharge/core/metrics"
)

// PromSink records charging plans in Prometheus metrics.
type PromSink struct {
	plans       *prometheus.CounterVec
	delivered   prometheus.Gauge
	unmet       prometheus.Gauge
	cost        *prometheus.GaugeVec
	utilization prometheus.Gauge
	window      prometheus.Gauge
	hourly      *prometheus.GaugeVec
	deficit     prometheus.Histogram
	deficitStat *prometheus.GaugeVec
}

// NewPromSink registers the plan metrics on the default Prometheus registerer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register registers c or returns the collector already registered under
// the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.plans, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetcharge_plans_total",
		Help: "Number of charging plans computed",
	}, []string{"slot_mode", "window_insufficient"})); err != nil {
		return nil, fmt.Errorf("register plans: %w", err)
	}
	if s.delivered, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleetcharge_energy_delivered_kwh",
		Help: "Energy delivered by the last plan",
	})); err != nil {
		return nil, fmt.Errorf("register delivered: %w", err)
	}
	if s.unmet, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleetcharge_energy_unmet_kwh",
		Help: "Energy still missing at the end of the last plan's window",
	})); err != nil {
		return nil, fmt.Errorf("register unmet: %w", err)
	}
	if s.cost, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetcharge_plan_cost",
		Help: "Cost of the last plan per period",
	}, []string{"period"})); err != nil {
		return nil, fmt.Errorf("register cost: %w", err)
	}
	if s.utilization, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleetcharge_charger_utilization_ratio",
		Help: "Delivered energy over rate-scaled charger throughput for the last plan",
	})); err != nil {
		return nil, fmt.Errorf("register utilization: %w", err)
	}
	if s.window, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleetcharge_window_insufficient",
		Help: "1 when the last plan left energy unmet",
	})); err != nil {
		return nil, fmt.Errorf("register window: %w", err)
	}
	if s.hourly, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetcharge_hourly_energy_kwh",
		Help: "Energy delivered to the fleet per hour of the last plan",
	}, []string{"hour"})); err != nil {
		return nil, fmt.Errorf("register hourly: %w", err)
	}
	if s.deficit, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleetcharge_montecarlo_deficit_kwh",
		Help:    "Distribution of sampled fleet deficits",
		Buckets: prometheus.ExponentialBuckets(50, 1.5, 20),
	})); err != nil {
		return nil, fmt.Errorf("register deficit: %w", err)
	}
	if s.deficitStat, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleetcharge_montecarlo_deficit_stat_kwh",
		Help: "Summary statistics of the last Monte Carlo run",
	}, []string{"stat"})); err != nil {
		return nil, fmt.Errorf("register deficit stats: %w", err)
	}
	return s, nil
}

// RecordPlan updates the plan gauges and counters.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	sum := ev.Summary
	s.plans.WithLabelValues(ev.SlotMode, strconv.FormatBool(sum.WindowInsufficient)).Inc()
	s.delivered.Set(sum.DeliveredEnergy)
	s.unmet.Set(sum.UnmetEnergy)
	s.cost.WithLabelValues("session").Set(sum.TotalCost)
	s.cost.WithLabelValues("week").Set(sum.WeeklyCost)
	s.utilization.Set(sum.Utilization)
	if sum.WindowInsufficient {
		s.window.Set(1)
	} else {
		s.window.Set(0)
	}
	s.hourly.Reset()
	for h, e := range ev.HourlyDelivered {
		s.hourly.WithLabelValues(strconv.Itoa(h)).Set(e)
	}
	return nil
}

// RecordMonteCarlo observes every sample and exports the summary.
func (s *PromSink) RecordMonteCarlo(ev coremetrics.MonteCarloEvent) error {
	for _, v := range ev.Samples {
		s.deficit.Observe(v)
	}
	st := ev.Stats
	for name, v := range map[string]float64{
		"mean": st.Mean, "std_dev": st.StdDev, "min": st.Min, "max": st.Max,
		"p5": st.P5, "p50": st.P50, "p95": st.P95,
	} {
		s.deficitStat.WithLabelValues(name).Set(v)
	}
	return nil
}
