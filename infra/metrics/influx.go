package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetcharge/core/metrics"
	"github.com/kilianp07/fleetcharge/infra/logger"
)

// InfluxSink writes charging plans to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlan writes one plan summary point followed by one point per hour.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sum := ev.Summary
	pts := make([]*write.Point, 0, 1+len(ev.HourlyDelivered))
	p := write.NewPointWithMeasurement("charging_plan").
		AddTag("run_id", ev.RunID).
		AddTag("slot_mode", ev.SlotMode).
		AddTag("window_insufficient", strconv.FormatBool(sum.WindowInsufficient)).
		AddField("vehicles", sum.Vehicles).
		AddField("hours", sum.Hours).
		AddField("required_kwh", round3(sum.RequiredEnergy)).
		AddField("delivered_kwh", round3(sum.DeliveredEnergy)).
		AddField("unmet_kwh", round3(sum.UnmetEnergy)).
		AddField("utilization", round3(sum.Utilization)).
		AddField("total_cost", round3(sum.TotalCost)).
		AddField("weekly_cost", round3(sum.WeeklyCost)).
		SetTime(ev.Time)
	if sum.AverageCostPerUnit != nil {
		p = p.AddField("avg_cost_per_kwh", round3(*sum.AverageCostPerUnit))
	}
	pts = append(pts, p)
	for h, e := range ev.HourlyDelivered {
		pts = append(pts, write.NewPointWithMeasurement("charging_hour").
			AddTag("run_id", ev.RunID).
			AddTag("hour", strconv.Itoa(h)).
			AddField("delivered_kwh", round3(e)).
			SetTime(ev.Time.Add(time.Duration(h)*time.Hour)))
	}
	return s.writeAPI.WritePoint(ctx, pts...)
}

// RecordMonteCarlo persists the summary of a deficit sensitivity run.
func (s *InfluxSink) RecordMonteCarlo(ev coremetrics.MonteCarloEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st := ev.Stats
	p := write.NewPointWithMeasurement("deficit_sensitivity").
		AddTag("run_id", ev.RunID).
		AddField("iterations", st.N).
		AddField("mean_kwh", round3(st.Mean)).
		AddField("std_dev_kwh", round3(st.StdDev)).
		AddField("min_kwh", round3(st.Min)).
		AddField("max_kwh", round3(st.Max)).
		AddField("p5_kwh", round3(st.P5)).
		AddField("p50_kwh", round3(st.P50)).
		AddField("p95_kwh", round3(st.P95)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
