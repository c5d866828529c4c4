package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremetrics "github.com/kilianp07/fleetcharge/core/metrics"
	"github.com/kilianp07/fleetcharge/core/montecarlo"
	"github.com/kilianp07/fleetcharge/core/report"
	"github.com/kilianp07/fleetcharge/infra/logger"
)

// PlanMessage is the payload published for every computed plan.
type PlanMessage struct {
	MessageID       string                    `json:"message_id"`
	RunID           string                    `json:"run_id"`
	SlotMode        string                    `json:"slot_mode"`
	Timestamp       int64                     `json:"timestamp"`
	Summary         report.Summary            `json:"summary"`
	HourlyDelivered []float64                 `json:"hourly_delivered"`
	Assignments     []report.AssignmentRecord `json:"assignments"`
}

// MonteCarloMessage is the payload published for every sensitivity run.
type MonteCarloMessage struct {
	MessageID string           `json:"message_id"`
	RunID     string           `json:"run_id"`
	Timestamp int64            `json:"timestamp"`
	Stats     montecarlo.Stats `json:"stats"`
}

// Sink publishes charging plans to an MQTT broker so that depot
// controllers can pick up their slot assignments.
type Sink struct {
	cli        pahoClient
	cfg        Config
	log        logger.Logger
	maxRetries int
	backoff    time.Duration
}

// NewSink connects to the broker described by cfg.
func NewSink(cfg Config) (*Sink, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_sink")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	retries, backoff := cfg.retryPolicy()
	return &Sink{cli: c, cfg: cfg, log: log, maxRetries: retries, backoff: backoff}, nil
}

// PlanTopic returns the topic a plan with the given run id is published on.
func (s *Sink) PlanTopic(runID string) string {
	return fmt.Sprintf("%s/plans/%s", s.cfg.prefix(), runID)
}

// MonteCarloTopic returns the topic a sensitivity run is published on.
func (s *Sink) MonteCarloTopic(runID string) string {
	return fmt.Sprintf("%s/montecarlo/%s", s.cfg.prefix(), runID)
}

// RecordPlan publishes the plan summary and its slot assignments.
func (s *Sink) RecordPlan(ev coremetrics.PlanEvent) error {
	msg := PlanMessage{
		MessageID:       uuid.NewString(),
		RunID:           ev.RunID,
		SlotMode:        ev.SlotMode,
		Timestamp:       ev.Time.UnixMilli(),
		Summary:         ev.Summary,
		HourlyDelivered: ev.HourlyDelivered,
		Assignments:     ev.Assignments,
	}
	return s.publish(s.PlanTopic(ev.RunID), s.cfg.qos("plan"), msg)
}

// RecordMonteCarlo publishes the summary statistics of a sensitivity run.
func (s *Sink) RecordMonteCarlo(ev coremetrics.MonteCarloEvent) error {
	msg := MonteCarloMessage{
		MessageID: uuid.NewString(),
		RunID:     ev.RunID,
		Timestamp: ev.Time.UnixMilli(),
		Stats:     ev.Stats,
	}
	return s.publish(s.MonteCarloTopic(ev.RunID), s.cfg.qos("montecarlo"), msg)
}

func (s *Sink) publish(topic string, qos byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		token := s.cli.Publish(topic, qos, s.cfg.Retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			s.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		s.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < s.maxRetries {
			time.Sleep(s.backoff * time.Duration(1<<attempt))
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close gracefully closes the MQTT connection.
func (s *Sink) Close() error {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
	return nil
}
