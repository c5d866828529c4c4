package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/fleetcharge/core/metrics"
	"github.com/kilianp07/fleetcharge/core/montecarlo"
	"github.com/kilianp07/fleetcharge/core/report"
)

func TestSinkRecordPlan(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "depot1", Retain: true, QoS: map[string]byte{"plan": 1}})
	require.NoError(t, err)

	now := time.UnixMilli(1700000000000)
	ev := coremetrics.PlanEvent{
		RunID:           "run-1",
		SlotMode:        "per_class",
		Time:            now,
		Summary:         report.Summary{Vehicles: 3, DeliveredEnergy: 120},
		HourlyDelivered: []float64{60, 60},
		Assignments:     []report.AssignmentRecord{{Hour: 0, Slot: 0, Vehicle: 0, Energy: 60}},
	}
	require.NoError(t, sink.RecordPlan(ev))
	require.Len(t, mc.published, 1)

	pub := mc.published[0]
	assert.Equal(t, "depot1/plans/run-1", pub.topic)
	assert.Equal(t, byte(1), pub.qos)
	assert.True(t, pub.retained)

	var msg PlanMessage
	require.NoError(t, json.Unmarshal(pub.payload, &msg))
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)
	assert.Equal(t, 120.0, msg.Summary.DeliveredEnergy)
	assert.Equal(t, ev.Assignments, msg.Assignments)
}

func TestSinkRecordMonteCarloDefaultPrefix(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)

	st := montecarlo.Stats{N: 10, Mean: 350}
	require.NoError(t, sink.RecordMonteCarlo(coremetrics.MonteCarloEvent{RunID: "mc", Time: time.Now(), Stats: st, Samples: make([]float64, 10)}))
	require.Len(t, mc.published, 1)
	assert.Equal(t, "fleetcharge/montecarlo/mc", mc.published[0].topic)
	assert.False(t, mc.published[0].retained)

	var msg MonteCarloMessage
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &msg))
	assert.Equal(t, st, msg.Stats)
}

func TestSinkRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	useMockClient(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)

	require.NoError(t, sink.RecordPlan(coremetrics.PlanEvent{RunID: "r"}))
	assert.Len(t, mc.published, 2)
}

func TestSinkRetriesExhausted(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	useMockClient(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1})
	require.NoError(t, err)

	err = sink.RecordPlan(coremetrics.PlanEvent{RunID: "r"})
	assert.ErrorIs(t, err, fail)
	assert.Len(t, mc.published, 3)
}

func TestNewSinkConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	useMockClient(t, mc)
	_, err := NewSink(Config{Broker: "tcp://localhost:1883"})
	assert.EqualError(t, err, "refused")
}
