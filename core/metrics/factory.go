package metrics

import (
	"errors"
	"fmt"
	"io"

	"github.com/kilianp07/fleetcharge/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name. The
// infra/metrics package registers nop, prometheus, influx, mqtt and sqlite.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink types in sorted order.
func SinkTypes() []string {
	return sinkRegistry.Types()
}

// NewMetricsSink builds the sinks listed in a metrics section. No entry
// yields a NopSink and several entries a MultiSink. When one entry fails,
// the sinks already opened are closed before the error is returned.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			err = fmt.Errorf("sink %d (%s): %w", i, c.Type, err)
			return nil, errors.Join(err, NewMultiSink(sinks...).Close())
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// Close closes every sink holding a connection or a file.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
