package metrics

import "github.com/kilianp07/fleetcharge/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// Textfile, when set, receives the Prometheus registry in text format
	// after each command so a node exporter can pick it up.
	Textfile string `json:"textfile"`
}
