// Package metrics defines the sinks that observe charging plans and Monte
// Carlo runs. Implementations live in the infra packages (Prometheus,
// InfluxDB, MQTT, SQLite) and register themselves by name; NewMetricsSink
// builds them from configuration and returns a MultiSink when several are
// configured.
package metrics
