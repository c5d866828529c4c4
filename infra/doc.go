// Package infra contains technical adapters such as the MQTT plan
// publisher, metrics exporters and the SQLite plan history. These packages
// should depend only on the interfaces defined in the core packages.
package infra
