// Package metrics defines the sinks that record solve outcomes. Sinks like
// PromSink and InfluxSink live in infra/metrics and register themselves in
// the factory; NewMetricsSink returns a MultiSink when several sinks are
// configured.
package metrics
