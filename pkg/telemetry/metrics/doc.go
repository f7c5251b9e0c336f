// Package metrics exposes routing telemetry as Prometheus metrics.
//
// The Collector implements telemetry.Emitter, so it plugs into the router's
// telemetry fan-out alongside the structured-log emitter and the persistent
// attempt log. Metrics live on a private registry by default; Handler serves
// the exposition endpoint.
package metrics
