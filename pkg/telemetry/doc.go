// Package telemetry defines the routing engine's telemetry events and the
// Emitter interface they flow through.
//
// The engine emits two event kinds: per-attempt records and circuit breaker
// state transitions. Shipped sinks are the structured-log emitter here, the
// Prometheus collector in the metrics subpackage, and the durable attempt log
// in the history subpackage; Fanout composes them.
package telemetry
