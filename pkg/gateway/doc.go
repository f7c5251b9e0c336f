// Package gateway assembles the running system from a configuration: the
// provider registry, routing engine, health prober, and telemetry sinks.
//
// A Gateway owns one immutable runtime at a time. Hot reload builds a
// complete replacement runtime from the new configuration, swaps it in
// atomically, and retires the old one after a drain window so in-flight
// requests finish against the providers they started with. Telemetry sinks
// (the metrics collector and attempt history) outlive reloads; changing
// their configuration requires a restart.
package gateway
