// Package history persists routing telemetry to SQLite for after-the-fact
// inspection: which providers served which requests, how attempts resolved,
// and when breakers tripped.
//
// The Store owns the database; the Recorder adapts it to the
// telemetry.Emitter interface with an asynchronous buffered writer so the
// request path never blocks on disk. Retention pruning is driven externally
// on a cron schedule.
package history
