// Package healthcheck probes registered providers on a cron schedule and
// feeds results through their circuit breakers, so tripped providers recover
// even when no request traffic reaches them.
package healthcheck
