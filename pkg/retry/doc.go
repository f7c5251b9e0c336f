// Package retry wraps a single provider call with bounded retries and
// exponential backoff, consulting the provider's circuit breaker before every
// attempt.
//
// A breaker denial aborts immediately with CircuitOpenError, reported
// distinctly from ExhaustedError so the router can fail over to the next
// candidate without burning the remaining attempt budget.
package retry
