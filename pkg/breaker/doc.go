// Package breaker implements the per-provider circuit breaker that gates
// calls to backend LLM providers.
//
// Each breaker is a three-state machine:
//
//	Closed (normal):
//	    - Calls flow through; consecutive provider-attributable failures
//	      are counted.
//	    - Reaching the failure threshold trips the breaker Open.
//
//	Open (blocking):
//	    - Calls are denied immediately, with no network I/O.
//	    - After the open timeout, the next permission check transitions the
//	      breaker to HalfOpen. There is no background timer.
//
//	HalfOpen (probing):
//	    - Exactly one call at a time is admitted as a probe.
//	    - Reaching the success threshold closes the breaker; any failure
//	      reopens it immediately.
//
// Failure classification is supplied by the caller via Verdict: only
// provider-attributable failures move the breaker toward Open.
package breaker
