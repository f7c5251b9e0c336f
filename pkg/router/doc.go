// Package router is the top-level entry point of the routing engine. It
// resolves the candidate providers for each request via the routing rules and
// model index, applies the configured balancing strategy, executes attempts
// through the retry executor and per-provider circuit breakers, and fails
// over across candidates under a single overall request deadline.
//
// Terminal errors carry the full list of attempted providers; transient
// failures are handled internally and never surface unless every avenue is
// exhausted.
package router
