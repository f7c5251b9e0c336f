// Package providers defines the provider abstraction used by the routing
// engine: the Provider interface, the canonical request/response types, and
// the pre-classified error taxonomy that drives retry and circuit-breaker
// decisions.
//
// Concrete adapters live in subpackages (see generic for the HTTP adapter).
// The routing engine depends only on the interfaces defined here.
package providers
