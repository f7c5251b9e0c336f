// Package registry holds the configured providers, their model capability
// index, and their per-provider health handles.
//
// The model index is read-mostly: writers build a fresh immutable index and
// publish it with an atomic pointer swap, so concurrent lookups never observe
// a partially-updated structure and never block on a writer.
package registry
