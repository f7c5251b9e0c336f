// Package generic implements an HTTP provider adapter for OpenAI-compatible
// chat completion APIs.
//
// The adapter performs exactly one HTTP call per Invoke and classifies the
// result into retryable, non-retryable, and timeout errors; retry, circuit
// breaking, and fail-over are the routing engine's responsibility. Auth
// header style and endpoint paths are configurable, which covers OpenAI,
// Anthropic, and self-hosted compatible backends with one adapter.
package generic
