// Package balancer implements the load-balancing strategy family used by the
// router to pick among healthy provider candidates.
//
// Available strategies:
//   - round-robin:       shared atomic cursor per candidate set
//   - least-latency:     lowest rolling-average latency, ties round-robin
//   - least-connections: smallest in-flight request count
//   - cost-optimized:    lowest static cost meeting a latency floor
//   - weighted-random:   probability proportional to configured weight
//
// Adaptive strategies read the shared per-provider health state maintained by
// the circuit breaker; selection state itself is held in per-candidate-set
// atomics, so no cross-request locking is required.
package balancer
