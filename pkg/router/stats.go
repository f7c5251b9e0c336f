package router

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of routing statistics.
type Stats struct {
	// TotalRequests is the total number of routed requests.
	TotalRequests int64 `json:"total_requests"`

	// RequestsPerProvider tracks successful routings per provider.
	RequestsPerProvider map[string]int64 `json:"requests_per_provider"`

	// Failovers is the number of candidate fail-overs performed.
	Failovers int64 `json:"failovers"`

	// Errors is the number of requests that returned a terminal error.
	Errors int64 `json:"errors"`

	// LastResetTime is when the statistics were last reset.
	LastResetTime time.Time `json:"last_reset_time"`
}

// atomicStats tracks routing statistics with lock-free counters.
type atomicStats struct {
	totalRequests atomic.Int64
	perProvider   sync.Map // map[string]*atomic.Int64
	failovers     atomic.Int64
	errors        atomic.Int64

	mu            sync.RWMutex
	lastResetTime time.Time
}

func newAtomicStats() *atomicStats {
	return &atomicStats{lastResetTime: time.Now()}
}

func (s *atomicStats) incrementTotal() {
	s.totalRequests.Add(1)
}

func (s *atomicStats) incrementProvider(name string) {
	val, _ := s.perProvider.LoadOrStore(name, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func (s *atomicStats) incrementFailovers() {
	s.failovers.Add(1)
}

func (s *atomicStats) incrementErrors() {
	s.errors.Add(1)
}

// snapshot returns the current statistics, safe to read without locks.
func (s *atomicStats) snapshot() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perProvider := make(map[string]int64)
	s.perProvider.Range(func(key, value any) bool {
		perProvider[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return &Stats{
		TotalRequests:       s.totalRequests.Load(),
		RequestsPerProvider: perProvider,
		Failovers:           s.failovers.Load(),
		Errors:              s.errors.Load(),
		LastResetTime:       s.lastResetTime,
	}
}

// reset zeroes all counters.
func (s *atomicStats) reset() {
	s.totalRequests.Store(0)
	s.failovers.Store(0)
	s.errors.Store(0)
	s.perProvider.Range(func(key, _ any) bool {
		s.perProvider.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
