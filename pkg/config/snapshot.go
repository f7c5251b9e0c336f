package config

import "sync/atomic"

// Store holds the active configuration behind an atomic pointer. Readers get
// a consistent snapshot without locking; a reload publishes a whole new
// configuration rather than mutating the current one.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a store holding the given configuration.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Current returns the active configuration snapshot. The returned value must
// be treated as read-only.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Swap publishes a new configuration and returns the previous one. Callers
// holding the previous snapshot are unaffected.
func (s *Store) Swap(cfg *Config) *Config {
	return s.current.Swap(cfg)
}
