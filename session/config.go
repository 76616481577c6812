package session

import "github.com/tailored-agentic-units/echodev/buffer"

// Config holds adapter parameters applied to every session it opens.
type Config struct {
	Nonblocking bool `json:"nonblocking,omitempty"` // Sessions fail fast instead of waiting for the store.
}

// DefaultConfig returns the default session configuration (blocking sessions).
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Nonblocking {
		c.Nonblocking = true
	}
}

// New creates an Adapter over store from configuration, with the built-in
// control table.
func New(cfg *Config, store *buffer.Store) *Adapter {
	a := NewAdapter(store, NewControlTable())
	a.nonblocking = cfg.Nonblocking
	return a
}
