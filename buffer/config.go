package buffer

import "fmt"

const (
	DefaultInitialCapacity int64 = 4096
	DefaultMaxCapacity     int64 = 1 << 20
	DefaultMinCapacity     int64 = 1
)

// Config holds store initialization parameters. All sizes are in bytes.
type Config struct {
	InitialCapacity int64 `json:"initial_capacity,omitempty"`
	MaxCapacity     int64 `json:"max_capacity,omitempty"`
	MinCapacity     int64 `json:"min_capacity,omitempty"`
}

// DefaultConfig returns a 4 KiB store with a 1 MiB ceiling.
func DefaultConfig() Config {
	return Config{
		InitialCapacity: DefaultInitialCapacity,
		MaxCapacity:     DefaultMaxCapacity,
		MinCapacity:     DefaultMinCapacity,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.InitialCapacity > 0 {
		c.InitialCapacity = source.InitialCapacity
	}
	if source.MaxCapacity > 0 {
		c.MaxCapacity = source.MaxCapacity
	}
	if source.MinCapacity > 0 {
		c.MinCapacity = source.MinCapacity
	}
}

// Validate reports whether the bounds are ordered and the initial capacity
// lies within them.
func (c *Config) Validate() error {
	if c.MinCapacity < 1 {
		return fmt.Errorf("%w: min_capacity %d < 1", ErrInvalidConfig, c.MinCapacity)
	}
	if c.MaxCapacity < c.MinCapacity {
		return fmt.Errorf("%w: max_capacity %d < min_capacity %d", ErrInvalidConfig, c.MaxCapacity, c.MinCapacity)
	}
	if c.InitialCapacity < c.MinCapacity || c.InitialCapacity > c.MaxCapacity {
		return fmt.Errorf("%w: initial_capacity %d outside [%d, %d]",
			ErrInvalidConfig, c.InitialCapacity, c.MinCapacity, c.MaxCapacity)
	}
	return nil
}
