package device

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailored-agentic-units/echodev/buffer"
	"github.com/tailored-agentic-units/echodev/session"
)

const (
	defaultName     = "echodev"
	defaultListen   = "127.0.0.1:7070"
	defaultObserver = "slog"
)

// Config holds initialization parameters for the device and its subsystems.
// Each subsystem section delegates to that subsystem's constructor.
type Config struct {
	Name     string         `json:"name,omitempty"`
	Listen   string         `json:"listen,omitempty"`
	Observer string         `json:"observer,omitempty"`
	Buffer   buffer.Config  `json:"buffer"`
	Session  session.Config `json:"session"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Name:     defaultName,
		Listen:   defaultListen,
		Observer: defaultObserver,
		Buffer:   buffer.DefaultConfig(),
		Session:  session.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Buffer.Merge(&source.Buffer)
	c.Session.Merge(&source.Session)

	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Listen != "" {
		c.Listen = source.Listen
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
