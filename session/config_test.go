package session_test

import (
	"testing"

	"github.com/tailored-agentic-units/echodev/session"
)

func TestDefaultConfig(t *testing.T) {
	cfg := session.DefaultConfig()

	if cfg.Nonblocking {
		t.Error("DefaultConfig().Nonblocking = true, want false")
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Merge(&session.Config{Nonblocking: true})

	if !cfg.Nonblocking {
		t.Error("Merge did not apply Nonblocking")
	}

	cfg.Merge(&session.Config{})
	if !cfg.Nonblocking {
		t.Error("Merge with zero config cleared Nonblocking")
	}
}

func TestNew_FromConfig(t *testing.T) {
	cfg := session.Config{Nonblocking: true}
	a := session.New(&cfg, newStore(t, 64))

	s := a.Open()
	if !s.Nonblocking() {
		t.Error("session from non-blocking adapter is blocking")
	}
	if a.Open(session.Blocking()).Nonblocking() {
		t.Error("Blocking() option did not override adapter default")
	}
}
