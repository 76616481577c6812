// Package device exposes one buffer.Store as a named, openable byte device.
// It owns the store for its whole lifetime, tracks open sessions by
// identifier, reports every operation to an observer, and tears the store down
// on Shutdown once all sessions are gone.
//
//	d, err := device.New(&cfg)
//	s, err := d.Open(ctx)
//	n, truncated, err := d.Write(ctx, s.ID(), []byte("HELLOWORLD"))
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tailored-agentic-units/echodev/buffer"
	"github.com/tailored-agentic-units/echodev/observability"
	"github.com/tailored-agentic-units/echodev/session"
)

// Option configures a Device after config-driven initialization.
// Overrides replace config-created defaults.
type Option func(*Device)

// WithObserver overrides the configured observer.
func WithObserver(o observability.Observer) Option {
	return func(d *Device) { d.observer = o }
}

// WithLogger replaces the configured observer with a SlogObserver on logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) { d.observer = observability.NewSlogObserver(logger) }
}

// WithStore overrides the config-created store. The device takes ownership
// and closes it on Shutdown.
func WithStore(s *buffer.Store) Option {
	return func(d *Device) { d.store = s }
}

// Device is the single shared byte device and its table of open sessions.
type Device struct {
	name     string
	store    *buffer.Store
	adapter  *session.Adapter
	observer observability.Observer
	sessions map[string]*session.Session
	mu       sync.RWMutex
	shutdown bool
	released bool
	stats    counters
}

// New creates a Device from configuration.
func New(cfg *Config, opts ...Option) (*Device, error) {
	name := cfg.Observer
	if name == "" {
		name = defaultObserver
	}
	observer, err := observability.GetObserver(name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	d := &Device{
		name:     cfg.Name,
		observer: observer,
		sessions: make(map[string]*session.Session),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.store == nil {
		store, err := buffer.New(&cfg.Buffer)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		d.store = store
	}
	d.adapter = session.New(&cfg.Session, d.store)

	return d, nil
}

// Name returns the configured device name.
func (d *Device) Name() string {
	return d.name
}

// Controls returns the control table shared by all sessions, for registering
// additional codes.
func (d *Device) Controls() *session.ControlTable {
	return d.adapter.Controls()
}

// Stats returns a snapshot of the operation counters.
func (d *Device) Stats() Stats {
	return d.stats.snapshot()
}

// Sessions returns the identifiers of all open sessions in sorted order.
func (d *Device) Sessions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.sessions))
	for id := range d.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Open creates a session with its cursor at 0. It fails only after Shutdown.
func (d *Device) Open(ctx context.Context, opts ...session.Option) (*session.Session, error) {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return nil, ErrShutdown
	}
	s := d.adapter.Open(opts...)
	d.sessions[s.ID()] = s
	open := len(d.sessions)
	d.mu.Unlock()

	d.stats.opens.Add(1)
	d.emit(ctx, EventOpen, observability.LevelInfo, "device.Open", s.ID(), map[string]any{
		"nonblocking": s.Nonblocking(),
		"open":        open,
	})
	return s, nil
}

// Lookup returns the open session with the given identifier.
func (d *Device) Lookup(id string) (*session.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Read returns at most count bytes from the session's cursor. An empty result
// means end of data.
func (d *Device) Read(ctx context.Context, id string, count int) ([]byte, error) {
	s, err := d.Lookup(id)
	if err != nil {
		return nil, err
	}

	data, err := s.Read(ctx, count)
	if err != nil {
		d.fail(ctx, "device.Read", id, "read", err)
		return nil, err
	}

	d.stats.reads.Add(1)
	d.stats.bytesRead.Add(uint64(len(data)))
	d.emit(ctx, EventRead, observability.LevelVerbose, "device.Read", id, map[string]any{
		"requested": count,
		"bytes":     len(data),
		"cursor":    s.Cursor(),
	})
	return data, nil
}

// Write stages a private copy of data and writes it at the session's cursor.
// truncated reports that only the first n bytes fit.
func (d *Device) Write(ctx context.Context, id string, data []byte) (n int, truncated bool, err error) {
	s, err := d.Lookup(id)
	if err != nil {
		return 0, false, err
	}

	n, truncated, err = s.Write(ctx, slices.Clone(data))
	if err != nil {
		d.fail(ctx, "device.Write", id, "write", err)
		return 0, false, err
	}

	d.stats.writes.Add(1)
	d.stats.bytesWritten.Add(uint64(n))

	event, level := EventWrite, observability.LevelVerbose
	if truncated {
		d.stats.truncations.Add(1)
		event, level = EventWriteTruncated, observability.LevelWarning
	}
	d.emit(ctx, event, level, "device.Write", id, map[string]any{
		"requested": len(data),
		"bytes":     n,
		"cursor":    s.Cursor(),
	})
	return n, truncated, nil
}

// Control runs a control code for the session and returns its 8-byte result.
func (d *Device) Control(ctx context.Context, id string, code session.Code, payload []byte) ([]byte, error) {
	s, err := d.Lookup(id)
	if err != nil {
		return nil, err
	}

	out, err := s.Control(ctx, code, payload)
	if err != nil {
		d.fail(ctx, "device.Control", id, code.String(), err)
		return nil, err
	}

	d.stats.controls.Add(1)
	d.emit(ctx, EventControl, observability.LevelInfo, "device.Control", id, map[string]any{
		"code": code.String(),
	})
	return out, nil
}

// Close discards the session. The store is unaffected.
func (d *Device) Close(ctx context.Context, id string) error {
	d.mu.Lock()
	s, ok := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	d.stats.closes.Add(1)
	d.emit(ctx, EventClose, observability.LevelInfo, "device.Close", id, map[string]any{
		"cursor": s.Cursor(),
	})
	return nil
}

// Shutdown refuses further opens, discards every open session, and destroys
// the store once any in-flight operation has released it. If waiting for the
// store is interrupted, the device stays closed to new sessions and a later
// Shutdown retries the teardown.
func (d *Device) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return ErrShutdown
	}
	dropped := 0
	if !d.shutdown {
		d.shutdown = true
		dropped = len(d.sessions)
		d.sessions = make(map[string]*session.Session)
	}
	d.mu.Unlock()

	d.stats.closes.Add(uint64(dropped))

	if err := d.store.Close(ctx); err != nil {
		if errors.Is(err, buffer.ErrClosed) {
			return ErrShutdown
		}
		d.fail(ctx, "device.Shutdown", "", "shutdown", err)
		return fmt.Errorf("failed to close store: %w", err)
	}

	d.mu.Lock()
	d.released = true
	d.mu.Unlock()

	d.emit(ctx, EventShutdown, observability.LevelInfo, "device.Shutdown", "", map[string]any{
		"dropped_sessions": dropped,
	})
	return nil
}

func (d *Device) fail(ctx context.Context, source, id, op string, err error) {
	d.stats.errors.Add(1)
	d.emit(ctx, EventError, observability.LevelWarning, source, id, map[string]any{
		"op":    op,
		"error": err.Error(),
	})
}

func (d *Device) emit(ctx context.Context, typ observability.EventType, level observability.Level, source, id string, data map[string]any) {
	d.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Session:   id,
		Data:      data,
	})
}
