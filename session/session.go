// Package session presents a buffer.Store as a sequential stream. Each Session
// carries its own cursor over the one shared store and dispatches control
// codes through a ControlTable.
package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"code.hybscloud.com/iox"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tailored-agentic-units/echodev/buffer"
)

// Adapter opens sessions bound to a single store.
type Adapter struct {
	store       *buffer.Store
	controls    *ControlTable
	nonblocking bool
}

// NewAdapter creates an Adapter over store. A nil controls gets the built-in
// table.
func NewAdapter(store *buffer.Store, controls *ControlTable) *Adapter {
	if controls == nil {
		controls = NewControlTable()
	}
	return &Adapter{store: store, controls: controls}
}

// Controls returns the table used by every session of this adapter.
func (a *Adapter) Controls() *ControlTable {
	return a.controls
}

// Option configures a Session when it is opened.
type Option func(*Session)

// Nonblocking makes the session fail with iox.ErrWouldBlock rather than wait
// when the store or the session itself is busy.
func Nonblocking() Option {
	return func(s *Session) { s.nonblocking = true }
}

// Blocking makes the session wait for the store even when the adapter
// defaults to non-blocking sessions.
func Blocking() Option {
	return func(s *Session) { s.nonblocking = false }
}

// Open creates a session with its cursor at 0. It cannot fail.
func (a *Adapter) Open(opts ...Option) *Session {
	s := &Session{
		id:          uuid.Must(uuid.NewV7()).String(),
		store:       a.store,
		controls:    a.controls,
		guard:       semaphore.NewWeighted(1),
		nonblocking: a.nonblocking,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is one open handle: an identifier and a cursor. It does not own the
// store. Calls on the same session are serialized so the cursor advances
// exactly once per transfer.
type Session struct {
	id          string
	store       *buffer.Store
	controls    *ControlTable
	guard       *semaphore.Weighted
	cursor      atomic.Int64
	nonblocking bool
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// Cursor returns the current stream offset.
func (s *Session) Cursor() int64 {
	return s.cursor.Load()
}

// Nonblocking reports whether the session fails fast on contention.
func (s *Session) Nonblocking() bool {
	return s.nonblocking
}

func (s *Session) begin(ctx context.Context) (context.Context, error) {
	if s.nonblocking {
		if !s.guard.TryAcquire(1) {
			return nil, iox.ErrWouldBlock
		}
		return buffer.NoWait(ctx), nil
	}
	if err := s.guard.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", buffer.ErrInterrupted, err)
	}
	return ctx, nil
}

func (s *Session) end() {
	s.guard.Release(1)
}

// Read returns up to maxLen bytes from the cursor and advances the cursor by
// the number returned. An empty result with a nil error means end of data.
func (s *Session) Read(ctx context.Context, maxLen int) ([]byte, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.end()

	if maxLen <= 0 {
		return []byte{}, nil
	}
	if limit := s.store.MaxCapacity(); int64(maxLen) > limit {
		maxLen = int(limit)
	}

	p := make([]byte, maxLen)
	n, err := s.store.ReadAt(ctx, p, s.cursor.Load())
	if err != nil {
		return nil, err
	}
	s.cursor.Add(int64(n))
	return p[:n], nil
}

// Write stores p at the cursor and advances the cursor by the bytes stored.
// truncated reports that the store ran out of capacity part way through p.
// When the cursor is already at or past capacity the write fails with
// buffer.ErrOutOfSpace and the cursor stays put.
func (s *Session) Write(ctx context.Context, p []byte) (n int, truncated bool, err error) {
	ctx, err = s.begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer s.end()

	n, truncated, err = s.store.WriteAt(ctx, p, s.cursor.Load())
	if err != nil {
		return 0, false, err
	}
	s.cursor.Add(int64(n))
	return n, truncated, nil
}

// Control dispatches code with an 8-byte payload and returns the 8-byte
// result. The cursor is never touched.
func (s *Session) Control(ctx context.Context, code Code, payload []byte) ([]byte, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.end()

	return s.controls.Dispatch(ctx, s.store, code, payload)
}
