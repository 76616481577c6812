// Package buffer implements the byte store behind the echo device: one
// resizable buffer whose capacity, occupied length, and contents are guarded
// by a single exclusion lock.
//
// Every operation acquires the guard for its whole duration, so no caller ever
// observes a partially applied read, write, or resize. Waiting for the guard is
// the only suspension point and is cancelled through the context.
//
//	s, err := buffer.New(&cfg)
//	n, truncated, err := s.WriteAt(ctx, []byte("HELLOWORLD"), 0)
//	n, err = s.ReadAt(ctx, p, 0)
package buffer

import (
	"context"
	"fmt"

	"code.hybscloud.com/iox"
	"golang.org/x/sync/semaphore"
)

// Option configures a Store after config-driven initialization.
type Option func(*Store)

// WithAllocator overrides MakeAllocator for the initial block and every resize.
func WithAllocator(a Allocator) Option {
	return func(s *Store) { s.alloc = a }
}

// Store is a capacity-bounded byte buffer. All methods are safe for
// concurrent use and mutually exclusive with each other.
type Store struct {
	guard    *semaphore.Weighted
	alloc    Allocator
	buf      []byte
	length   int64
	min, max int64
	closed   bool
}

// New creates a Store holding cfg.InitialCapacity bytes.
func New(cfg *Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		guard: semaphore.NewWeighted(1),
		alloc: MakeAllocator,
		min:   cfg.MinCapacity,
		max:   cfg.MaxCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}

	buf, err := s.alloc(int(cfg.InitialCapacity))
	if err != nil {
		return nil, fmt.Errorf("initial allocation: %w", err)
	}
	s.buf = buf

	return s, nil
}

type noWaitKey struct{}

// NoWait derives a context under which store operations never wait for the
// guard: if another operation holds it they fail with iox.ErrWouldBlock.
func NoWait(ctx context.Context) context.Context {
	return context.WithValue(ctx, noWaitKey{}, true)
}

func (s *Store) lock(ctx context.Context) error {
	if noWait, _ := ctx.Value(noWaitKey{}).(bool); noWait {
		if !s.guard.TryAcquire(1) {
			return iox.ErrWouldBlock
		}
	} else if err := s.guard.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	if s.closed {
		s.guard.Release(1)
		return ErrClosed
	}
	return nil
}

func (s *Store) unlock() {
	s.guard.Release(1)
}

// ReadAt copies up to len(p) bytes starting at off into p. Reading at or past
// the occupied length returns 0 and a nil error: end of data is not a failure.
func (s *Store) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOffset, off)
	}
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()

	if off >= s.length {
		return 0, nil
	}
	return copy(p, s.buf[off:s.length]), nil
}

// WriteAt stores p at off. A write that does not fit in the remaining
// capacity is cut to the room available and reported with truncated set; n is
// always the number of bytes actually stored. Writing at or past capacity
// fails with ErrOutOfSpace and changes nothing.
func (s *Store) WriteAt(ctx context.Context, p []byte, off int64) (n int, truncated bool, err error) {
	if off < 0 {
		return 0, false, fmt.Errorf("%w: %d", ErrInvalidOffset, off)
	}
	if err := s.lock(ctx); err != nil {
		return 0, false, err
	}
	defer s.unlock()

	capacity := int64(len(s.buf))
	if off >= capacity {
		return 0, false, fmt.Errorf("%w: offset %d, capacity %d", ErrOutOfSpace, off, capacity)
	}

	if room := capacity - off; int64(len(p)) > room {
		p = p[:room]
		truncated = true
	}
	if len(p) == 0 {
		return 0, false, nil
	}

	n = copy(s.buf[off:], p)
	if end := off + int64(n); end > s.length {
		s.length = end
	}
	return n, truncated, nil
}

// Resize reallocates the buffer to exactly newCapacity bytes, preserving the
// bytes both sizes share. Shrinking below the occupied length truncates the
// length to the new capacity. On any failure the store is left untouched.
func (s *Store) Resize(ctx context.Context, newCapacity int64) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	if newCapacity < s.min || newCapacity > s.max {
		return fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidSize, newCapacity, s.min, s.max)
	}
	if newCapacity == int64(len(s.buf)) {
		return nil
	}

	next, err := s.alloc(int(newCapacity))
	if err != nil {
		return fmt.Errorf("resize to %d: %w", newCapacity, err)
	}
	copy(next, s.buf)

	s.buf = next
	if s.length > newCapacity {
		s.length = newCapacity
	}
	return nil
}

// Capacity returns the allocated size at the instant the guard was held.
func (s *Store) Capacity(ctx context.Context) (int64, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()
	return int64(len(s.buf)), nil
}

// Len returns the occupied length at the instant the guard was held.
func (s *Store) Len(ctx context.Context) (int64, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()
	return s.length, nil
}

// MaxCapacity returns the configured ceiling. It never changes.
func (s *Store) MaxCapacity() int64 {
	return s.max
}

// MinCapacity returns the configured floor. It never changes.
func (s *Store) MinCapacity() int64 {
	return s.min
}

// Close waits for any in-flight operation, then frees the buffer. Every later
// call, Close included, fails with ErrClosed.
func (s *Store) Close(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	s.buf = nil
	s.length = 0
	s.closed = true
	return nil
}
