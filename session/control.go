package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/echodev/buffer"
)

// Code identifies an out-of-band control operation.
type Code uint32

const (
	CodeResize Code = iota + 1
	CodeGetCapacity
	CodeGetLength
	CodeGetMaxCapacity
)

// PayloadSize is the width of every control argument and result.
const PayloadSize = 8

func (c Code) String() string {
	switch c {
	case CodeResize:
		return "RESIZE"
	case CodeGetCapacity:
		return "GET_CAPACITY"
	case CodeGetLength:
		return "GET_LENGTH"
	case CodeGetMaxCapacity:
		return "GET_MAX_CAPACITY"
	default:
		return fmt.Sprintf("CODE(%d)", uint32(c))
	}
}

// ControlFunc executes one control code against the store. arg is the decoded
// request size; the returned value is encoded back into the result payload.
type ControlFunc func(ctx context.Context, store *buffer.Store, arg uint64) (uint64, error)

// ControlTable maps control codes to their handlers. The built-in codes are
// always present and cannot be replaced. Safe for concurrent use.
type ControlTable struct {
	entries map[Code]ControlFunc
	mu      sync.RWMutex
}

// NewControlTable creates a table holding the built-in codes.
func NewControlTable() *ControlTable {
	return &ControlTable{
		entries: map[Code]ControlFunc{
			CodeResize:         resize,
			CodeGetCapacity:    getCapacity,
			CodeGetLength:      getLength,
			CodeGetMaxCapacity: getMaxCapacity,
		},
	}
}

// Register adds a handler for an additional control code.
func (t *ControlTable) Register(code Code, fn ControlFunc) error {
	if code <= CodeGetMaxCapacity {
		return fmt.Errorf("%w: %s", ErrReservedCode, code)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[code]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, code)
	}
	t.entries[code] = fn
	return nil
}

// Codes returns every registered code in ascending order.
func (t *ControlTable) Codes() []Code {
	t.mu.RLock()
	defer t.mu.RUnlock()

	codes := make([]Code, 0, len(t.entries))
	for code := range t.entries {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Dispatch decodes payload, runs the handler for code, and encodes its result.
func (t *ControlTable) Dispatch(ctx context.Context, store *buffer.Store, code Code, payload []byte) ([]byte, error) {
	t.mu.RLock()
	fn, exists := t.entries[code]
	t.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, code)
	}

	arg, err := DecodeSize(payload)
	if err != nil {
		return nil, err
	}

	v, err := fn(ctx, store, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", code, err)
	}
	return EncodeSize(v), nil
}

// EncodeSize renders v as a little-endian 8-byte payload.
func EncodeSize(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, PayloadSize), v)
}

// DecodeSize parses a little-endian 8-byte payload.
func DecodeSize(payload []byte) (uint64, error) {
	if len(payload) != PayloadSize {
		return 0, fmt.Errorf("%w: got %d bytes", ErrCopyFault, len(payload))
	}
	return binary.LittleEndian.Uint64(payload), nil
}

func resize(ctx context.Context, store *buffer.Store, arg uint64) (uint64, error) {
	if arg > uint64(store.MaxCapacity()) {
		return 0, fmt.Errorf("%w: %d above %d", buffer.ErrInvalidSize, arg, store.MaxCapacity())
	}
	if err := store.Resize(ctx, int64(arg)); err != nil {
		return 0, err
	}
	return arg, nil
}

func getCapacity(ctx context.Context, store *buffer.Store, _ uint64) (uint64, error) {
	n, err := store.Capacity(ctx)
	return uint64(n), err
}

func getLength(ctx context.Context, store *buffer.Store, _ uint64) (uint64, error) {
	n, err := store.Len(ctx)
	return uint64(n), err
}

func getMaxCapacity(_ context.Context, store *buffer.Store, _ uint64) (uint64, error) {
	return uint64(store.MaxCapacity()), nil
}
