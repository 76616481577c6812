package buffer

import "errors"

// Sentinel errors for store operations.
var (
	ErrOutOfSpace    = errors.New("no space left at offset")
	ErrInvalidSize   = errors.New("capacity out of range")
	ErrOutOfMemory   = errors.New("buffer allocation failed")
	ErrInterrupted   = errors.New("interrupted waiting for store")
	ErrInvalidOffset = errors.New("negative offset")
	ErrClosed        = errors.New("store closed")
	ErrInvalidConfig = errors.New("invalid store config")
)
