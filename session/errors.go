package session

import "errors"

// Sentinel errors for session and control operations.
var (
	ErrUnsupportedOperation = errors.New("unsupported control code")
	ErrCopyFault            = errors.New("control payload is not an 8-byte size")
	ErrAlreadyExists        = errors.New("control code already registered")
	ErrReservedCode         = errors.New("control code is reserved")
)
