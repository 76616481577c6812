package device

import "errors"

// Sentinel errors for device operations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrShutdown        = errors.New("device is shut down")
)
