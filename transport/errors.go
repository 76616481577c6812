package transport

import (
	"context"
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/echodev/buffer"
	"github.com/tailored-agentic-units/echodev/device"
	"github.com/tailored-agentic-units/echodev/session"
)

// ErrBadHeader is returned when a request header cannot be parsed.
var ErrBadHeader = errors.New("malformed request header")

type errorKind struct {
	err  error
	kind string
	code connect.Code
}

var errorKinds = []errorKind{
	{buffer.ErrOutOfSpace, "out_of_space", connect.CodeResourceExhausted},
	{buffer.ErrOutOfMemory, "out_of_memory", connect.CodeResourceExhausted},
	{buffer.ErrInvalidSize, "invalid_size", connect.CodeInvalidArgument},
	{buffer.ErrInvalidOffset, "invalid_offset", connect.CodeInvalidArgument},
	{buffer.ErrInterrupted, "interrupted", connect.CodeCanceled},
	{buffer.ErrClosed, "closed", connect.CodeUnavailable},
	{session.ErrUnsupportedOperation, "unsupported", connect.CodeUnimplemented},
	{session.ErrCopyFault, "copy_fault", connect.CodeInvalidArgument},
	{device.ErrSessionNotFound, "session_not_found", connect.CodeNotFound},
	{device.ErrShutdown, "shutdown", connect.CodeUnavailable},
	{iox.ErrWouldBlock, "would_block", connect.CodeUnavailable},
	{ErrBadHeader, "bad_header", connect.CodeInvalidArgument},
}

// toConnectError converts a device error into a Connect error whose metadata
// names the sentinel, so the client can restore it.
func toConnectError(err error) error {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			ce := connect.NewError(k.code, err)
			ce.Meta().Set(ErrorKindHeader, k.kind)
			return ce
		}
	}
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// fromConnectError restores the sentinel named in a Connect error's metadata.
// Errors without a known kind are returned unchanged.
func fromConnectError(err error) error {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return err
	}

	kind := ce.Meta().Get(ErrorKindHeader)
	for _, k := range errorKinds {
		if k.kind == kind {
			return fmt.Errorf("%w: %w", k.err, ce)
		}
	}
	return err
}
