// Package hcerr is the error taxonomy shared by the Controller and Host
// daemon, expressed as wrappable sentinel errors and translated to gRPC
// status codes at the RPC boundary by rpcutil.
package hcerr

import "errors"

var (
	// ErrNotFound is returned for an unknown pool or VM.
	ErrNotFound = errors.New("not found")
	// ErrResourceExhausted is returned when no warm VM is available.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrDeadlineExceeded is returned when a monitor-socket or Exec
	// operation times out.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
	// ErrInternal wraps emulator or monitor command failures.
	ErrInternal = errors.New("internal error")
	// ErrInvalidArgument is returned by Fork for a non-positive how_many.
	// Shapes are not validated, so a malformed shape never produces it.
	ErrInvalidArgument = errors.New("invalid argument")
)
