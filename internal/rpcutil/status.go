package rpcutil

import (
	"errors"

	"github.com/hypercore/hc/internal/hcerr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus maps the hcerr taxonomy onto gRPC status codes. Errors that
// don't match a known sentinel are reported as codes.Internal — the
// catch-all for emulator or monitor command failures.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, hcerr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, hcerr.ErrResourceExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, hcerr.ErrDeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, hcerr.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
