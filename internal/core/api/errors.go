package api

import (
	"context"
	"errors"

	"github.com/solatis/normprops/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error mapping for query handlers.
// Filter and property errors map to INVALID_ARGUMENT.
// Unknown models map to NOT_FOUND.
// Database errors map to UNAVAILABLE.
// Context timeouts map to DEADLINE_EXCEEDED.
var invalidArgument = []error{
	types.ErrUnknownProperty,
	types.ErrMalformedFilter,
	types.ErrUnidentified,
	types.ErrInvalidPath,
	types.ErrPathTooDeep,
	types.ErrResolveTooDeep,
}

// statusFor converts a domain error into a gRPC status error.
func statusFor(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}

	switch {
	case errors.Is(err, types.ErrUnknownModel):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrStorage):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
