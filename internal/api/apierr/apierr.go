// Package apierr maps domain errors onto gRPC codes and HTTP statuses so both
// transports report failures the same way.
package apierr

import (
	"context"
	"errors"
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInsufficientSeats):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return codes.Aborted
	case errors.Is(err, domain.ErrInvalidRequest):
		return codes.InvalidArgument
	case errors.Is(err, auth.ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		if s, ok := status.FromError(err); ok {
			return s.Code()
		}
		return codes.Internal
	}
}

// HTTPStatus follows grpc-gateway's code mapping except that a shortage of seats is a
// plain 400 rather than the gateway's default for FailedPrecondition.
func HTTPStatus(err error) int {
	code := Code(err)
	if code == codes.FailedPrecondition {
		return http.StatusBadRequest
	}
	return runtime.HTTPStatusFromCode(code)
}

// Reason is the machine-readable error code put in HTTP error bodies.
func Reason(err error) string {
	switch Code(err) {
	case codes.NotFound:
		return "NOT_FOUND"
	case codes.FailedPrecondition:
		return "INSUFFICIENT_SEATS"
	case codes.Aborted:
		return "CONCURRENT_UPDATE"
	case codes.InvalidArgument:
		return "INVALID_REQUEST"
	case codes.Unauthenticated:
		return "UNAUTHORIZED"
	case codes.PermissionDenied:
		return "FORBIDDEN"
	default:
		return "INTERNAL"
	}
}

// Message hides internal failure details from clients.
func Message(err error) string {
	switch Code(err) {
	case codes.Internal:
		return "internal error"
	case codes.Aborted:
		return err.Error() + "; please retry"
	default:
		return err.Error()
	}
}

// Status converts err into a gRPC status error.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isDomain(err) {
		return err
	}
	return status.Error(Code(err), Message(err))
}

func isDomain(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInsufficientSeats) ||
		errors.Is(err, domain.ErrConcurrentUpdate) ||
		errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, auth.ErrUnauthorized)
}

// UnaryServerInterceptor turns handler errors into gRPC status errors.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, Status(err)
		}
		return resp, nil
	}
}
