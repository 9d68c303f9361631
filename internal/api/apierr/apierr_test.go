package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMapping(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		code     codes.Code
		httpCode int
	}{
		{name: "not found", err: fmt.Errorf("flight 1: %w", domain.ErrNotFound), code: codes.NotFound, httpCode: http.StatusNotFound},
		{name: "shortage", err: domain.ErrInsufficientSeats, code: codes.FailedPrecondition, httpCode: http.StatusBadRequest},
		{name: "conflict", err: fmt.Errorf("commit tx: %w", domain.ErrConcurrentUpdate), code: codes.Aborted, httpCode: http.StatusConflict},
		{name: "invalid", err: domain.ErrInvalidRequest, code: codes.InvalidArgument, httpCode: http.StatusBadRequest},
		{name: "unauthorized", err: auth.ErrUnauthorized, code: codes.Unauthenticated, httpCode: http.StatusUnauthorized},
		{name: "internal", err: errors.New("pq: connection reset"), code: codes.Internal, httpCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, Code(tc.err))
			assert.Equal(t, tc.httpCode, HTTPStatus(tc.err))
			assert.Equal(t, tc.code, status.Code(Status(tc.err)))
		})
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "INSUFFICIENT_SEATS", Reason(domain.ErrInsufficientSeats))
	assert.Equal(t, "CONCURRENT_UPDATE", Reason(domain.ErrConcurrentUpdate))
	assert.Equal(t, "NOT_FOUND", Reason(domain.ErrNotFound))
	assert.Equal(t, "INTERNAL", Reason(errors.New("boom")))
}

func TestMessageHidesInternals(t *testing.T) {
	assert.Contains(t, Message(domain.ErrConcurrentUpdate), "please retry")
	assert.Equal(t, "internal error", Message(errors.New("dial tcp 10.0.0.1:5432: refused")))
	assert.Equal(t, domain.ErrInsufficientSeats.Error(), Message(domain.ErrInsufficientSeats))
}

func TestStatusPassesThroughGRPCErrors(t *testing.T) {
	err := status.Error(codes.PermissionDenied, "admin only")
	assert.Equal(t, err, Status(err))
	assert.Nil(t, Status(nil))
}
