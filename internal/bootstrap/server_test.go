package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/monitoring"
	"github.com/Domenick1991/flightbooking/internal/repository/memory"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// servingHealth overrides only the method the gateway health endpoint calls.
type servingHealth struct {
	healthpb.HealthClient
}

func (servingHealth) Check(context.Context, *healthpb.HealthCheckRequest, ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	monitoring.NewMetrics(reg)

	store := memory.NewStore()
	ledger := inventory.NewLedger(store.Flights())
	return newHandler(Deps{
		Flights:  flights.NewFlightService(store, store.Flights(), ledger, nil, nil),
		Bookings: booking.NewBookingService(store, store.Bookings(), ledger),
		Verifier: auth.NewVerifier("test"),
		Gatherer: reg,
	}, servingHealth{})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_Routes(t *testing.T) {
	h := testHandler(t)

	metrics := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "flight_seats_reserved_total")

	healthz := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, healthz.Code)

	docs := get(t, h, "/docs/openapi.json")
	require.Equal(t, http.StatusOK, docs.Code)
	assert.Contains(t, docs.Body.String(), "/api/v1/bookings")

	unauthenticated := get(t, h, "/api/v1/flights")
	assert.Equal(t, http.StatusUnauthorized, unauthenticated.Code)
}
