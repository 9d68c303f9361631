package api

import (
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
	Verifier *auth.Verifier
	Log      *logger.Logger
}

// NewRouter builds the /api/v1 gin engine. Every route requires a bearer token.
func NewRouter(deps RouterDeps) *gin.Engine {
	RegisterValidators()
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(deps.Log))

	v1 := r.Group("/api/v1", Auth(deps.Verifier))

	flightsGroup := v1.Group("/flights")
	NewFlightHandler(deps.Flights).Register(flightsGroup, flightsGroup.Group("", RequireRole(auth.RoleAdmin)))
	NewBookingHandler(deps.Bookings).Register(v1.Group("/bookings"))

	return r
}
