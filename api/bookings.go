package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	FlightID   int64           `json:"flight_id" binding:"required,gt=0"`
	SeatCount  int             `json:"seat_count" binding:"required,gt=0"`
	TotalPrice decimal.Decimal `json:"total_price" binding:"decimal_gt0"`
}

type setBookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type bookingResponse struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	FlightID   int64           `json:"flight_id"`
	SeatCount  int             `json:"seat_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		UserID:     b.UserID,
		FlightID:   b.FlightID,
		SeatCount:  b.SeatCount,
		TotalPrice: b.TotalPrice,
		Status:     b.Status,
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  b.UpdatedAt.Format(time.RFC3339),
	}
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.PATCH("/:id/status", h.setStatus)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		UserID:     identity(c).UserID,
		FlightID:   req.FlightID,
		SeatCount:  req.SeatCount,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.ListUserBookings(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, ok := h.owned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) setStatus(c *gin.Context) {
	var req setBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	b, ok := h.owned(c)
	if !ok {
		return
	}
	updated, err := h.service.SetBookingStatus(c.Request.Context(), b.ID, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	b, ok := h.owned(c)
	if !ok {
		return
	}
	cancelled, err := h.service.CancelBooking(c.Request.Context(), b.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

// owned loads the booking in the path and answers 404 when it belongs to someone else,
// unless the caller is an admin.
func (h *BookingHandler) owned(c *gin.Context) (*domain.Booking, bool) {
	id, ok := pathID(c)
	if !ok {
		return nil, false
	}
	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	caller := identity(c)
	if b.UserID != caller.UserID && !caller.IsAdmin() {
		writeError(c, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound))
		return nil, false
	}
	return b, true
}
