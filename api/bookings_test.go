package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	os.Exit(m.Run())
}

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) SetBookingStatus(ctx context.Context, id int64, status string) (*domain.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func testContext(method, target string, body interface{}, caller auth.Identity) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(identityKey, caller)
	return c, w
}

func confirmedBooking(userID int64) *domain.Booking {
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:         1,
		UserID:     userID,
		FlightID:   4,
		SeatCount:  2,
		TotalPrice: decimal.NewFromInt(10000),
		Status:     domain.BookingStatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

var customer = auth.Identity{UserID: 5, Role: auth.RoleCustomer}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := testContext("POST", "/api/v1/bookings", map[string]interface{}{
		"flight_id":   4,
		"seat_count":  2,
		"total_price": "10000",
	}, customer)

	input := booking.CreateBookingInput{UserID: 5, FlightID: 4, SeatCount: 2, TotalPrice: decimal.RequireFromString("10000")}
	mockService.On("CreateBooking", c.Request.Context(), mock.MatchedBy(func(in booking.CreateBookingInput) bool {
		return in.UserID == input.UserID && in.FlightID == input.FlightID &&
			in.SeatCount == input.SeatCount && in.TotalPrice.Equal(input.TotalPrice)
	})).Return(confirmedBooking(5), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, domain.BookingStatusConfirmed, response.Status)
	assert.Equal(t, 2, response.SeatCount)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "zero seats", body: map[string]interface{}{"flight_id": 4, "seat_count": 0, "total_price": "10"}},
		{name: "negative seats", body: map[string]interface{}{"flight_id": 4, "seat_count": -1, "total_price": "10"}},
		{name: "missing flight", body: map[string]interface{}{"seat_count": 1, "total_price": "10"}},
		{name: "zero price", body: map[string]interface{}{"flight_id": 4, "seat_count": 1, "total_price": "0"}},
		{name: "negative price", body: map[string]interface{}{"flight_id": 4, "seat_count": 1, "total_price": -5}},
		{name: "missing price", body: map[string]interface{}{"flight_id": 4, "seat_count": 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			c, w := testContext("POST", "/api/v1/bookings", tc.body, customer)

			NewBookingHandler(mockService).create(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
			mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
		})
	}
}

func TestBookingHandler_create_DomainErrors(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "shortage", err: domain.ErrInsufficientSeats, status: http.StatusBadRequest, code: "INSUFFICIENT_SEATS"},
		{name: "conflict", err: fmt.Errorf("commit tx: %w", domain.ErrConcurrentUpdate), status: http.StatusConflict, code: "CONCURRENT_UPDATE"},
		{name: "unknown flight", err: domain.ErrNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "store down", err: fmt.Errorf("dial tcp: refused"), status: http.StatusInternalServerError, code: "INTERNAL"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			c, w := testContext("POST", "/api/v1/bookings", map[string]interface{}{
				"flight_id": 4, "seat_count": 1, "total_price": "100.50",
			}, customer)
			mockService.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, tc.err)

			NewBookingHandler(mockService).create(c)

			assert.Equal(t, tc.status, w.Code)
			var response errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tc.code, response.Code)
		})
	}
}

func TestBookingHandler_get_HidesOtherUsersBookings(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := testContext("GET", "/api/v1/bookings/1", nil, customer)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	mockService.On("GetBooking", c.Request.Context(), int64(1)).Return(confirmedBooking(99), nil)

	handler.get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// admins see everything
	c, w = testContext("GET", "/api/v1/bookings/1", nil, auth.Identity{UserID: 1, Role: auth.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	mockService.On("GetBooking", c.Request.Context(), int64(1)).Return(confirmedBooking(99), nil)

	handler.get(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBookingHandler_setStatus(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := testContext("PATCH", "/api/v1/bookings/1/status", map[string]string{"status": "cancelled"}, customer)
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	cancelled := confirmedBooking(5)
	cancelled.Status = domain.BookingStatusCancelled
	mockService.On("GetBooking", c.Request.Context(), int64(1)).Return(confirmedBooking(5), nil)
	mockService.On("SetBookingStatus", c.Request.Context(), int64(1), "cancelled").Return(cancelled, nil)

	handler.setStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, domain.BookingStatusCancelled, response.Status)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_setStatus_AlreadyCancelled(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := testContext("PATCH", "/api/v1/bookings/1/status", map[string]string{"status": "Cancelled"}, customer)
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	mockService.On("GetBooking", c.Request.Context(), int64(1)).Return(confirmedBooking(5), nil)
	mockService.On("SetBookingStatus", c.Request.Context(), int64(1), "Cancelled").
		Return(nil, fmt.Errorf("booking 1: booking already cancelled: %w", domain.ErrInvalidRequest))

	handler.setStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already cancelled")
}

func TestBookingHandler_cancel(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := testContext("DELETE", "/api/v1/bookings/1", nil, customer)
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	cancelled := confirmedBooking(5)
	cancelled.Status = domain.BookingStatusCancelled
	mockService.On("GetBooking", c.Request.Context(), int64(1)).Return(confirmedBooking(5), nil)
	mockService.On("CancelBooking", c.Request.Context(), int64(1)).Return(cancelled, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_list(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	c, w := testContext("GET", "/api/v1/bookings", nil, customer)
	mockService.On("ListUserBookings", c.Request.Context(), int64(5)).Return([]domain.Booking{*confirmedBooking(5)}, nil)

	handler.list(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 1)
}

func TestBookingHandler_invalidID(t *testing.T) {
	mockService := &MockBookingUseCase{}
	c, w := testContext("GET", "/api/v1/bookings/abc", nil, customer)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	NewBookingHandler(mockService).get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
}
