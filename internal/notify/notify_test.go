package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func event(eventID, eventType string) kafka.BookingEvent {
	return kafka.BookingEvent{
		EventID:    eventID,
		Type:       eventType,
		BookingID:  12,
		UserID:     3,
		FlightID:   4,
		SeatCount:  2,
		TotalPrice: decimal.NewFromInt(300),
		Status:     "Confirmed",
	}
}

func TestRender(t *testing.T) {
	n, ok := Render(event("e1", "booking_created"))
	require.True(t, ok)
	assert.Equal(t, int64(3), n.UserID)
	assert.Equal(t, "Booking #12 confirmed", n.Subject)
	assert.Equal(t, "2 seat(s) on flight 4, total 300.00.", n.Body)

	n, ok = Render(event("e2", "booking_cancelled"))
	require.True(t, ok)
	assert.Equal(t, "Booking #12 cancelled", n.Subject)

	_, ok = Render(event("e3", "flight_delayed"))
	assert.False(t, ok)
}

func TestSender_SkipsDuplicates(t *testing.T) {
	d := &MockDeliverer{}
	s := NewSender(d, nil)
	ctx := context.Background()

	d.On("Deliver", ctx, mock.AnythingOfType("notify.Notification")).Return(nil).Once()

	require.NoError(t, s.Send(ctx, event("same", "booking_created")))
	require.NoError(t, s.Send(ctx, event("same", "booking_created")))
	d.AssertExpectations(t)
}

func TestSender_EvictsOldIDs(t *testing.T) {
	d := &MockDeliverer{}
	s := NewSender(d, nil)
	s.capacity = 1
	ctx := context.Background()

	d.On("Deliver", ctx, mock.Anything).Return(nil).Times(3)

	require.NoError(t, s.Send(ctx, event("a", "booking_created")))
	require.NoError(t, s.Send(ctx, event("b", "booking_created")))
	require.NoError(t, s.Send(ctx, event("a", "booking_created")))
	d.AssertExpectations(t)
}

func TestSender_DeliveryError(t *testing.T) {
	d := &MockDeliverer{}
	s := NewSender(d, nil)
	d.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	err := s.Send(context.Background(), event("x", "booking_cancelled"))
	assert.ErrorContains(t, err, "smtp down")
}

func TestLogDeliverer(t *testing.T) {
	assert.NoError(t, NewLogDeliverer(nil).Deliver(context.Background(), Notification{UserID: 1}))
}
