package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BookingStatusConfirmed = "Confirmed"
	BookingStatusCancelled = "Cancelled"
)

// Booking reserves SeatCount seats on one flight for one user. Only Status changes
// after creation.
type Booking struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	FlightID   int64           `json:"flight_id"`
	SeatCount  int             `json:"seat_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// HoldsSeats reports whether the booking still counts against flight capacity.
func (b *Booking) HoldsSeats() bool {
	return b.Status != BookingStatusCancelled
}
