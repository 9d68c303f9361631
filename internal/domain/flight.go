package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type FlightStatus string

const (
	FlightStatusActive    FlightStatus = "Active"
	FlightStatusCancelled FlightStatus = "Cancelled"
)

// Flight is one bookable unit of seat inventory. Version is bumped by exactly one on
// every persisted mutation and is only used for optimistic concurrency checks.
type Flight struct {
	ID             int64           `json:"id"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	DepartureTime  time.Time       `json:"departure_time"`
	Price          decimal.Decimal `json:"price"`
	TotalSeats     int             `json:"total_seats"`
	AvailableSeats int             `json:"available_seats"`
	Status         FlightStatus    `json:"status"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (f *Flight) IsActive() bool {
	return f.Status == FlightStatusActive
}

// ParseFlightStatus accepts any casing of Active/Cancelled.
func ParseFlightStatus(s string) (FlightStatus, bool) {
	switch FlightStatus(NormalizeStatus(s)) {
	case FlightStatusActive:
		return FlightStatusActive, true
	case FlightStatusCancelled:
		return FlightStatusCancelled, true
	default:
		return "", false
	}
}
