// Package wire converts between domain values and google.protobuf.Struct messages
// carried by the gRPC services.
package wire

import (
	"fmt"
	"math"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"
)

func Int64(s *structpb.Struct, key string) (int64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("%s is required: %w", key, domain.ErrInvalidRequest)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, fmt.Errorf("%s must be an integer: %w", key, domain.ErrInvalidRequest)
	}
	return int64(n.NumberValue), nil
}

func String(s *structpb.Struct, key string) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("%s is required: %w", key, domain.ErrInvalidRequest)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s must be a string: %w", key, domain.ErrInvalidRequest)
	}
	return str.StringValue, nil
}

// Decimal accepts a string ("129.90") or a number.
func Decimal(s *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is required: %w", key, domain.ErrInvalidRequest)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(k.StringValue)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s is not a decimal: %w", key, domain.ErrInvalidRequest)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(k.NumberValue), nil
	default:
		return decimal.Zero, fmt.Errorf("%s must be a decimal: %w", key, domain.ErrInvalidRequest)
	}
}

func FromBooking(b *domain.Booking) (*structpb.Struct, error) {
	return structpb.NewStruct(bookingFields(b))
}

func bookingFields(b *domain.Booking) map[string]interface{} {
	return map[string]interface{}{
		"id":          b.ID,
		"user_id":     b.UserID,
		"flight_id":   b.FlightID,
		"seat_count":  b.SeatCount,
		"total_price": b.TotalPrice.String(),
		"status":      b.Status,
		"created_at":  b.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":  b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func FromFlight(f *domain.Flight) (*structpb.Struct, error) {
	return structpb.NewStruct(flightFields(f))
}

func flightFields(f *domain.Flight) map[string]interface{} {
	return map[string]interface{}{
		"id":              f.ID,
		"origin":          f.Origin,
		"destination":     f.Destination,
		"departure_time":  f.DepartureTime.UTC().Format(time.RFC3339),
		"price":           f.Price.String(),
		"total_seats":     f.TotalSeats,
		"available_seats": f.AvailableSeats,
		"status":          string(f.Status),
		"version":         f.Version,
	}
}

// FromFlights wraps the list as {"flights": [...]}.
func FromFlights(flights []domain.Flight) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(flights))
	for i := range flights {
		list = append(list, flightFields(&flights[i]))
	}
	return structpb.NewStruct(map[string]interface{}{"flights": list})
}
