package bookings_service_api

import (
	"context"

	"github.com/Domenick1991/flightbooking/internal/api/wire"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "flightbooking.bookings.v1.BookingsService"

	CreateBookingMethod    = "/" + ServiceName + "/CreateBooking"
	SetBookingStatusMethod = "/" + ServiceName + "/SetBookingStatus"
	GetBookingMethod       = "/" + ServiceName + "/GetBooking"
)

type BookingsServiceServer interface {
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetBookingStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server exposes the booking coordinator over gRPC. The caller's identity is expected
// in the context, put there by the auth interceptor.
type Server struct {
	bookings booking.BookingUseCase
}

func NewServer(bookings booking.BookingUseCase) *Server {
	return &Server{bookings: bookings}
}

func Register(r grpc.ServiceRegistrar, srv BookingsServiceServer) {
	r.RegisterService(&ServiceDesc, srv)
}

// CreateBooking expects {"flight_id", "seat_count", "total_price"}.
func (s *Server) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	flightID, err := wire.Int64(req, "flight_id")
	if err != nil {
		return nil, err
	}
	seats, err := wire.Int64(req, "seat_count")
	if err != nil {
		return nil, err
	}
	price, err := wire.Decimal(req, "total_price")
	if err != nil {
		return nil, err
	}

	created, err := s.bookings.CreateBooking(ctx, booking.CreateBookingInput{
		UserID:     caller.UserID,
		FlightID:   flightID,
		SeatCount:  int(seats),
		TotalPrice: price,
	})
	if err != nil {
		return nil, err
	}
	return wire.FromBooking(created)
}

// SetBookingStatus expects {"id", "status"}.
func (s *Server) SetBookingStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b, err := s.owned(ctx, req)
	if err != nil {
		return nil, err
	}
	next, err := wire.String(req, "status")
	if err != nil {
		return nil, err
	}
	updated, err := s.bookings.SetBookingStatus(ctx, b.ID, next)
	if err != nil {
		return nil, err
	}
	return wire.FromBooking(updated)
}

func (s *Server) GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b, err := s.owned(ctx, req)
	if err != nil {
		return nil, err
	}
	return wire.FromBooking(b)
}

func (s *Server) owned(ctx context.Context, req *structpb.Struct) (*domain.Booking, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := wire.Int64(req, "id")
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, status.Errorf(codes.NotFound, "booking %d not found", id)
	}
	return b, nil
}

func callerFrom(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "missing identity")
	}
	return id, nil
}

var _ BookingsServiceServer = (*Server)(nil)
