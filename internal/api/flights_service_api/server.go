package flights_service_api

import (
	"context"

	"github.com/Domenick1991/flightbooking/internal/api/wire"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "flightbooking.flights.v1.FlightsService"

	ListFlightsMethod = "/" + ServiceName + "/ListFlights"
	GetFlightMethod   = "/" + ServiceName + "/GetFlight"
)

type FlightsServiceServer interface {
	ListFlights(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetFlight(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server is the read side of the flight catalogue.
type Server struct {
	flights flights.FlightUseCase
}

func NewServer(flights flights.FlightUseCase) *Server {
	return &Server{flights: flights}
}

func Register(r grpc.ServiceRegistrar, srv FlightsServiceServer) {
	r.RegisterService(&ServiceDesc, srv)
}

func (s *Server) ListFlights(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	list, err := s.flights.List(ctx)
	if err != nil {
		return nil, err
	}
	return wire.FromFlights(list)
}

// GetFlight expects {"id"}.
func (s *Server) GetFlight(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := wire.Int64(req, "id")
	if err != nil {
		return nil, err
	}
	flight, err := s.flights.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return wire.FromFlight(flight)
}

var _ FlightsServiceServer = (*Server)(nil)
