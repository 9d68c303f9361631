package bootstrap

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/flightbooking/api"
	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/api/apierr"
	bookingsapi "github.com/Domenick1991/flightbooking/internal/api/bookings_service_api"
	flightsapi "github.com/Domenick1991/flightbooking/internal/api/flights_service_api"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

//go:embed openapi.json
var openAPI []byte

const healthPrefix = "/grpc.health.v1.Health/"

type Deps struct {
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
	Verifier *auth.Verifier
	Gatherer prometheus.Gatherer
	Log      *logger.Logger
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
	healthConn *grpc.ClientConn
	log        *logger.Logger
}

// Run starts the gRPC and HTTP servers and blocks until ctx is cancelled or a server fails.
func Run(ctx context.Context, cfg *config.Config, deps Deps) error {
	s, err := newServers(cfg, deps)
	if err != nil {
		return err
	}
	defer s.healthConn.Close()

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("servers started", "grpc", cfg.GRPC.Address, "http", cfg.HTTP.Address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(cfg *config.Config, deps Deps) (*Servers, error) {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		apierr.UnaryServerInterceptor(),
		auth.UnaryServerInterceptor(deps.Verifier, healthPrefix),
	))
	flightsapi.Register(grpcSrv, flightsapi.NewServer(deps.Flights))
	bookingsapi.Register(grpcSrv, bookingsapi.NewServer(deps.Bookings))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	hs.SetServingStatus(flightsapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(bookingsapi.ServiceName, healthpb.HealthCheckResponse_SERVING)

	conn, err := grpc.NewClient(cfg.GRPC.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial gRPC health: %w", err)
	}

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           newHandler(deps, healthpb.NewHealthClient(conn)),
			ReadHeaderTimeout: 5 * time.Second,
		},
		health:     hs,
		healthConn: conn,
		log:        deps.Log,
	}, nil
}

// newHandler mounts the REST API, metrics, the gateway health endpoint and API docs.
func newHandler(deps Deps, healthClient healthpb.HealthClient) http.Handler {
	gateway := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthClient))

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(api.RouterDeps{
		Flights:  deps.Flights,
		Bookings: deps.Bookings,
		Verifier: deps.Verifier,
		Log:      deps.Log,
	}))
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", gateway)
	mux.HandleFunc("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openAPI)
	})
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/docs/openapi.json")))
	return mux
}
