package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/monitoring"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.New(logger.Config{}).Fatal("load config", "error", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "flightbooking-api"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	store, err := bootstrap.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("open store", "error", err)
	}
	defer store.Close()

	ledger := inventory.NewLedger(store.Flights,
		inventory.WithReleaseAttempts(cfg.Inventory.ReleaseAttempts),
		inventory.WithMetrics(metrics),
		inventory.WithLogger(log.With("component", "ledger")),
	)

	bookingOpts := []booking.BookingServiceOption{
		booking.WithStrictStatuses(cfg.Booking.StrictStatuses),
		booking.WithMetrics(metrics),
		booking.WithLogger(log.With("component", "booking")),
	}

	var flightsCache flights.FlightCache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.CacheTTL())
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, flights cache may miss", "error", err)
		}
		flightsCache = redisCache
		bookingOpts = append(bookingOpts, booking.WithCache(redisCache))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log.With("component", "kafka"))
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn("kafka unavailable, booking events may be lost", "error", err)
		}
		bookingOpts = append(bookingOpts,
			booking.WithProducer(producer, cfg.Kafka.BookingTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	flightService := flights.NewFlightService(store.Tx, store.Flights, ledger, flightsCache, log.With("component", "flights"))
	bookingService := booking.NewBookingService(store.Tx, store.Bookings, ledger, bookingOpts...)

	if err := bootstrap.Run(ctx, cfg, bootstrap.Deps{
		Flights:  flightService,
		Bookings: bookingService,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret),
		Gatherer: registry,
		Log:      log,
	}); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
