package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/monitoring"
	"github.com/Domenick1991/flightbooking/internal/notify"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "flightbooking-worker"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.NotificationsTopic
		if topic == "" {
			topic = cfg.Kafka.BookingTopic
		}
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topic, log.With("component", "consumer"))
		defer consumer.Close()

		sender := notify.NewSender(notify.NewLogDeliverer(log.With("component", "notify")), log)
		go func() {
			if err := consumer.ConsumeBookingEvents(ctx, sender.Send); err != nil {
				log.Error("consumer stopped", "error", err)
				stop()
			}
		}()
	} else {
		log.Warn("no kafka brokers configured, notifications disabled")
	}

	// The in-memory store is private to the API process; there is nothing to audit here.
	if cfg.Database.Driver == config.DriverMemory {
		<-ctx.Done()
		return
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("open store", "error", err)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	auditor := inventory.NewAuditor(store.Flights, monitoring.NewMetrics(registry), log.With("component", "auditor"))

	metricsSrv := &http.Server{Addr: cfg.Worker.MetricsAddress, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	defer metricsSrv.Close()

	ticker := time.NewTicker(cfg.Worker.AuditInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			unbalanced, err := auditor.AuditAll(ctx)
			if err != nil {
				log.Error("seat audit failed", "error", err)
				continue
			}
			if len(unbalanced) > 0 {
				log.Warn("seat accounting drift detected", "flights", len(unbalanced))
			}
		case <-ctx.Done():
			log.Info("shutting down")
			return
		}
	}
}
