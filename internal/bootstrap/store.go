package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/repository/memory"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories and the transaction manager of one backend.
type Store struct {
	Tx       repository.TxManager
	Flights  repository.FlightRepository
	Bookings repository.BookingRepository
	close    func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects to the configured database driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		mem := memory.NewStore()
		return &Store{Tx: mem, Flights: mem.Flights(), Bookings: mem.Bookings()}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("database schema applied")
	}

	return &Store{
		Tx:       repository.NewTxManager(pool),
		Flights:  repository.NewFlightRepository(pool),
		Bookings: repository.NewBookingRepository(pool),
		close:    pool.Close,
	}, nil
}
