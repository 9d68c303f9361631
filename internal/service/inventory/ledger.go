// Package inventory owns flight seat counts. Every mutation of a flight row goes
// through Ledger as a compare-and-swap on the flight's version.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/monitoring"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

const defaultReleaseAttempts = 3

type Ledger struct {
	flights         repository.FlightRepository
	releaseAttempts int
	metrics         *monitoring.Metrics
	log             *logger.Logger
}

type LedgerOption func(*Ledger)

func WithReleaseAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.releaseAttempts = n
		}
	}
}

func WithMetrics(m *monitoring.Metrics) LedgerOption {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithLogger(log *logger.Logger) LedgerOption {
	return func(l *Ledger) {
		l.log = log
	}
}

func NewLedger(flights repository.FlightRepository, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		flights:         flights,
		releaseAttempts: defaultReleaseAttempts,
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the flight, version included, inside tx.
func (l *Ledger) Load(ctx context.Context, tx repository.Tx, flightID int64) (*domain.Flight, error) {
	return l.flights.GetByIDTx(ctx, tx, flightID)
}

// Reserve reads the flight inside tx and takes count seats from it.
func (l *Ledger) Reserve(ctx context.Context, tx repository.Tx, flightID int64, count int) (*domain.Flight, error) {
	snapshot, err := l.Load(ctx, tx, flightID)
	if err != nil {
		return nil, err
	}
	return l.ReserveFrom(ctx, tx, snapshot, count)
}

// ReserveFrom takes count seats from the flight described by snapshot. The write only
// lands if the stored version still equals snapshot.Version; otherwise the caller gets
// domain.ErrConcurrentUpdate and must start over from a fresh read.
func (l *Ledger) ReserveFrom(ctx context.Context, tx repository.Tx, snapshot *domain.Flight, count int) (*domain.Flight, error) {
	if count < 1 {
		return nil, fmt.Errorf("seat count must be positive, got %d: %w", count, domain.ErrInvalidRequest)
	}
	if snapshot.AvailableSeats < count {
		return nil, fmt.Errorf("flight %d has %d seats, %d requested: %w", snapshot.ID, snapshot.AvailableSeats, count, domain.ErrInsufficientSeats)
	}

	next := *snapshot
	next.AvailableSeats = snapshot.AvailableSeats - count
	if err := l.swap(ctx, tx, &next, snapshot.Version, "reserve"); err != nil {
		return nil, err
	}
	l.metrics.SeatsReserved(count)
	return &next, nil
}

// Release gives count seats back to the flight. Adding seats never depends on the
// value that was read, so a lost version race is retried from a fresh read inside the
// same transaction, up to the configured number of attempts. A conflict raised by the
// store itself aborts the transaction and is returned at once.
func (l *Ledger) Release(ctx context.Context, tx repository.Tx, flightID int64, count int) (*domain.Flight, error) {
	if count < 1 {
		return nil, fmt.Errorf("seat count must be positive, got %d: %w", count, domain.ErrInvalidRequest)
	}

	var lastErr error
	for attempt := 1; attempt <= l.releaseAttempts; attempt++ {
		snapshot, err := l.Load(ctx, tx, flightID)
		if err != nil {
			return nil, err
		}

		next := *snapshot
		next.AvailableSeats = snapshot.AvailableSeats + count
		err = l.swap(ctx, tx, &next, snapshot.Version, "release")
		if err == nil {
			l.metrics.SeatsReleased(count)
			return &next, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		l.log.Debug("seat release lost version race, retrying", "flight_id", flightID, "attempt", attempt)
	}
	return nil, fmt.Errorf("release %d seats on flight %d after %d attempts: %w", count, flightID, l.releaseAttempts, lastErr)
}

// SetStatus toggles a flight between Active and Cancelled through the same
// conditioned write as seat changes.
func (l *Ledger) SetStatus(ctx context.Context, tx repository.Tx, flightID int64, status domain.FlightStatus) (*domain.Flight, error) {
	snapshot, err := l.Load(ctx, tx, flightID)
	if err != nil {
		return nil, err
	}
	if snapshot.Status == status {
		return snapshot, nil
	}

	next := *snapshot
	next.Status = status
	if err := l.swap(ctx, tx, &next, snapshot.Version, "status"); err != nil {
		return nil, err
	}
	return &next, nil
}

func (l *Ledger) swap(ctx context.Context, tx repository.Tx, next *domain.Flight, expectedVersion int64, op string) error {
	res, err := l.flights.CompareAndSwap(ctx, tx, next, expectedVersion)
	if err != nil {
		return fmt.Errorf("%s flight %d: %w", op, next.ID, err)
	}

	switch res {
	case repository.CASApplied:
		return nil
	case repository.CASNotFound:
		return fmt.Errorf("flight %d: %w", next.ID, domain.ErrNotFound)
	default:
		l.metrics.LedgerConflict(op)
		return &lostRace{flightID: next.ID, version: expectedVersion}
	}
}

// lostRace is a conditioned write that matched no row because the version moved.
// The transaction is still usable, unlike after a store-raised serialization failure.
type lostRace struct {
	flightID int64
	version  int64
}

func (e *lostRace) Error() string {
	return fmt.Sprintf("flight %d changed since version %d: %v", e.flightID, e.version, domain.ErrConcurrentUpdate)
}

func (e *lostRace) Unwrap() error {
	return domain.ErrConcurrentUpdate
}

func retryable(err error) bool {
	var lr *lostRace
	return errors.As(err, &lr)
}
