package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlight(t *testing.T, store *memory.Store, seats int) *domain.Flight {
	t.Helper()
	f := &domain.Flight{
		Origin:         "SVO",
		Destination:    "LED",
		DepartureTime:  time.Now().Add(48 * time.Hour),
		Price:          decimal.NewFromInt(100),
		TotalSeats:     seats,
		AvailableSeats: seats,
		Status:         domain.FlightStatusActive,
		Version:        1,
	}
	require.NoError(t, store.Flights().Create(context.Background(), f))
	return f
}

func TestLedger_Reserve(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 5)
	ledger := NewLedger(store.Flights())

	err := repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		updated, err := ledger.Reserve(ctx, tx, f.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.AvailableSeats)
		assert.Equal(t, int64(2), updated.Version)
		return nil
	})
	require.NoError(t, err)

	got, err := store.Flights().GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSeats)
	assert.Equal(t, int64(2), got.Version)
}

func TestLedger_Reserve_Failures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 1)
	ledger := NewLedger(store.Flights())

	testCases := []struct {
		name     string
		flightID int64
		count    int
		wantErr  error
	}{
		{name: "insufficient", flightID: f.ID, count: 2, wantErr: domain.ErrInsufficientSeats},
		{name: "zero seats", flightID: f.ID, count: 0, wantErr: domain.ErrInvalidRequest},
		{name: "missing flight", flightID: 404, count: 1, wantErr: domain.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := store.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback(ctx)

			_, err = ledger.Reserve(ctx, tx, tc.flightID, tc.count)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	got, _ := store.Flights().GetByID(ctx, f.ID)
	assert.Equal(t, 1, got.AvailableSeats)
	assert.Equal(t, int64(1), got.Version)
}

func TestLedger_ReserveFrom_StaleSnapshotConflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 4)
	ledger := NewLedger(store.Flights())

	stale := *f

	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.Reserve(ctx, tx, f.ID, 1)
		return err
	}))

	err := repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.ReserveFrom(ctx, tx, &stale, 1)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	assert.False(t, errors.Is(err, domain.ErrInsufficientSeats))

	got, _ := store.Flights().GetByID(ctx, f.ID)
	assert.Equal(t, 3, got.AvailableSeats)
	assert.Equal(t, int64(2), got.Version)
}

func TestLedger_Release(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 5)
	ledger := NewLedger(store.Flights())

	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.Reserve(ctx, tx, f.ID, 3)
		return err
	}))
	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		updated, err := ledger.Release(ctx, tx, f.ID, 3)
		if err == nil {
			assert.Equal(t, 5, updated.AvailableSeats)
		}
		return err
	}))

	got, _ := store.Flights().GetByID(ctx, f.ID)
	assert.Equal(t, 5, got.AvailableSeats)
	assert.Equal(t, int64(3), got.Version)

	err := repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.Release(ctx, tx, 999, 1)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// flakyFlights loses the first n conditioned writes.
type flakyFlights struct {
	repository.FlightRepository
	lose  int
	calls int
}

func (f *flakyFlights) CompareAndSwap(ctx context.Context, tx repository.Tx, next *domain.Flight, expectedVersion int64) (repository.CASResult, error) {
	f.calls++
	if f.calls <= f.lose {
		return repository.CASConflict, nil
	}
	return f.FlightRepository.CompareAndSwap(ctx, tx, next, expectedVersion)
}

func TestLedger_Release_RetriesLostRace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 2)
	flaky := &flakyFlights{FlightRepository: store.Flights(), lose: 2}
	ledger := NewLedger(flaky, WithReleaseAttempts(3))

	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.Release(ctx, tx, f.ID, 1)
		return err
	}))
	assert.Equal(t, 3, flaky.calls)

	got, _ := store.Flights().GetByID(ctx, f.ID)
	assert.Equal(t, 3, got.AvailableSeats)
}

func TestLedger_Release_GivesUp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 2)
	flaky := &flakyFlights{FlightRepository: store.Flights(), lose: 10}
	ledger := NewLedger(flaky, WithReleaseAttempts(2))

	err := repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.Release(ctx, tx, f.ID, 1)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	assert.Equal(t, 2, flaky.calls)
}

// abortingFlights fails every conditioned write the way PostgreSQL reports a
// serialization failure: the transaction is no longer usable.
type abortingFlights struct {
	repository.FlightRepository
	calls int
}

func (f *abortingFlights) CompareAndSwap(ctx context.Context, tx repository.Tx, next *domain.Flight, expectedVersion int64) (repository.CASResult, error) {
	f.calls++
	return repository.CASConflict, fmt.Errorf("%w: could not serialize access", domain.ErrConcurrentUpdate)
}

func TestLedger_Release_DoesNotRetryAbortedTx(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 2)
	aborting := &abortingFlights{FlightRepository: store.Flights()}
	ledger := NewLedger(aborting, WithReleaseAttempts(5))

	err := repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.Release(ctx, tx, f.ID, 1)
		return err
	})

	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	assert.Equal(t, 1, aborting.calls)
	got, _ := store.Flights().GetByID(ctx, f.ID)
	assert.Equal(t, 2, got.AvailableSeats)
}

func TestLedger_SetStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 2)
	ledger := NewLedger(store.Flights())

	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		updated, err := ledger.SetStatus(ctx, tx, f.ID, domain.FlightStatusCancelled)
		if err == nil {
			assert.Equal(t, domain.FlightStatusCancelled, updated.Status)
		}
		return err
	}))
	got, _ := store.Flights().GetByID(ctx, f.ID)
	assert.Equal(t, domain.FlightStatusCancelled, got.Status)
	assert.Equal(t, int64(2), got.Version)

	// same status is not a mutation, version stays put
	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.SetStatus(ctx, tx, f.ID, domain.FlightStatusCancelled)
		return err
	}))
	got, _ = store.Flights().GetByID(ctx, f.ID)
	assert.Equal(t, int64(2), got.Version)
}

func TestAuditor(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	f := newFlight(t, store, 5)
	ledger := NewLedger(store.Flights())
	auditor := NewAuditor(store.Flights(), nil, nil)

	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		if _, err := ledger.Reserve(ctx, tx, f.ID, 2); err != nil {
			return err
		}
		return store.Bookings().InsertTx(ctx, tx, &domain.Booking{
			UserID: 1, FlightID: f.ID, SeatCount: 2, TotalPrice: decimal.NewFromInt(200),
			Status: domain.BookingStatusConfirmed, CreatedAt: time.Now(),
		})
	}))

	account, err := auditor.Audit(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, account.Balanced())

	unbalanced, err := auditor.AuditAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, unbalanced)

	// a reservation without a booking leaves the ledger off by the reserved seats
	require.NoError(t, repository.WithinTx(ctx, store, func(tx repository.Tx) error {
		_, err := ledger.Reserve(ctx, tx, f.ID, 1)
		return err
	}))
	unbalanced, err = auditor.AuditAll(ctx)
	require.NoError(t, err)
	require.Len(t, unbalanced, 1)
	assert.Equal(t, -1, unbalanced[0].Drift())
}
