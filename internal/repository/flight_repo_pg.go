package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	GetByIDTx(ctx context.Context, tx Tx, id int64) (*domain.Flight, error)
	// CompareAndSwap persists next.AvailableSeats and next.Status only if the stored
	// version still equals expectedVersion. On CASApplied next.Version is expectedVersion+1.
	CompareAndSwap(ctx context.Context, tx Tx, next *domain.Flight, expectedVersion int64) (CASResult, error)
	// Accounting returns capacity, available and held seats per flight from one snapshot.
	Accounting(ctx context.Context) ([]domain.SeatAccount, error)
	AccountingByID(ctx context.Context, id int64) (*domain.SeatAccount, error)
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, origin, destination, departure_time, price, total_seats, available_seats, status, version, created_at, updated_at`

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.Origin, &f.Destination, &f.DepartureTime, &f.Price, &f.TotalSeats, &f.AvailableSeats, &f.Status, &f.Version, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return f, err
}

func (r *PGFlightRepository) Create(ctx context.Context, f *domain.Flight) error {
	return r.db.QueryRow(ctx, `INSERT INTO flights (origin, destination, departure_time, price, total_seats, available_seats, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		f.Origin, f.Destination, f.DepartureTime, f.Price, f.TotalSeats, f.AvailableSeats, f.Status, f.Version).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

func (r *PGFlightRepository) GetByIDTx(ctx context.Context, tx Tx, id int64) (*domain.Flight, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	f, err := scanFlight(ptx.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return f, classify(err)
}

func (r *PGFlightRepository) CompareAndSwap(ctx context.Context, tx Tx, next *domain.Flight, expectedVersion int64) (CASResult, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return CASConflict, err
	}

	err = ptx.QueryRow(ctx, `UPDATE flights
		SET available_seats = $1, status = $2, version = version + 1, updated_at = now()
		WHERE id = $3 AND version = $4
		RETURNING version, updated_at`,
		next.AvailableSeats, next.Status, next.ID, expectedVersion).
		Scan(&next.Version, &next.UpdatedAt)
	if err == nil {
		return CASApplied, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		// 40001/40P01 abort the transaction: report them as errors, not as a
		// zero-row match the caller could retry in place.
		return CASConflict, classify(err)
	}

	// Zero rows: either the row is gone or someone else bumped the version.
	var exists bool
	if err := ptx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM flights WHERE id=$1)`, next.ID).Scan(&exists); err != nil {
		return CASConflict, classify(err)
	}
	if !exists {
		return CASNotFound, nil
	}
	return CASConflict, nil
}

const accountingQuery = `SELECT f.id, f.total_seats, f.available_seats,
		COALESCE(SUM(b.seat_count) FILTER (WHERE b.status <> 'Cancelled'), 0)
	FROM flights f
	LEFT JOIN bookings b ON b.flight_id = f.id`

func (r *PGFlightRepository) Accounting(ctx context.Context) ([]domain.SeatAccount, error) {
	rows, err := r.db.Query(ctx, accountingQuery+` GROUP BY f.id ORDER BY f.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.SeatAccount
	for rows.Next() {
		var a domain.SeatAccount
		if err := rows.Scan(&a.FlightID, &a.Capacity, &a.Available, &a.Held); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *PGFlightRepository) AccountingByID(ctx context.Context, id int64) (*domain.SeatAccount, error) {
	var a domain.SeatAccount
	err := r.db.QueryRow(ctx, accountingQuery+` WHERE f.id = $1 GROUP BY f.id`, id).
		Scan(&a.FlightID, &a.Capacity, &a.Available, &a.Held)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
