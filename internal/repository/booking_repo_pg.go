package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	InsertTx(ctx context.Context, tx Tx, booking *domain.Booking) error
	GetByIDTx(ctx context.Context, tx Tx, id int64) (*domain.Booking, error)
	// UpdateStatusTx writes booking.Status only if the stored status still equals from.
	UpdateStatusTx(ctx context.Context, tx Tx, booking *domain.Booking, from string) (CASResult, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, user_id, flight_id, seat_count, total_price, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.FlightID, &b.SeatCount, &b.TotalPrice, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) InsertTx(ctx context.Context, tx Tx, b *domain.Booking) error {
	ptx, err := pgxTx(tx)
	if err != nil {
		return err
	}
	err = ptx.QueryRow(ctx, `INSERT INTO bookings (user_id, flight_id, seat_count, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, updated_at`,
		b.UserID, b.FlightID, b.SeatCount, b.TotalPrice, b.Status, b.CreatedAt).
		Scan(&b.ID, &b.UpdatedAt)
	return classify(err)
}

func (r *PGBookingRepository) GetByIDTx(ctx context.Context, tx Tx, id int64) (*domain.Booking, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	b, err := scanBooking(ptx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return b, classify(err)
}

func (r *PGBookingRepository) UpdateStatusTx(ctx context.Context, tx Tx, b *domain.Booking, from string) (CASResult, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return CASConflict, err
	}
	cmd, err := ptx.Exec(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, b.Status, b.ID, from)
	if err != nil {
		return CASConflict, classify(err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := ptx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id=$1)`, b.ID).Scan(&exists); err != nil {
			return CASConflict, classify(err)
		}
		if !exists {
			return CASNotFound, nil
		}
		return CASConflict, nil
	}
	return CASApplied, nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return b, err
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
