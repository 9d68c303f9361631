// Package memory is a transactional in-process store with the same contracts as the
// PostgreSQL repositories. Writes are buffered per transaction and validated against
// the committed versions again at commit, so lost races surface as conflicts exactly
// like a zero-row "UPDATE ... WHERE version=$n". Seat returns are the exception: they
// are replayed on top of whatever committed first, as a release retried under READ
// COMMITTED would be.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

var errTxDone = errors.New("memory: transaction already finished")

type Store struct {
	mu            sync.Mutex
	flights       map[int64]domain.Flight
	bookings      map[int64]domain.Booking
	nextFlightID  int64
	nextBookingID int64
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		flights:  make(map[int64]domain.Flight),
		bookings: make(map[int64]domain.Booking),
		now:      time.Now,
	}
}

func (s *Store) Flights() repository.FlightRepository {
	return &flightRepo{s: s}
}

func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepo{s: s}
}

func (s *Store) Begin(ctx context.Context) (repository.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{
		s:        s,
		flights:  make(map[int64]flightWrite),
		inserts:  make(map[int64]domain.Booking),
		statuses: make(map[int64]statusWrite),
	}, nil
}

// flightWrite is a buffered flight update together with the committed row it was
// computed from.
type flightWrite struct {
	next        domain.Flight
	baseVersion int64
	baseSeats   int
	baseStatus  domain.FlightStatus
}

// rebase replays w onto a flight that moved since w was computed. Only pure seat
// returns commute with other writers; anything else is a lost race.
func (w flightWrite) rebase(current domain.Flight) (domain.Flight, bool) {
	if current.Version == w.baseVersion {
		return w.next, true
	}
	delta := w.next.AvailableSeats - w.baseSeats
	if delta < 0 || w.next.Status != w.baseStatus {
		return domain.Flight{}, false
	}
	next := current
	next.AvailableSeats = current.AvailableSeats + delta
	next.Version = current.Version + (w.next.Version - w.baseVersion)
	next.UpdatedAt = w.next.UpdatedAt
	return next, true
}

type statusWrite struct {
	next       domain.Booking
	baseStatus string
}

type tx struct {
	s        *Store
	flights  map[int64]flightWrite
	inserts  map[int64]domain.Booking
	statuses map[int64]statusWrite
	done     bool
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	flights := make(map[int64]domain.Flight, len(t.flights))
	for id, w := range t.flights {
		current, ok := s.flights[id]
		if !ok {
			return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
		}
		next, ok := w.rebase(current)
		if !ok {
			return fmt.Errorf("flight %d moved from version %d to %d: %w", id, w.baseVersion, current.Version, domain.ErrConcurrentUpdate)
		}
		if next.AvailableSeats < 0 {
			return fmt.Errorf("flight %d: available seats would go negative", id)
		}
		flights[id] = next
	}
	for id, w := range t.statuses {
		if _, inserted := t.inserts[id]; inserted {
			continue
		}
		current, ok := s.bookings[id]
		if !ok {
			return fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
		}
		if current.Status != w.baseStatus {
			return fmt.Errorf("booking %d status changed to %q: %w", id, current.Status, domain.ErrConcurrentUpdate)
		}
	}

	for id, f := range flights {
		s.flights[id] = f
	}
	for id, b := range t.inserts {
		s.bookings[id] = b
	}
	for id, w := range t.statuses {
		s.bookings[id] = w.next
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.done = true
	t.flights = nil
	t.inserts = nil
	t.statuses = nil
	return nil
}

func (s *Store) asTx(rtx repository.Tx) (*tx, error) {
	t, ok := rtx.(*tx)
	if !ok || t == nil || t.s != s {
		return nil, fmt.Errorf("memory: unsupported tx %T", rtx)
	}
	if t.done {
		return nil, errTxDone
	}
	return t, nil
}

// flightView returns the flight as seen from inside t: its own pending write if any,
// otherwise the committed row.
func (t *tx) flightView(id int64) (domain.Flight, bool) {
	if w, ok := t.flights[id]; ok {
		return w.next, true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	f, ok := t.s.flights[id]
	return f, ok
}

func (t *tx) bookingView(id int64) (domain.Booking, bool) {
	if w, ok := t.statuses[id]; ok {
		return w.next, true
	}
	if b, ok := t.inserts[id]; ok {
		return b, true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b, ok := t.s.bookings[id]
	return b, ok
}

type flightRepo struct {
	s *Store
}

func (r *flightRepo) List(ctx context.Context) ([]domain.Flight, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	flights := make([]domain.Flight, 0, len(r.s.flights))
	for _, f := range r.s.flights {
		flights = append(flights, f)
	}
	sort.Slice(flights, func(i, j int) bool {
		if flights[i].DepartureTime.Equal(flights[j].DepartureTime) {
			return flights[i].ID < flights[j].ID
		}
		return flights[i].DepartureTime.Before(flights[j].DepartureTime)
	})
	return flights, nil
}

func (r *flightRepo) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.flights[id]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (r *flightRepo) Create(ctx context.Context, f *domain.Flight) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextFlightID++
	now := r.s.now()
	f.ID = r.s.nextFlightID
	f.CreatedAt = now
	f.UpdatedAt = now
	r.s.flights[f.ID] = *f
	return nil
}

func (r *flightRepo) GetByIDTx(ctx context.Context, rtx repository.Tx, id int64) (*domain.Flight, error) {
	t, err := r.s.asTx(rtx)
	if err != nil {
		return nil, err
	}
	f, ok := t.flightView(id)
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (r *flightRepo) CompareAndSwap(ctx context.Context, rtx repository.Tx, next *domain.Flight, expectedVersion int64) (repository.CASResult, error) {
	t, err := r.s.asTx(rtx)
	if err != nil {
		return repository.CASConflict, err
	}
	current, ok := t.flightView(next.ID)
	if !ok {
		return repository.CASNotFound, nil
	}
	if current.Version != expectedVersion {
		return repository.CASConflict, nil
	}

	base := flightWrite{baseVersion: current.Version, baseSeats: current.AvailableSeats, baseStatus: current.Status}
	if w, ok := t.flights[next.ID]; ok {
		base = w
	}
	written := current
	written.AvailableSeats = next.AvailableSeats
	written.Status = next.Status
	written.Version = expectedVersion + 1
	written.UpdatedAt = r.s.now()
	base.next = written
	t.flights[next.ID] = base

	next.Version = written.Version
	next.UpdatedAt = written.UpdatedAt
	return repository.CASApplied, nil
}

func (r *flightRepo) Accounting(ctx context.Context) ([]domain.SeatAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	accounts := make([]domain.SeatAccount, 0, len(r.s.flights))
	for _, f := range r.s.flights {
		accounts = append(accounts, r.s.accountLocked(f))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].FlightID < accounts[j].FlightID })
	return accounts, nil
}

func (r *flightRepo) AccountingByID(ctx context.Context, id int64) (*domain.SeatAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.flights[id]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	a := r.s.accountLocked(f)
	return &a, nil
}

func (s *Store) accountLocked(f domain.Flight) domain.SeatAccount {
	a := domain.SeatAccount{FlightID: f.ID, Capacity: f.TotalSeats, Available: f.AvailableSeats}
	for _, b := range s.bookings {
		if b.FlightID == f.ID && b.HoldsSeats() {
			a.Held += b.SeatCount
		}
	}
	return a
}

type bookingRepo struct {
	s *Store
}

func (r *bookingRepo) InsertTx(ctx context.Context, rtx repository.Tx, b *domain.Booking) error {
	t, err := r.s.asTx(rtx)
	if err != nil {
		return err
	}
	if _, ok := t.flightView(b.FlightID); !ok {
		return fmt.Errorf("flight %d: %w", b.FlightID, domain.ErrNotFound)
	}

	r.s.mu.Lock()
	r.s.nextBookingID++
	b.ID = r.s.nextBookingID
	r.s.mu.Unlock()

	b.UpdatedAt = b.CreatedAt
	t.inserts[b.ID] = *b
	return nil
}

func (r *bookingRepo) GetByIDTx(ctx context.Context, rtx repository.Tx, id int64) (*domain.Booking, error) {
	t, err := r.s.asTx(rtx)
	if err != nil {
		return nil, err
	}
	b, ok := t.bookingView(id)
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return &b, nil
}

func (r *bookingRepo) UpdateStatusTx(ctx context.Context, rtx repository.Tx, b *domain.Booking, from string) (repository.CASResult, error) {
	t, err := r.s.asTx(rtx)
	if err != nil {
		return repository.CASConflict, err
	}
	current, ok := t.bookingView(b.ID)
	if !ok {
		return repository.CASNotFound, nil
	}
	if current.Status != from {
		return repository.CASConflict, nil
	}

	base := from
	if w, ok := t.statuses[b.ID]; ok {
		base = w.baseStatus
	}
	written := current
	written.Status = b.Status
	written.UpdatedAt = r.s.now()
	if _, inserted := t.inserts[b.ID]; inserted {
		t.inserts[b.ID] = written
	} else {
		t.statuses[b.ID] = statusWrite{next: written, baseStatus: base}
	}
	b.UpdatedAt = written.UpdatedAt
	return repository.CASApplied, nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return &b, nil
}

func (r *bookingRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	bookings := make([]domain.Booking, 0)
	for _, b := range r.s.bookings {
		if b.UserID == userID {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID > bookings[j].ID })
	return bookings, nil
}

var (
	_ repository.TxManager         = (*Store)(nil)
	_ repository.FlightRepository  = (*flightRepo)(nil)
	_ repository.BookingRepository = (*bookingRepo)(nil)
)
