package booking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/monitoring"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/shopspring/decimal"
)

const (
	EventBookingCreated       = kafka.EventBookingCreated
	EventBookingStatusChanged = kafka.EventBookingStatusChanged
	EventBookingCancelled     = kafka.EventBookingCancelled
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	SetBookingStatus(ctx context.Context, bookingID int64, status string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
	ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error)
}

// Cache is the read-model cache that has to be dropped after seat counts change.
type Cache interface {
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	tx                 repository.TxManager
	bookings           repository.BookingRepository
	ledger             *inventory.Ledger
	lifecycle          domain.Lifecycle
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	metrics            *monitoring.Metrics
	log                *logger.Logger
	now                func() time.Time
}

type CreateBookingInput struct {
	UserID     int64           `json:"user_id"`
	FlightID   int64           `json:"flight_id"`
	SeatCount  int             `json:"seat_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithStrictStatuses limits SetBookingStatus to Confirmed and Cancelled.
func WithStrictStatuses(strict bool) BookingServiceOption {
	return func(s *BookingService) {
		s.lifecycle.Strict = strict
	}
}

func WithMetrics(m *monitoring.Metrics) BookingServiceOption {
	return func(s *BookingService) {
		s.metrics = m
	}
}

func WithLogger(log *logger.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
	}
}

func NewBookingService(
	tx repository.TxManager,
	bookings repository.BookingRepository,
	ledger *inventory.Ledger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		tx:       tx,
		bookings: bookings,
		ledger:   ledger,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking takes SeatCount seats from the flight and records a Confirmed booking
// in one transaction. A flight that changed between the read and the write fails the
// whole attempt with domain.ErrConcurrentUpdate; the caller decides whether to retry.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	var booking *domain.Booking
	err := repository.WithinTx(ctx, s.tx, func(tx repository.Tx) error {
		flight, err := s.ledger.Load(ctx, tx, input.FlightID)
		if err != nil {
			return err
		}
		if err := validateCreate(input, flight); err != nil {
			return err
		}
		if flight.AvailableSeats < input.SeatCount {
			return fmt.Errorf("flight %d has %d seats, %d requested: %w",
				flight.ID, flight.AvailableSeats, input.SeatCount, domain.ErrInsufficientSeats)
		}

		if _, err := s.ledger.ReserveFrom(ctx, tx, flight, input.SeatCount); err != nil {
			return err
		}

		now := s.now()
		b := &domain.Booking{
			UserID:     input.UserID,
			FlightID:   input.FlightID,
			SeatCount:  input.SeatCount,
			TotalPrice: input.TotalPrice,
			Status:     domain.BookingStatusConfirmed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.bookings.InsertTx(ctx, tx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	s.metrics.BookingAttempt(err)
	if err != nil {
		s.log.Info("booking rejected",
			"flight_id", input.FlightID,
			"user_id", input.UserID,
			"seats", input.SeatCount,
			"outcome", monitoring.Outcome(err),
			"error", err,
		)
		return nil, err
	}

	s.log.Info("booking created", "booking_id", booking.ID, "flight_id", booking.FlightID, "seats", booking.SeatCount)
	s.afterCommit(ctx, EventBookingCreated, booking)
	return booking, nil
}

func validateCreate(input CreateBookingInput, flight *domain.Flight) error {
	if input.SeatCount < 1 {
		return fmt.Errorf("seat count must be positive, got %d: %w", input.SeatCount, domain.ErrInvalidRequest)
	}
	if !input.TotalPrice.IsPositive() {
		return fmt.Errorf("total price must be positive, got %s: %w", input.TotalPrice, domain.ErrInvalidRequest)
	}
	if err := domain.ValidateMoney("total price", input.TotalPrice); err != nil {
		return err
	}
	if !flight.IsActive() {
		return fmt.Errorf("flight %d is %s: %w", flight.ID, flight.Status, domain.ErrInvalidRequest)
	}
	return nil
}

// SetBookingStatus moves a booking to status. Entering Cancelled returns the booking's
// seats to the flight in the same transaction. The status write is conditioned on the
// status read at the start, so of two racing cancellations only one releases seats.
func (s *BookingService) SetBookingStatus(ctx context.Context, bookingID int64, status string) (*domain.Booking, error) {
	var (
		updated  *domain.Booking
		previous string
	)
	err := repository.WithinTx(ctx, s.tx, func(tx repository.Tx) error {
		current, err := s.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		next, release, err := s.lifecycle.Transition(current.Status, status)
		if err != nil {
			return fmt.Errorf("booking %d: %w", bookingID, err)
		}

		if release {
			if _, err := s.ledger.Release(ctx, tx, current.FlightID, current.SeatCount); err != nil {
				return err
			}
		}

		b := *current
		b.Status = next
		res, err := s.bookings.UpdateStatusTx(ctx, tx, &b, current.Status)
		if err != nil {
			return err
		}
		switch res {
		case repository.CASApplied:
		case repository.CASNotFound:
			return fmt.Errorf("booking %d: %w", bookingID, domain.ErrNotFound)
		default:
			return fmt.Errorf("booking %d left status %q concurrently: %w", bookingID, current.Status, domain.ErrConcurrentUpdate)
		}

		previous = current.Status
		updated = &b
		return nil
	})
	s.metrics.StatusChange(domain.NormalizeStatus(status), err)
	if err != nil {
		return nil, err
	}

	s.log.Info("booking status changed", "booking_id", updated.ID, "from", previous, "to", updated.Status)
	event := EventBookingStatusChanged
	if updated.Status == domain.BookingStatusCancelled {
		event = EventBookingCancelled
	}
	s.afterCommit(ctx, event, updated)
	return updated, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	return s.SetBookingStatus(ctx, bookingID, domain.BookingStatusCancelled)
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, bookingID)
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// afterCommit runs the side effects that must never undo a committed booking.
func (s *BookingService) afterCommit(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.log.Warn("failed to invalidate flights cache", "booking_id", booking.ID, "error", err)
		}
	}
	if err := s.publish(ctx, eventType, booking); err != nil {
		s.log.Warn("failed to publish booking event", "type", eventType, "booking_id", booking.ID, "error", err)
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.NewBookingEvent(eventType, booking, s.now())
	key := strconv.FormatInt(booking.ID, 10)
	if err := s.producer.Publish(ctx, s.bookingTopic, key, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, key, event)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
