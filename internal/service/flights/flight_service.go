package flights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/inventory"
	"github.com/shopspring/decimal"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
	SetStatus(ctx context.Context, id int64, status string) (*domain.Flight, error)
	Accounting(ctx context.Context, id int64) (*domain.SeatAccount, error)
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type FlightService struct {
	tx      repository.TxManager
	repo    repository.FlightRepository
	ledger  *inventory.Ledger
	auditor *inventory.Auditor
	cache   FlightCache
	log     *logger.Logger
}

type CreateFlightInput struct {
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureTime time.Time       `json:"departure_time"`
	Price         decimal.Decimal `json:"price"`
	TotalSeats    int             `json:"total_seats"`
}

func NewFlightService(
	tx repository.TxManager,
	repo repository.FlightRepository,
	ledger *inventory.Ledger,
	cache FlightCache,
	log *logger.Logger,
) *FlightService {
	if log == nil {
		log = logger.Nop()
	}
	return &FlightService{
		tx:      tx,
		repo:    repo,
		ledger:  ledger,
		auditor: inventory.NewAuditor(repo, nil, log),
		cache:   cache,
		log:     log,
	}
}

// List serves from the cache when it can. Seat counts in a cached list may lag the
// ledger by up to the cache TTL; bookings never read them from here.
func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		cached, err := s.cache.GetFlights(ctx)
		if err != nil {
			s.log.Warn("flights cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			s.log.Warn("flights cache write failed", "error", err)
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	origin := strings.ToUpper(strings.TrimSpace(input.Origin))
	destination := strings.ToUpper(strings.TrimSpace(input.Destination))
	switch {
	case origin == "" || destination == "":
		return nil, fmt.Errorf("origin and destination are required: %w", domain.ErrInvalidRequest)
	case origin == destination:
		return nil, fmt.Errorf("origin and destination must differ: %w", domain.ErrInvalidRequest)
	case input.TotalSeats < 1:
		return nil, fmt.Errorf("total seats must be positive, got %d: %w", input.TotalSeats, domain.ErrInvalidRequest)
	case !input.Price.IsPositive():
		return nil, fmt.Errorf("price must be positive: %w", domain.ErrInvalidRequest)
	case input.DepartureTime.IsZero():
		return nil, fmt.Errorf("departure time is required: %w", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateMoney("price", input.Price); err != nil {
		return nil, err
	}

	flight := &domain.Flight{
		Origin:         origin,
		Destination:    destination,
		DepartureTime:  input.DepartureTime,
		Price:          input.Price,
		TotalSeats:     input.TotalSeats,
		AvailableSeats: input.TotalSeats,
		Status:         domain.FlightStatusActive,
		Version:        1,
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("flight created", "flight_id", flight.ID, "seats", flight.TotalSeats)
	return flight, nil
}

// SetStatus activates or cancels a flight. Existing bookings are left as they are;
// a cancelled flight only stops accepting new ones.
func (s *FlightService) SetStatus(ctx context.Context, id int64, status string) (*domain.Flight, error) {
	next, ok := domain.ParseFlightStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown flight status %q: %w", status, domain.ErrInvalidRequest)
	}

	var updated *domain.Flight
	err := repository.WithinTx(ctx, s.tx, func(tx repository.Tx) error {
		f, err := s.ledger.SetStatus(ctx, tx, id, next)
		if err != nil {
			return err
		}
		updated = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.log.Warn("flights cache invalidation failed", "error", err)
	}
}

// Accounting reports the flight's seat ledger; a non-zero drift is also logged.
func (s *FlightService) Accounting(ctx context.Context, id int64) (*domain.SeatAccount, error) {
	return s.auditor.Audit(ctx, id)
}

var _ FlightUseCase = (*FlightService)(nil)
