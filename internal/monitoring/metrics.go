package monitoring

import (
	"errors"
	"strconv"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK                = "ok"
	OutcomeNotFound          = "not_found"
	OutcomeInsufficientSeats = "insufficient_seats"
	OutcomeConflict          = "conflict"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	bookingAttempts *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	seatsReserved   prometheus.Counter
	seatsReleased   prometheus.Counter
	ledgerConflicts *prometheus.CounterVec
	accountingDrift *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bookingAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_create_total",
				Help: "Booking creation attempts by outcome",
			},
			[]string{"outcome"},
		),
		statusChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_status_change_total",
				Help: "Booking status changes by requested status and outcome",
			},
			[]string{"status", "outcome"},
		),
		seatsReserved: f.NewCounter(
			prometheus.CounterOpts{
				Name: "flight_seats_reserved_total",
				Help: "Seats taken from flight inventory",
			},
		),
		seatsReleased: f.NewCounter(
			prometheus.CounterOpts{
				Name: "flight_seats_released_total",
				Help: "Seats returned to flight inventory by cancellations",
			},
		),
		ledgerConflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flight_version_conflicts_total",
				Help: "Conditioned flight writes that lost an optimistic version check",
			},
			[]string{"operation"},
		),
		accountingDrift: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flight_seat_accounting_drift",
				Help: "available + held - capacity per flight; non-zero means the ledger is off",
			},
			[]string{"flight_id"},
		),
	}
}

func (m *Metrics) BookingAttempt(err error) {
	if m == nil {
		return
	}
	m.bookingAttempts.WithLabelValues(Outcome(err)).Inc()
}

func (m *Metrics) StatusChange(status string, err error) {
	if m == nil {
		return
	}
	// open status taxonomy; keep label cardinality bounded
	if status != domain.BookingStatusConfirmed && status != domain.BookingStatusCancelled {
		status = "other"
	}
	m.statusChanges.WithLabelValues(status, Outcome(err)).Inc()
}

func (m *Metrics) SeatsReserved(n int) {
	if m == nil {
		return
	}
	m.seatsReserved.Add(float64(n))
}

func (m *Metrics) SeatsReleased(n int) {
	if m == nil {
		return
	}
	m.seatsReleased.Add(float64(n))
}

func (m *Metrics) LedgerConflict(operation string) {
	if m == nil {
		return
	}
	m.ledgerConflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) AccountingDrift(flightID int64, drift int) {
	if m == nil {
		return
	}
	m.accountingDrift.WithLabelValues(strconv.FormatInt(flightID, 10)).Set(float64(drift))
}

// Outcome buckets an error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrInsufficientSeats):
		return OutcomeInsufficientSeats
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return OutcomeConflict
	case errors.Is(err, domain.ErrInvalidRequest):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
