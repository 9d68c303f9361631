package inventory

import (
	"context"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logger"
	"github.com/Domenick1991/flightbooking/internal/monitoring"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

// Auditor checks available + held == capacity for every flight.
type Auditor struct {
	flights repository.FlightRepository
	metrics *monitoring.Metrics
	log     *logger.Logger
}

func NewAuditor(flights repository.FlightRepository, metrics *monitoring.Metrics, log *logger.Logger) *Auditor {
	if log == nil {
		log = logger.Nop()
	}
	return &Auditor{flights: flights, metrics: metrics, log: log}
}

func (a *Auditor) Audit(ctx context.Context, flightID int64) (*domain.SeatAccount, error) {
	account, err := a.flights.AccountingByID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	a.report(*account)
	return account, nil
}

// AuditAll returns the accounts that do not balance.
func (a *Auditor) AuditAll(ctx context.Context) ([]domain.SeatAccount, error) {
	accounts, err := a.flights.Accounting(ctx)
	if err != nil {
		return nil, err
	}

	var unbalanced []domain.SeatAccount
	for _, account := range accounts {
		if !a.report(account) {
			unbalanced = append(unbalanced, account)
		}
	}
	return unbalanced, nil
}

func (a *Auditor) report(account domain.SeatAccount) bool {
	a.metrics.AccountingDrift(account.FlightID, account.Drift())
	if account.Balanced() {
		return true
	}
	a.log.Error("seat accounting mismatch",
		"flight_id", account.FlightID,
		"capacity", account.Capacity,
		"available", account.Available,
		"held", account.Held,
		"drift", account.Drift(),
	)
	return false
}
