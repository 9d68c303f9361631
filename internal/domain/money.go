package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Prices and totals are stored as NUMERIC(12, 2).
const MoneyScale = 2

var moneyLimit = decimal.New(1, 10)

// ValidateMoney rejects amounts the store would round or could not hold, so what is
// persisted is exactly what the caller sent.
func ValidateMoney(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return fmt.Errorf("%s %s has more than %d decimal places: %w", field, amount, MoneyScale, ErrInvalidRequest)
	}
	if amount.Abs().GreaterThanOrEqual(moneyLimit) {
		return fmt.Errorf("%s %s is out of range: %w", field, amount, ErrInvalidRequest)
	}
	return nil
}
