package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
// Amount is stored in whole minor units so ledger sums stay exact.
type Money struct {
	Amount   int64
	Currency string
}

// NewMoney creates a new Money instance from minor units.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts the amount to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount)
}

// ApplyRate returns m scaled by rate, rounded down to whole minor units.
// Commission, cashback and vendor share all go through here so accrual and
// reversal compute identical figures.
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	return Money{
		Amount:   m.ToDecimal().Mul(rate).Floor().IntPart(),
		Currency: m.Currency,
	}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}

// ParseRate parses a configured rate such as "0.85". Negative rates and rates
// above 1 are rejected.
func ParseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse rate %q: %w", raw, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("rate %s out of range [0,1]", rate)
	}
	return rate, nil
}
