// Package exchange fetches, caches and applies currency exchange rates.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// Rate table origins.
const (
	OriginLive     = "live"
	OriginStale    = "stale"
	OriginFallback = "fallback"
)

// RateTable holds multipliers relative to Base.
type RateTable struct {
	Base      string
	Rates     map[string]decimal.Decimal
	RateDate  time.Time
	FetchedAt time.Time
	Origin    string
}

// Rate returns the multiplier for code.
func (t *RateTable) Rate(code string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	if code == t.Base {
		return decimal.NewFromInt(1), true
	}
	rate, ok := t.Rates[code]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// RateSource fetches the latest rates for base from an external service.
type RateSource interface {
	Latest(ctx context.Context, base string) (*RateTable, error)
}

// RateProvider returns the current rate table.
type RateProvider interface {
	Rates(ctx context.Context) (*RateTable, error)
}

// Converter converts amounts between currencies.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, fromCurrency, toCurrency string) (decimal.Decimal, error)
}

// Service converts and formats amounts using a RateProvider.
type Service struct {
	rates RateProvider
}

// NewService creates a Service backed by rates.
func NewService(rates RateProvider) *Service {
	return &Service{rates: rates}
}

// Rates returns the current rate table.
func (s *Service) Rates(ctx context.Context) (*RateTable, error) {
	if s.rates == nil {
		return nil, apperr.New(apperr.ErrRatesUnavailable, "exchange rates are unavailable")
	}
	table, err := s.rates.Rates(ctx)
	if err != nil || table == nil || len(table.Rates) == 0 {
		return nil, apperr.New(apperr.ErrRatesUnavailable, "exchange rates are unavailable")
	}
	return table, nil
}

// Convert converts amount from one currency to another through the base
// currency. Identical currencies return amount unchanged without a rate lookup.
func (s *Service) Convert(
	ctx context.Context,
	amount decimal.Decimal,
	fromCurrency, toCurrency string,
) (decimal.Decimal, error) {
	from := models.NormalizeCurrencyCode(fromCurrency)
	to := models.NormalizeCurrencyCode(toCurrency)
	if !models.IsSupportedCurrency(from) {
		return decimal.Zero, apperr.New(apperr.ErrInvalidOperation, "unsupported currency %q", from)
	}
	if !models.IsSupportedCurrency(to) {
		return decimal.Zero, apperr.New(apperr.ErrInvalidOperation, "unsupported currency %q", to)
	}
	if from == to {
		return amount, nil
	}

	table, err := s.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	inBase := amount
	if from != table.Base {
		rate, ok := table.Rate(from)
		if !ok {
			return decimal.Zero, apperr.New(apperr.ErrRatesUnavailable, "no exchange rate for %s", from)
		}
		inBase = amount.Div(rate)
	}
	if to == table.Base {
		return inBase, nil
	}
	rate, ok := table.Rate(to)
	if !ok {
		return decimal.Zero, apperr.New(apperr.ErrRatesUnavailable, "no exchange rate for %s", to)
	}
	return inBase.Mul(rate), nil
}

// ListSupported returns the currencies accepted as input anywhere.
func ListSupported() []models.Currency {
	out := make([]models.Currency, len(models.SupportedCurrencies))
	copy(out, models.SupportedCurrencies)
	return out
}
