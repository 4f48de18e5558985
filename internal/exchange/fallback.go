package exchange

import (
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// fallbackRates are approximate USD multipliers used only when no live
// table has ever been fetched. Every supported currency must be listed.
var fallbackRates = map[string]string{
	"USD": "1",
	"EUR": "0.92",
	"GBP": "0.79",
	"JPY": "150.5",
	"CNY": "7.24",
	"INR": "83.2",
	"SGD": "1.35",
	"MYR": "4.72",
	"THB": "36.1",
	"IDR": "15650",
	"PHP": "56.3",
	"VND": "24600",
	"KRW": "1335",
	"AUD": "1.53",
	"NZD": "1.66",
	"HKD": "7.82",
	"TWD": "31.6",
	"CAD": "1.36",
	"CHF": "0.88",
}

// FallbackTable returns the static rate table relative to models.BaseCurrency.
func FallbackTable() *RateTable {
	rates := make(map[string]decimal.Decimal, len(fallbackRates))
	for code, raw := range fallbackRates {
		rates[code] = decimal.RequireFromString(raw)
	}
	return &RateTable{
		Base:   models.BaseCurrency,
		Rates:  rates,
		Origin: OriginFallback,
	}
}

// withFallbackGaps fills codes the live source does not publish from the
// static table, so every supported currency stays convertible.
func withFallbackGaps(table *RateTable) (*RateTable, []string) {
	if table.Base != models.BaseCurrency {
		return table, nil
	}
	fallback := FallbackTable()
	var filled []string
	for _, c := range models.SupportedCurrencies {
		if _, ok := table.Rate(c.Code); ok {
			continue
		}
		table.Rates[c.Code] = fallback.Rates[c.Code]
		filled = append(filled, c.Code)
	}
	return table, filled
}
