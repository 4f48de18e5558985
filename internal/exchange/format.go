package exchange

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// Format renders amount with the currency symbol and digit grouping.
// Zero-decimal currencies round to whole units, others to two places.
// Unknown codes are rendered with the code as a prefix.
func Format(amount decimal.Decimal, currencyCode string) string {
	code := models.NormalizeCurrencyCode(currencyCode)
	symbol := code + " "
	places := int32(2)
	if c, ok := models.LookupCurrency(code); ok {
		symbol = c.Symbol
		if c.ZeroDecimal {
			places = 0
		}
	}

	rounded := amount.Round(places)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	out := humanize.Comma(rounded.IntPart())
	if places > 0 {
		fixed := rounded.StringFixed(places)
		out += fixed[strings.IndexByte(fixed, '.'):]
	}
	return sign + symbol + out
}
