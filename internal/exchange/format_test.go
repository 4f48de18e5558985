package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{name: "usd with grouping", amount: "1234567.891", code: "USD", want: "$1,234,567.89"},
		{name: "rounds half up", amount: "0.005", code: "USD", want: "$0.01"},
		{name: "pads to two places", amount: "12", code: "EUR", want: "€12.00"},
		{name: "zero decimal currency", amount: "1234567.5", code: "JPY", want: "¥1,234,568"},
		{name: "zero decimal small", amount: "999.4", code: "KRW", want: "₩999"},
		{name: "negative amount", amount: "-1500.5", code: "GBP", want: "-£1,500.50"},
		{name: "zero", amount: "0", code: "SGD", want: "S$0.00"},
		{name: "lower case code", amount: "10", code: "usd", want: "$10.00"},
		{name: "unknown code", amount: "10", code: "XYZ", want: "XYZ 10.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Format(decimal.RequireFromString(tt.amount), tt.code))
		})
	}
}
