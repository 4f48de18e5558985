package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := parseDate("date", " 2024-06-01 ")
	require.NoError(t, err)
	require.Equal(t, "2024-06-01", got.Format(time.DateOnly))

	got, err = parseDate("date", "2024-06-01T23:30:00+07:00")
	require.NoError(t, err)
	require.Equal(t, 23, got.Hour())

	_, err = parseDate("from", "01/06/2024")
	require.ErrorIs(t, err, apperr.ErrInvalidOperation)
	require.Contains(t, apperr.MessageOf(err), "from")

	empty, err := optionalDate("to", "  ")
	require.NoError(t, err)
	require.Nil(t, empty)
}

func FuzzParseDate(f *testing.F) {
	for _, seed := range []string{"2024-06-01", "2024-02-30", "2024-06-01T10:00:00Z", "", "yesterday", "\x00"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		got, err := parseDate("date", raw)
		if err != nil {
			require.ErrorIs(t, err, apperr.ErrInvalidOperation)
			return
		}
		again, err := parseDate("date", got.Format(time.RFC3339Nano))
		require.NoError(t, err)
		require.True(t, again.Equal(got), "%q parsed as %s then %s", raw, got, again)
	})
}

func TestTransactionFilter(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?from=2024-01-01&to=2024-01-31&type=Expense", nil)
	filter, err := transactionFilter(req)
	require.NoError(t, err)
	require.Equal(t, "2024-01-01", filter.From.Format(time.DateOnly))
	require.Equal(t, "2024-01-31", filter.To.Format(time.DateOnly))
	require.Equal(t, models.TransactionExpense, *filter.Type)

	filter, err = transactionFilter(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Nil(t, filter.From)
	require.Nil(t, filter.To)
	require.Nil(t, filter.Type)

	_, err = transactionFilter(httptest.NewRequest(http.MethodGet, "/?to=soon", nil))
	require.ErrorIs(t, err, apperr.ErrInvalidOperation)
}
