package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLookupCurrency(t *testing.T) {
	t.Parallel()

	t.Run("normalizes code", func(t *testing.T) {
		t.Parallel()
		c, ok := LookupCurrency(" eur ")
		require.True(t, ok)
		require.Equal(t, "EUR", c.Code)
		require.Equal(t, "€", c.Symbol)
	})

	t.Run("rejects unknown code", func(t *testing.T) {
		t.Parallel()
		_, ok := LookupCurrency("XYZ")
		require.False(t, ok)
		require.False(t, IsSupportedCurrency(""))
	})

	t.Run("base currency is supported", func(t *testing.T) {
		t.Parallel()
		require.True(t, IsSupportedCurrency(BaseCurrency))
		require.True(t, IsSupportedCurrency(DefaultCurrency))
	})

	t.Run("codes are unique", func(t *testing.T) {
		t.Parallel()
		seen := make(map[string]bool)
		for _, c := range SupportedCurrencies {
			require.False(t, seen[c.Code], "duplicate code %s", c.Code)
			seen[c.Code] = true
			require.Len(t, c.Code, 3)
			require.NotEmpty(t, c.Symbol)
		}
	})
}

func TestEnums(t *testing.T) {
	t.Parallel()

	require.True(t, UserRoleAdmin.Valid())
	require.True(t, UserRoleUser.Valid())
	require.False(t, UserRole("root").Valid())

	require.True(t, TransactionIncome.Valid())
	require.True(t, TransactionExpense.Valid())
	require.False(t, TransactionType("transfer").Valid())

	require.Equal(t, RoleEditor, *RoleEditor.Ptr())
}

func TestBusiness_PartnerFor(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	viewer := uuid.New()
	b := &Business{
		OwnerID: owner,
		Partners: []Partner{
			{UserID: owner, Role: RoleOwner},
			{UserID: viewer, Role: RoleViewer},
		},
	}

	p, ok := b.PartnerFor(viewer)
	require.True(t, ok)
	require.Equal(t, RoleViewer, p.Role)

	_, ok = b.PartnerFor(uuid.New())
	require.False(t, ok)
}
