package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/database"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

func newTestTransaction(businessID, userID uuid.UUID, typ models.TransactionType, amount string) *models.Transaction {
	return &models.Transaction{
		BusinessID:  businessID,
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Description: "test",
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		AddedBy:     userID,
	}
}

func setupTransactionTest(t *testing.T) (context.Context, *TransactionRepository, *models.Business, *models.User) {
	t.Helper()
	tx := database.TestTx(t)

	users := NewUserRepository(tx)
	businesses := NewBusinessRepository(tx)
	owner := createTestUser(t, users, "txn-owner@example.com", models.UserRoleUser)
	b := createTestBusiness(t, businesses, owner, "Ledger")

	return context.Background(), NewTransactionRepository(tx), b, owner
}

func TestTransactionRepository_CRUD(t *testing.T) {
	ctx, repo, b, owner := setupTransactionTest(t)

	txn := newTestTransaction(b.ID, owner.ID, models.TransactionExpense, "12.34")
	require.NoError(t, repo.Create(ctx, txn))
	require.NotEqual(t, uuid.Nil, txn.ID)

	fetched, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("12.34").Equal(fetched.Amount))
	require.Equal(t, models.TransactionExpense, fetched.Type)
	require.Equal(t, owner.ID, fetched.AddedBy)
	require.Equal(t, "2024-03-15", fetched.Date.Format(time.DateOnly))

	txn.Type = models.TransactionIncome
	txn.Amount = decimal.RequireFromString("99.99")
	txn.Description = "refund"
	require.NoError(t, repo.Update(ctx, txn))

	fetched, err = repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionIncome, fetched.Type)
	require.Equal(t, "refund", fetched.Description)

	require.NoError(t, repo.Delete(ctx, txn.ID))
	_, err = repo.GetByID(ctx, txn.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, txn.ID), apperr.ErrNotFound)

	missing := newTestTransaction(b.ID, owner.ID, models.TransactionIncome, "1")
	missing.ID = uuid.New()
	require.ErrorIs(t, repo.Update(ctx, missing), apperr.ErrNotFound)
}

func TestTransactionRepository_CreateBatch(t *testing.T) {
	ctx, repo, b, owner := setupTransactionTest(t)

	t.Run("stores every item", func(t *testing.T) {
		batch := []*models.Transaction{
			newTestTransaction(b.ID, owner.ID, models.TransactionIncome, "100"),
			newTestTransaction(b.ID, owner.ID, models.TransactionExpense, "40"),
		}
		require.NoError(t, repo.CreateBatch(ctx, batch))

		txns, err := repo.List(ctx, b.ID, models.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, txns, 2)
	})

	t.Run("stores nothing when one item fails", func(t *testing.T) {
		batch := []*models.Transaction{
			newTestTransaction(b.ID, owner.ID, models.TransactionIncome, "5"),
			newTestTransaction(uuid.New(), owner.ID, models.TransactionIncome, "5"),
		}
		err := repo.CreateBatch(ctx, batch)
		require.ErrorIs(t, err, apperr.ErrNotFound)

		txns, err := repo.List(ctx, b.ID, models.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, txns, 2)
	})
}

func TestTransactionRepository_ListAndTotals(t *testing.T) {
	ctx, repo, b, owner := setupTransactionTest(t)

	days := []struct {
		day    int
		typ    models.TransactionType
		amount string
	}{
		{1, models.TransactionIncome, "100.00"},
		{2, models.TransactionExpense, "30.50"},
		{3, models.TransactionIncome, "20.00"},
		{4, models.TransactionExpense, "9.50"},
	}
	for _, d := range days {
		txn := newTestTransaction(b.ID, owner.ID, d.typ, d.amount)
		txn.Date = time.Date(2024, 5, d.day, 0, 0, 0, 0, time.UTC)
		require.NoError(t, repo.Create(ctx, txn))
	}

	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 3, 23, 59, 0, 0, time.UTC)
	income := models.TransactionIncome

	tests := []struct {
		name   string
		filter models.TransactionFilter
		want   int
	}{
		{"no filter", models.TransactionFilter{}, 4},
		{"date range is inclusive", models.TransactionFilter{From: &from, To: &to}, 2},
		{"type only", models.TransactionFilter{Type: &income}, 2},
		{"range and type", models.TransactionFilter{From: &from, To: &to, Type: &income}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := repo.List(ctx, b.ID, tt.filter)
			require.NoError(t, err)
			require.Len(t, txns, tt.want)
		})
	}

	t.Run("newest first", func(t *testing.T) {
		txns, err := repo.List(ctx, b.ID, models.TransactionFilter{})
		require.NoError(t, err)
		require.Equal(t, 4, txns[0].Date.Day())
		require.Equal(t, 1, txns[3].Date.Day())
	})

	t.Run("totals", func(t *testing.T) {
		in, out, err := repo.Totals(ctx, b.ID, models.TransactionFilter{})
		require.NoError(t, err)
		require.Equal(t, "120", in.String())
		require.Equal(t, "40", out.String())

		in, out, err = repo.Totals(ctx, b.ID, models.TransactionFilter{From: &from, To: &to})
		require.NoError(t, err)
		require.Equal(t, "20", in.String())
		require.Equal(t, "30.5", out.String())
	})

	t.Run("totals of empty business are zero", func(t *testing.T) {
		in, out, err := repo.Totals(ctx, uuid.New(), models.TransactionFilter{})
		require.NoError(t, err)
		require.True(t, in.IsZero())
		require.True(t, out.IsZero())
	})
}
