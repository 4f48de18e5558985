package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/database"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

func createTestBusiness(t *testing.T, repo *BusinessRepository, owner *models.User, name string) *models.Business {
	t.Helper()
	b := &models.Business{
		Name:     name,
		OwnerID:  owner.ID,
		Currency: "USD",
		Partners: []models.Partner{{UserID: owner.ID, Role: models.RoleOwner}},
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestBusinessRepository_CreateAndGet(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	users := NewUserRepository(tx)
	repo := NewBusinessRepository(tx)
	owner := createTestUser(t, users, "owner@example.com", models.UserRoleUser)

	b := createTestBusiness(t, repo, owner, "Corner Shop")
	require.NotEqual(t, uuid.Nil, b.ID)
	require.Equal(t, int64(1), b.Version)

	fetched, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "Corner Shop", fetched.Name)
	require.Equal(t, owner.ID, fetched.OwnerID)
	require.Len(t, fetched.Partners, 1)
	require.Equal(t, models.RoleOwner, fetched.Partners[0].Role)

	_, err = repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := repo.CountOwnedBy(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBusinessRepository_ListForUser(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	users := NewUserRepository(tx)
	repo := NewBusinessRepository(tx)
	owner := createTestUser(t, users, "list-owner@example.com", models.UserRoleUser)
	viewer := createTestUser(t, users, "list-viewer@example.com", models.UserRoleUser)
	stranger := createTestUser(t, users, "list-stranger@example.com", models.UserRoleUser)

	first := createTestBusiness(t, repo, owner, "First")
	createTestBusiness(t, repo, owner, "Second")
	require.NoError(t, repo.AddPartner(ctx, first, &models.Partner{UserID: viewer.ID, Role: models.RoleViewer}))

	owned, err := repo.ListForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, owned, 2)

	shared, err := repo.ListForUser(ctx, viewer.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Equal(t, "First", shared[0].Name)
	require.Len(t, shared[0].Partners, 2)

	none, err := repo.ListForUser(ctx, stranger.ID)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestBusinessRepository_Update(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	users := NewUserRepository(tx)
	repo := NewBusinessRepository(tx)
	owner := createTestUser(t, users, "update-owner@example.com", models.UserRoleUser)
	b := createTestBusiness(t, repo, owner, "Before")

	stale := *b

	b.Name = "After"
	b.Currency = "EUR"
	require.NoError(t, repo.Update(ctx, b))
	require.Equal(t, int64(2), b.Version)

	fetched, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "After", fetched.Name)
	require.Equal(t, "EUR", fetched.Currency)

	stale.Name = "Lost update"
	err = repo.Update(ctx, &stale)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestBusinessRepository_Partners(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	users := NewUserRepository(tx)
	repo := NewBusinessRepository(tx)
	owner := createTestUser(t, users, "p-owner@example.com", models.UserRoleUser)
	editor := createTestUser(t, users, "p-editor@example.com", models.UserRoleUser)
	b := createTestBusiness(t, repo, owner, "Partnership")

	t.Run("adds partner and bumps version", func(t *testing.T) {
		require.NoError(t, repo.AddPartner(ctx, b, &models.Partner{UserID: editor.ID, Role: models.RoleEditor}))
		require.Equal(t, int64(2), b.Version)
	})

	t.Run("rejects duplicate partner", func(t *testing.T) {
		err := repo.AddPartner(ctx, b, &models.Partner{UserID: editor.ID, Role: models.RoleViewer})
		require.ErrorIs(t, err, apperr.ErrDuplicate)
		require.Equal(t, int64(2), b.Version)
	})

	t.Run("rejects unknown user", func(t *testing.T) {
		err := repo.AddPartner(ctx, b, &models.Partner{UserID: uuid.New(), Role: models.RoleViewer})
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("rejects stale version", func(t *testing.T) {
		stale := *b
		stale.Version = 1
		err := repo.RemovePartner(ctx, &stale, editor.ID)
		require.ErrorIs(t, err, apperr.ErrConflict)
		require.Equal(t, int64(1), stale.Version)
	})

	t.Run("updates partner role", func(t *testing.T) {
		require.NoError(t, repo.UpdatePartnerRole(ctx, b, editor.ID, models.RoleViewer))

		fetched, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		p, ok := fetched.PartnerFor(editor.ID)
		require.True(t, ok)
		require.Equal(t, models.RoleViewer, p.Role)
	})

	t.Run("never touches the owner entry", func(t *testing.T) {
		err := repo.UpdatePartnerRole(ctx, b, owner.ID, models.RoleViewer)
		require.ErrorIs(t, err, apperr.ErrNotFound)
		err = repo.RemovePartner(ctx, b, owner.ID)
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("removes partner", func(t *testing.T) {
		require.NoError(t, repo.RemovePartner(ctx, b, editor.ID))

		fetched, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		require.Len(t, fetched.Partners, 1)
		require.Equal(t, fetched.Version, b.Version)
	})
}

func TestBusinessRepository_Delete(t *testing.T) {
	tx := database.TestTx(t)
	ctx := context.Background()

	users := NewUserRepository(tx)
	repo := NewBusinessRepository(tx)
	txns := NewTransactionRepository(tx)
	owner := createTestUser(t, users, "delete-owner@example.com", models.UserRoleUser)
	b := createTestBusiness(t, repo, owner, "Closing Down")

	txn := newTestTransaction(b.ID, owner.ID, models.TransactionIncome, "10.00")
	require.NoError(t, txns.Create(ctx, txn))

	require.NoError(t, repo.Delete(ctx, b.ID))

	_, err := repo.GetByID(ctx, b.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = txns.GetByID(ctx, txn.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	err = repo.Delete(ctx, b.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
