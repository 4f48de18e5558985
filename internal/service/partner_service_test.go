package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

func TestPartnerService_Add(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("adds registered user by email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", "")
		editor := f.user(t, "editor@example.com", "")
		b := f.business(t, owner, "Acme")

		p, err := f.svc.Partners.Add(ctx, owner, b.ID, " EDITOR@example.com ", "Editor")
		require.NoError(t, err)
		require.Equal(t, editor.UserID, p.UserID)
		require.Equal(t, models.RoleEditor, p.Role)
		require.False(t, p.JoinedAt.IsZero())

		partners, err := f.svc.Partners.List(ctx, editor, b.ID)
		require.NoError(t, err)
		require.Len(t, partners, 2)
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", "")
		b := f.business(t, owner, "Acme")

		_, err := f.svc.Partners.Add(ctx, owner, b.ID, "ghost@example.com", models.RoleViewer)
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("existing member is a duplicate regardless of role", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", "")
		f.user(t, "viewer@example.com", "")
		b := f.business(t, owner, "Acme")

		_, err := f.svc.Partners.Add(ctx, owner, b.ID, "viewer@example.com", models.RoleViewer)
		require.NoError(t, err)

		roles := []models.PartnerRole{models.RoleViewer, models.RoleEditor, models.RoleOwner, "admin"}
		for _, role := range roles {
			_, err = f.svc.Partners.Add(ctx, owner, b.ID, "viewer@example.com", role)
			require.ErrorIs(t, err, apperr.ErrDuplicate, "role %s", role)

			_, err = f.svc.Partners.Add(ctx, owner, b.ID, "owner@example.com", role)
			require.ErrorIs(t, err, apperr.ErrDuplicate, "owner re-added as %s", role)
		}
	})

	t.Run("owner role cannot be granted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", "")
		f.user(t, "x@example.com", "")
		b := f.business(t, owner, "Acme")

		_, err := f.svc.Partners.Add(ctx, owner, b.ID, "x@example.com", models.RoleOwner)
		require.ErrorIs(t, err, apperr.ErrInvalidOperation)

		_, err = f.svc.Partners.Add(ctx, owner, b.ID, "x@example.com", "admin")
		require.ErrorIs(t, err, apperr.ErrInvalidOperation)
	})

	t.Run("non-member is denied before role is checked", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", "")
		stranger := f.user(t, "stranger@example.com", "")
		b := f.business(t, owner, "Acme")

		_, err := f.svc.Partners.Add(ctx, stranger, b.ID, "owner@example.com", models.RoleViewer)
		require.ErrorIs(t, err, apperr.ErrAccessDenied)
	})
}

func TestPartnerService_ConcurrentAdd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	owner := f.user(t, "owner@example.com", "")
	f.user(t, "racer@example.com", "")
	b := f.business(t, owner, "Acme")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Partners.Add(ctx, owner, b.ID, "racer@example.com", models.RoleViewer)
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrDuplicate)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	stored, err := f.businesses.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, stored.Partners, 2)
	require.Zero(t, f.svc.Partners.locks.size())
}

func TestPartnerService_UpdateAndRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, models.Identity, models.Identity, *models.Business) {
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", "")
		editor := f.user(t, "editor@example.com", "")
		b := f.business(t, owner, "Acme")
		_, err := f.svc.Partners.Add(ctx, owner, b.ID, "editor@example.com", models.RoleEditor)
		require.NoError(t, err)
		return f, owner, editor, b
	}

	t.Run("owner changes role", func(t *testing.T) {
		t.Parallel()
		f, owner, editor, b := setup(t)

		p, err := f.svc.Partners.UpdateRole(ctx, owner, b.ID, editor.UserID, models.RoleViewer)
		require.NoError(t, err)
		require.Equal(t, models.RoleViewer, p.Role)

		stored, err := f.businesses.GetByID(ctx, b.ID)
		require.NoError(t, err)
		got, ok := stored.PartnerFor(editor.UserID)
		require.True(t, ok)
		require.Equal(t, models.RoleViewer, got.Role)
	})

	t.Run("same role is a no-op", func(t *testing.T) {
		t.Parallel()
		f, owner, editor, b := setup(t)
		version := f.version(t, b.ID)

		_, err := f.svc.Partners.UpdateRole(ctx, owner, b.ID, editor.UserID, models.RoleEditor)
		require.NoError(t, err)
		require.Equal(t, version, f.version(t, b.ID))
	})

	t.Run("owner entry is immutable even for the owner", func(t *testing.T) {
		t.Parallel()
		f, owner, _, b := setup(t)

		_, err := f.svc.Partners.UpdateRole(ctx, owner, b.ID, owner.UserID, models.RoleEditor)
		require.ErrorIs(t, err, apperr.ErrInvalidOperation)

		err = f.svc.Partners.Remove(ctx, owner, b.ID, owner.UserID)
		require.ErrorIs(t, err, apperr.ErrInvalidOperation)
	})

	t.Run("missing partner is not found", func(t *testing.T) {
		t.Parallel()
		f, owner, _, b := setup(t)

		_, err := f.svc.Partners.UpdateRole(ctx, owner, b.ID, uuid.New(), models.RoleViewer)
		require.ErrorIs(t, err, apperr.ErrNotFound)

		err = f.svc.Partners.Remove(ctx, owner, b.ID, uuid.New())
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("editor cannot manage partners", func(t *testing.T) {
		t.Parallel()
		f, _, editor, b := setup(t)

		err := f.svc.Partners.Remove(ctx, editor, b.ID, editor.UserID)
		require.ErrorIs(t, err, apperr.ErrInsufficientRole)
	})

	t.Run("owner removes partner", func(t *testing.T) {
		t.Parallel()
		f, owner, editor, b := setup(t)

		require.NoError(t, f.svc.Partners.Remove(ctx, owner, b.ID, editor.UserID))

		_, err := f.svc.Businesses.Get(ctx, editor, b.ID)
		require.ErrorIs(t, err, apperr.ErrAccessDenied)
	})
}

func TestKeyedMutex(t *testing.T) {
	t.Parallel()

	k := newKeyedMutex()
	key := uuid.New()

	unlock := k.Lock(key)
	acquired := make(chan struct{})
	go func() {
		release := k.Lock(key)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock returned while the key was held")
	default:
	}

	other := k.Lock(uuid.New())
	other()

	unlock()
	<-acquired
	require.Eventually(t, func() bool { return k.size() == 0 }, time.Second, time.Millisecond)
}
