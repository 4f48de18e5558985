package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestTestTx(t *testing.T) {
	ctx := context.Background()

	t.Run("pins UTC", func(t *testing.T) {
		tx := TestTx(t)

		var zone string
		require.NoError(t, tx.QueryRow(ctx, `SHOW TIME ZONE`).Scan(&zone))
		require.Equal(t, "UTC", zone)
	})

	t.Run("writes are isolated per test", func(t *testing.T) {
		first := TestTx(t)
		second := TestTx(t)
		id := uuid.New()

		_, err := first.Exec(ctx, `INSERT INTO users (id, email) VALUES ($1, $2)`, id, id.String()+"@example.com")
		require.NoError(t, err)

		var count int
		require.NoError(t, second.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = $1`, id).Scan(&count))
		require.Zero(t, count)
	})

	t.Run("usable after a failed nested transaction", func(t *testing.T) {
		tx := TestTx(t)

		err := WithTx(ctx, tx, func(inner pgx.Tx) error {
			_, err := inner.Exec(ctx, `INSERT INTO users (id, email) VALUES (NULL, 'x@example.com')`)
			return err
		})
		require.Error(t, err)

		var n int
		require.NoError(t, tx.QueryRow(ctx, `SELECT COUNT(*) FROM businesses`).Scan(&n))
	})

	t.Run("skips without a database", func(t *testing.T) {
		t.Setenv(testDatabaseURLEnv, "")
		var skipped bool
		t.Run("inner", func(t *testing.T) {
			defer func() { skipped = t.Skipped() }()
			TestTx(t)
		})
		require.True(t, skipped)
	})
}
