package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, tx))

	for _, table := range []string{"users", "businesses", "business_partners", "transactions"} {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, "table %s should exist", table)
	}
}

func TestWithTx(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	_, err := tx.Exec(ctx, `CREATE TEMP TABLE with_tx_scratch (n INT)`)
	require.NoError(t, err)

	t.Run("commits on success", func(t *testing.T) {
		err := WithTx(ctx, tx, func(inner pgx.Tx) error {
			_, err := inner.Exec(ctx, `INSERT INTO with_tx_scratch (n) VALUES (1)`)
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, tx.QueryRow(ctx, `SELECT COUNT(*) FROM with_tx_scratch`).Scan(&count))
		require.Equal(t, 1, count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		err := WithTx(ctx, tx, func(inner pgx.Tx) error {
			if _, err := inner.Exec(ctx, `INSERT INTO with_tx_scratch (n) VALUES (2)`); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.EqualError(t, err, "abort")

		var count int
		require.NoError(t, tx.QueryRow(ctx, `SELECT COUNT(*) FROM with_tx_scratch WHERE n = 2`).Scan(&count))
		require.Equal(t, 0, count)
	})
}
