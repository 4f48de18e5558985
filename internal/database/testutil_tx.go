package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testDatabaseURLEnv names the Postgres instance used by integration tests.
const testDatabaseURLEnv = "TEST_DATABASE_URL"

var (
	ledgerPool     *pgxpool.Pool
	ledgerPoolOnce sync.Once
	ledgerPoolErr  error
)

// ledgerTestPool connects once per test binary and creates the ledger
// schema on first use.
func ledgerTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv(testDatabaseURLEnv)
	if dbURL == "" {
		t.Skipf("%s not set, skipping integration test", testDatabaseURLEnv)
	}

	ledgerPoolOnce.Do(func() {
		ctx := context.Background()
		ledgerPool, ledgerPoolErr = Connect(ctx, dbURL)
		if ledgerPoolErr != nil {
			return
		}
		ledgerPoolErr = RunMigrations(ctx, ledgerPool)
	})
	if ledgerPoolErr != nil {
		t.Fatalf("failed to set up ledger test database: %v", ledgerPoolErr)
	}
	return ledgerPool
}

// TestTx returns a transaction on the ledger test database that is rolled
// back when the test ends. The session time zone is pinned to UTC so DATE
// columns match the services' UTC calendar days.
//
//	tx := database.TestTx(t)
//	businesses := repository.NewBusinessRepository(tx)
func TestTx(t *testing.T) PGXDB {
	t.Helper()
	ctx := context.Background()

	tx, err := ledgerTestPool(t).Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin test transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	if _, err := tx.Exec(ctx, `SET LOCAL TIME ZONE 'UTC'`); err != nil {
		t.Fatalf("failed to pin test time zone: %v", err)
	}
	return tx
}
