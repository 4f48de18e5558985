package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/database"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

const transactionColumns = `id, business_id, type, amount, description, date, added_by, created_at, updated_at`

// TransactionRepository handles transaction database operations.
type TransactionRepository struct {
	db database.PGXDB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db database.PGXDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create adds a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	return insertTransaction(ctx, r.db, txn)
}

// CreateBatch adds all transactions in one database transaction.
// Either every row is stored or none is.
func (r *TransactionRepository) CreateBatch(ctx context.Context, txns []*models.Transaction) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for i, txn := range txns {
			if err := insertTransaction(ctx, tx, txn); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// List returns a business's transactions, newest first.
func (r *TransactionRepository) List(
	ctx context.Context,
	businessID uuid.UUID,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	where, args := transactionFilterClause(businessID, filter)

	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE `+where+`
		ORDER BY date DESC, created_at DESC, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

// Totals sums income and expense amounts for a business within filter.
func (r *TransactionRepository) Totals(
	ctx context.Context,
	businessID uuid.UUID,
	filter models.TransactionFilter,
) (income, expense decimal.Decimal, err error) {
	where, args := transactionFilterClause(businessID, filter)

	err = r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		FROM transactions
		WHERE `+where, args...).Scan(&income, &expense)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to total transactions: %w", err)
	}
	return income, expense, nil
}

// Update modifies an existing transaction.
func (r *TransactionRepository) Update(ctx context.Context, txn *models.Transaction) error {
	err := r.db.QueryRow(ctx, `
		UPDATE transactions SET
			type = $2,
			amount = $3,
			description = $4,
			date = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, txn.ID, txn.Type, txn.Amount, txn.Description, txn.Date).Scan(&txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "transaction not found")
		}
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// Delete removes a transaction by ID.
func (r *TransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "transaction not found")
	}
	return nil
}

func insertTransaction(ctx context.Context, db database.PGXDB, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO transactions (id, business_id, type, amount, description, date, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, txn.ID, txn.BusinessID, txn.Type, txn.Amount, txn.Description, txn.Date, txn.AddedBy,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.New(apperr.ErrNotFound, "business not found")
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func transactionFilterClause(businessID uuid.UUID, filter models.TransactionFilter) (string, []any) {
	clauses := []string{"business_id = $1"}
	args := []any{businessID}

	if filter.From != nil {
		args = append(args, dateOnly(*filter.From))
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, dateOnly(*filter.To))
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var txn models.Transaction
	err := row.Scan(&txn.ID, &txn.BusinessID, &txn.Type, &txn.Amount, &txn.Description,
		&txn.Date, &txn.AddedBy, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
