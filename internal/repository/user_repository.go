// Package repository implements PostgreSQL persistence for the ledger entities.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/database"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

const userColumns = `id, email, name, role, approved, preferred_currency, token_version, created_at, updated_at`

// UserRepository handles user database operations.
type UserRepository struct {
	db database.PGXDB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db database.PGXDB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. A taken email is a duplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.UserRoleUser
	}
	user.Email = strings.TrimSpace(user.Email)

	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, name, role, approved, preferred_currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING token_version, created_at, updated_at
	`, user.ID, user.Email, user.Name, user.Role, user.Approved, user.PreferredCurrency,
	).Scan(&user.TokenVersion, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.ErrDuplicate, "a user with this email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email),
	)
	return scanUser(row)
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// SetPreferredCurrency stores the user's display currency.
func (r *UserRepository) SetPreferredCurrency(ctx context.Context, id uuid.UUID, code string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET preferred_currency = $2, updated_at = NOW() WHERE id = $1
	`, id, code)
	if err != nil {
		return fmt.Errorf("failed to set preferred currency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	return nil
}

// SetApproved sets the approval flag. Revoking approval also revokes sessions.
func (r *UserRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET
			approved = $2,
			token_version = token_version + CASE WHEN $2 THEN 0 ELSE 1 END,
			updated_at = NOW()
		WHERE id = $1
	`, id, approved)
	if err != nil {
		return fmt.Errorf("failed to set approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	return nil
}

// SetRole changes the global role and revokes the user's sessions.
// Demoting the last admin is refused in the same statement.
func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role models.UserRole) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET
			role = $2,
			token_version = token_version + 1,
			updated_at = NOW()
		WHERE id = $1
		  AND ($2 = 'admin' OR role <> 'admin'
		       OR (SELECT COUNT(*) FROM users WHERE role = 'admin') > 1)
	`, id, role)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrInvalidOperation, "cannot demote the last admin")
	}
	return nil
}

// Delete removes a user. Deleting the last admin is refused in the same statement.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM users
		WHERE id = $1
		  AND (role <> 'admin' OR (SELECT COUNT(*) FROM users WHERE role = 'admin') > 1)
	`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.New(apperr.ErrInvalidOperation, "user still owns businesses or transactions")
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.ErrInvalidOperation, "cannot delete the last admin")
	}
	return nil
}

// BumpTokenVersion invalidates all outstanding sessions of a user.
func (r *UserRepository) BumpTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var version int
	err := r.db.QueryRow(ctx, `
		UPDATE users SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING token_version
	`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.New(apperr.ErrNotFound, "user not found")
		}
		return 0, fmt.Errorf("failed to bump token version: %w", err)
	}
	return version, nil
}

// CountAdmins returns how many users hold the admin role.
func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Approved,
		&u.PreferredCurrency, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
