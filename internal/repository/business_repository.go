package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/database"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// BusinessRepository handles businesses and their partner lists.
type BusinessRepository struct {
	db database.PGXDB
}

// NewBusinessRepository creates a new BusinessRepository.
func NewBusinessRepository(db database.PGXDB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// Create inserts a business together with its initial partner list.
func (r *BusinessRepository) Create(ctx context.Context, business *models.Business) error {
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO businesses (id, name, owner_id, currency)
			VALUES ($1, $2, $3, $4)
			RETURNING version, created_at, updated_at
		`, business.ID, business.Name, business.OwnerID, business.Currency,
		).Scan(&business.Version, &business.CreatedAt, &business.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create business: %w", err)
		}

		for i := range business.Partners {
			if err := insertPartner(ctx, tx, business.ID, &business.Partners[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a business with its partners.
func (r *BusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var b models.Business
	err := r.db.QueryRow(ctx, `
		SELECT id, name, owner_id, currency, version, created_at, updated_at
		FROM businesses WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.OwnerID, &b.Currency, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.ErrNotFound, "business not found")
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}

	partners, err := r.partnersOf(ctx, []uuid.UUID{b.ID})
	if err != nil {
		return nil, err
	}
	b.Partners = partners[b.ID]
	return &b, nil
}

// ListForUser returns every business userID is a partner of.
func (r *BusinessRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Business, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.name, b.owner_id, b.currency, b.version, b.created_at, b.updated_at
		FROM businesses b
		JOIN business_partners p ON p.business_id = b.id
		WHERE p.user_id = $1
		ORDER BY b.created_at, b.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	defer rows.Close()

	var (
		businesses []models.Business
		ids        []uuid.UUID
	)
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.OwnerID, &b.Currency, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan business: %w", err)
		}
		businesses = append(businesses, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate businesses: %w", err)
	}
	if len(ids) == 0 {
		return businesses, nil
	}

	partners, err := r.partnersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range businesses {
		businesses[i].Partners = partners[businesses[i].ID]
	}
	return businesses, nil
}

// CountOwnedBy returns how many businesses userID owns.
func (r *BusinessRepository) CountOwnedBy(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM businesses WHERE owner_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count owned businesses: %w", err)
	}
	return n, nil
}

// Update saves name and currency if the business is still at business.Version.
func (r *BusinessRepository) Update(ctx context.Context, business *models.Business) error {
	err := r.db.QueryRow(ctx, `
		UPDATE businesses SET
			name = $3,
			currency = $4,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, business.ID, business.Version, business.Name, business.Currency,
	).Scan(&business.Version, &business.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.New(apperr.ErrConflict, "business was modified concurrently, retry")
		}
		return fmt.Errorf("failed to update business: %w", err)
	}
	return nil
}

// Delete removes a business, its transactions and its partner list.
func (r *BusinessRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE business_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete business transactions: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete business: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.ErrNotFound, "business not found")
		}
		return nil
	})
}

// AddPartner appends a partner if the business is still at business.Version.
func (r *BusinessRepository) AddPartner(ctx context.Context, business *models.Business, partner *models.Partner) error {
	return r.mutatePartners(ctx, business, func(tx pgx.Tx) error {
		return insertPartner(ctx, tx, business.ID, partner)
	})
}

// UpdatePartnerRole changes a non-owner partner's role if the business is
// still at business.Version.
func (r *BusinessRepository) UpdatePartnerRole(
	ctx context.Context,
	business *models.Business,
	userID uuid.UUID,
	role models.PartnerRole,
) error {
	return r.mutatePartners(ctx, business, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE business_partners SET role = $3
			WHERE business_id = $1 AND user_id = $2 AND role <> 'owner'
		`, business.ID, userID, role)
		if err != nil {
			return fmt.Errorf("failed to update partner role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.ErrNotFound, "partner not found")
		}
		return nil
	})
}

// RemovePartner deletes a non-owner partner if the business is still at
// business.Version.
func (r *BusinessRepository) RemovePartner(ctx context.Context, business *models.Business, userID uuid.UUID) error {
	return r.mutatePartners(ctx, business, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM business_partners
			WHERE business_id = $1 AND user_id = $2 AND role <> 'owner'
		`, business.ID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove partner: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.ErrNotFound, "partner not found")
		}
		return nil
	})
}

// mutatePartners bumps the business version and runs fn in one transaction.
// business.Version only advances when the transaction commits.
func (r *BusinessRepository) mutatePartners(ctx context.Context, business *models.Business, fn func(tx pgx.Tx) error) error {
	version, updatedAt := business.Version, business.UpdatedAt
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := bumpVersion(ctx, tx, business); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		business.Version, business.UpdatedAt = version, updatedAt
	}
	return err
}

func (r *BusinessRepository) partnersOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Partner, error) {
	rows, err := r.db.Query(ctx, `
		SELECT business_id, user_id, role, joined_at
		FROM business_partners
		WHERE business_id = ANY($1)
		ORDER BY joined_at, user_id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.Partner, len(ids))
	for rows.Next() {
		var (
			businessID uuid.UUID
			p          models.Partner
		)
		if err := rows.Scan(&businessID, &p.UserID, &p.Role, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		out[businessID] = append(out[businessID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate partners: %w", err)
	}
	return out, nil
}

func insertPartner(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, partner *models.Partner) error {
	if partner.JoinedAt.IsZero() {
		partner.JoinedAt = time.Now().UTC()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO business_partners (business_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, businessID, partner.UserID, partner.Role, partner.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.ErrDuplicate, "user is already a partner of this business")
		}
		if isForeignKeyViolation(err) {
			return apperr.New(apperr.ErrNotFound, "user not found")
		}
		return fmt.Errorf("failed to insert partner: %w", err)
	}
	return nil
}

func bumpVersion(ctx context.Context, tx pgx.Tx, business *models.Business) error {
	err := tx.QueryRow(ctx, `
		UPDATE businesses SET version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, business.ID, business.Version).Scan(&business.Version, &business.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.New(apperr.ErrConflict, "business was modified concurrently, retry")
		}
		return fmt.Errorf("failed to bump business version: %w", err)
	}
	return nil
}
