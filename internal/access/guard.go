package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// BusinessFinder loads a business with its partner list.
type BusinessFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
}

// Grant is the outcome of a successful authorization.
type Grant struct {
	Business *models.Business
	Role     models.PartnerRole
}

// IsOwner reports whether the caller is the business owner by identity,
// independent of the partner role.
func (g *Grant) IsOwner(userID uuid.UUID) bool {
	return g.Business.OwnerID == userID
}

// Guard resolves a caller's membership of a business.
type Guard struct {
	businesses BusinessFinder
	denials    metric.Int64Counter
}

// NewGuard creates a Guard backed by businesses.
func NewGuard(businesses BusinessFinder) *Guard {
	denials, err := otel.Meter("gitlab.com/yelinaung/business-ledger/internal/access").Int64Counter(
		"ledger.access.denials",
		metric.WithDescription("Business access checks that were rejected, by reason."),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create access denial counter")
	}
	return &Guard{businesses: businesses, denials: denials}
}

// Authorize checks that caller is a partner of businessID holding at least
// minimum. Membership is checked before rank. It never mutates anything.
func (g *Guard) Authorize(
	ctx context.Context,
	businessID uuid.UUID,
	caller models.Identity,
	minimum *models.PartnerRole,
) (*Grant, error) {
	business, err := g.businesses.GetByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "business not found")
		}
		return nil, fmt.Errorf("failed to load business: %w", err)
	}

	partner, ok := business.PartnerFor(caller.UserID)
	if !ok {
		g.deny(ctx, businessID, caller, "not_member")
		return nil, apperr.New(apperr.ErrAccessDenied, "you are not a member of this business")
	}

	if minimum != nil && !Satisfies(partner.Role, minimum) {
		g.deny(ctx, businessID, caller, "insufficient_role")
		return nil, apperr.New(apperr.ErrInsufficientRole, "this action requires the %s role or higher", string(*minimum))
	}

	return &Grant{Business: business, Role: partner.Role}, nil
}

func (g *Guard) deny(ctx context.Context, businessID uuid.UUID, caller models.Identity, reason string) {
	logger.Log.Info().
		Str("business_hash", logger.HashID(businessID)).
		Str("user_hash", logger.HashID(caller.UserID)).
		Str("reason", reason).
		Msg("Business access denied")
	if g.denials != nil {
		g.denials.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
