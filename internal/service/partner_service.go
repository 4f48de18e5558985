package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/business-ledger/internal/access"
	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// PartnerService manages the partner list of a business. Mutations of one
// business are serialized and persisted with a version compare-and-swap.
type PartnerService struct {
	guard      Authorizer
	businesses BusinessStore
	users      UserStore
	locks      *keyedMutex
	now        func() time.Time
}

// NewPartnerService creates a new PartnerService.
func NewPartnerService(guard Authorizer, businesses BusinessStore, users UserStore) *PartnerService {
	return &PartnerService{
		guard:      guard,
		businesses: businesses,
		users:      users,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// Add makes the registered user with email a partner of businessID.
// Owner only; role must be editor or viewer.
func (s *PartnerService) Add(
	ctx context.Context,
	caller models.Identity,
	businessID uuid.UUID,
	email string,
	role models.PartnerRole,
) (*models.Partner, error) {
	ctx, span := startSpan(ctx, "PartnerService.Add", caller)
	defer span.End()

	unlock := s.locks.Lock(businessID)
	defer unlock()

	grant, err := requireOwner(ctx, s.guard, businessID, caller)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.New(apperr.ErrInvalidOperation, "email is required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, "no registered user with that email")
		}
		return nil, err
	}

	if _, ok := grant.Business.PartnerFor(user.ID); ok {
		return nil, apperr.New(apperr.ErrDuplicate, "user is already a partner of this business")
	}
	role, err = access.ParseAssignableRole(string(role))
	if err != nil {
		return nil, err
	}

	partner := &models.Partner{UserID: user.ID, Role: role, JoinedAt: s.now().UTC()}
	if err := s.businesses.AddPartner(ctx, grant.Business, partner); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("business_hash", logger.HashID(businessID)).
		Str("partner_hash", logger.HashID(user.ID)).
		Str("role", string(role)).
		Msg("Partner added")

	return partner, nil
}

// UpdateRole changes a partner's role. Owner only. The owner entry itself
// cannot be changed.
func (s *PartnerService) UpdateRole(
	ctx context.Context,
	caller models.Identity,
	businessID, userID uuid.UUID,
	role models.PartnerRole,
) (*models.Partner, error) {
	ctx, span := startSpan(ctx, "PartnerService.UpdateRole", caller)
	defer span.End()

	unlock := s.locks.Lock(businessID)
	defer unlock()

	grant, err := requireOwner(ctx, s.guard, businessID, caller)
	if err != nil {
		return nil, err
	}

	target, err := mutablePartner(grant.Business, userID)
	if err != nil {
		return nil, err
	}

	role, err = access.ParseAssignableRole(string(role))
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return &target, nil
	}

	if err := s.businesses.UpdatePartnerRole(ctx, grant.Business, userID, role); err != nil {
		return nil, err
	}
	target.Role = role

	logger.Log.Info().
		Str("business_hash", logger.HashID(businessID)).
		Str("partner_hash", logger.HashID(userID)).
		Str("role", string(role)).
		Msg("Partner role updated")

	return &target, nil
}

// Remove drops a partner from the business. Owner only. The owner entry
// itself cannot be removed.
func (s *PartnerService) Remove(ctx context.Context, caller models.Identity, businessID, userID uuid.UUID) error {
	ctx, span := startSpan(ctx, "PartnerService.Remove", caller)
	defer span.End()

	unlock := s.locks.Lock(businessID)
	defer unlock()

	grant, err := requireOwner(ctx, s.guard, businessID, caller)
	if err != nil {
		return err
	}

	if _, err := mutablePartner(grant.Business, userID); err != nil {
		return err
	}
	if err := s.businesses.RemovePartner(ctx, grant.Business, userID); err != nil {
		return err
	}

	logger.Log.Info().
		Str("business_hash", logger.HashID(businessID)).
		Str("partner_hash", logger.HashID(userID)).
		Msg("Partner removed")
	return nil
}

// List returns the partners of a business. Any member may list.
func (s *PartnerService) List(ctx context.Context, caller models.Identity, businessID uuid.UUID) ([]models.Partner, error) {
	ctx, span := startSpan(ctx, "PartnerService.List", caller)
	defer span.End()

	grant, err := authorize(ctx, s.guard, businessID, caller, nil)
	if err != nil {
		return nil, err
	}
	return grant.Business.Partners, nil
}

func mutablePartner(business *models.Business, userID uuid.UUID) (models.Partner, error) {
	target, ok := business.PartnerFor(userID)
	if !ok {
		return models.Partner{}, apperr.New(apperr.ErrNotFound, "partner not found")
	}
	if target.Role == models.RoleOwner {
		return models.Partner{}, apperr.New(apperr.ErrInvalidOperation, "the owner's partner entry cannot be changed")
	}
	return target, nil
}
