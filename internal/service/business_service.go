package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// BusinessInput holds the fields of a business create request.
// An empty Currency falls back to the caller's preferred currency.
type BusinessInput struct {
	Name     string
	Currency string
}

// BusinessPatch holds the fields of a business update. Nil fields are kept.
type BusinessPatch struct {
	Name     *string
	Currency *string
}

// BusinessService creates, reads, updates and deletes businesses.
type BusinessService struct {
	guard      Authorizer
	businesses BusinessStore
	users      UserStore
	locks      *keyedMutex
}

// NewBusinessService creates a new BusinessService.
func NewBusinessService(guard Authorizer, businesses BusinessStore, users UserStore) *BusinessService {
	return &BusinessService{guard: guard, businesses: businesses, users: users, locks: newKeyedMutex()}
}

// Create creates a business owned by caller. The owner partner entry is
// added here and nowhere else.
func (s *BusinessService) Create(ctx context.Context, caller models.Identity, in BusinessInput) (*models.Business, error) {
	ctx, span := startSpan(ctx, "BusinessService.Create", caller)
	defer span.End()

	if !caller.Approved {
		return nil, apperr.New(apperr.ErrAccessDenied, "your account is awaiting approval")
	}

	name, err := validateBusinessName(in.Name)
	if err != nil {
		return nil, err
	}

	currency, err := s.resolveCurrency(ctx, caller, in.Currency)
	if err != nil {
		return nil, err
	}

	business := &models.Business{
		Name:     name,
		OwnerID:  caller.UserID,
		Currency: currency,
		Partners: []models.Partner{{UserID: caller.UserID, Role: models.RoleOwner}},
	}
	if err := s.businesses.Create(ctx, business); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("business_hash", logger.HashID(business.ID)).
		Str("user_hash", logger.HashID(caller.UserID)).
		Str("currency", business.Currency).
		Msg("Business created")

	return business, nil
}

// Get returns a business the caller is a partner of.
func (s *BusinessService) Get(ctx context.Context, caller models.Identity, businessID uuid.UUID) (*models.Business, error) {
	ctx, span := startSpan(ctx, "BusinessService.Get", caller)
	defer span.End()

	grant, err := authorize(ctx, s.guard, businessID, caller, nil)
	if err != nil {
		return nil, err
	}
	return grant.Business, nil
}

// ListForUser returns every business the caller is a partner of.
func (s *BusinessService) ListForUser(ctx context.Context, caller models.Identity) ([]models.Business, error) {
	ctx, span := startSpan(ctx, "BusinessService.ListForUser", caller)
	defer span.End()

	if !caller.Approved {
		return nil, apperr.New(apperr.ErrAccessDenied, "your account is awaiting approval")
	}
	businesses, err := s.businesses.ListForUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if businesses == nil {
		businesses = []models.Business{}
	}
	return businesses, nil
}

// Update renames a business or changes its currency. Owner only.
func (s *BusinessService) Update(
	ctx context.Context,
	caller models.Identity,
	businessID uuid.UUID,
	patch BusinessPatch,
) (*models.Business, error) {
	ctx, span := startSpan(ctx, "BusinessService.Update", caller)
	defer span.End()

	unlock := s.locks.Lock(businessID)
	defer unlock()

	grant, err := requireOwner(ctx, s.guard, businessID, caller)
	if err != nil {
		return nil, err
	}

	business := grant.Business
	if patch.Name != nil {
		name, err := validateBusinessName(*patch.Name)
		if err != nil {
			return nil, err
		}
		business.Name = name
	}
	if patch.Currency != nil {
		code := models.NormalizeCurrencyCode(*patch.Currency)
		if !models.IsSupportedCurrency(code) {
			return nil, apperr.New(apperr.ErrInvalidOperation, "unsupported currency %q", code)
		}
		business.Currency = code
	}

	if err := s.businesses.Update(ctx, business); err != nil {
		return nil, err
	}
	return business, nil
}

// Delete removes a business and all of its transactions. Owner only.
func (s *BusinessService) Delete(ctx context.Context, caller models.Identity, businessID uuid.UUID) error {
	ctx, span := startSpan(ctx, "BusinessService.Delete", caller)
	defer span.End()

	unlock := s.locks.Lock(businessID)
	defer unlock()

	if _, err := requireOwner(ctx, s.guard, businessID, caller); err != nil {
		return err
	}
	if err := s.businesses.Delete(ctx, businessID); err != nil {
		return err
	}

	logger.Log.Info().
		Str("business_hash", logger.HashID(businessID)).
		Str("user_hash", logger.HashID(caller.UserID)).
		Msg("Business deleted")
	return nil
}

// resolveCurrency picks the requested currency, then the caller's
// preferred currency, then DefaultCurrency.
func (s *BusinessService) resolveCurrency(ctx context.Context, caller models.Identity, requested string) (string, error) {
	if code := models.NormalizeCurrencyCode(requested); code != "" {
		if !models.IsSupportedCurrency(code) {
			return "", apperr.New(apperr.ErrInvalidOperation, "unsupported currency %q", code)
		}
		return code, nil
	}

	user, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load caller: %w", err)
	}
	if code := models.NormalizeCurrencyCode(user.PreferredCurrency); models.IsSupportedCurrency(code) {
		return code, nil
	}
	return models.DefaultCurrency, nil
}

func validateBusinessName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.New(apperr.ErrInvalidOperation, "business name is required")
	}
	if utf8.RuneCountInString(name) > models.MaxBusinessNameLength {
		return "", apperr.New(apperr.ErrInvalidOperation,
			"business name must be at most %d characters", models.MaxBusinessNameLength)
	}
	return name, nil
}
