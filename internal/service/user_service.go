package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// UserService registers users and applies admin user management.
type UserService struct {
	users      UserStore
	businesses BusinessStore

	// adminMu serializes admin mutations so last-admin checks are not raced
	// within this process. The store re-checks atomically across processes.
	adminMu sync.Mutex
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, businesses BusinessStore) *UserService {
	return &UserService{users: users, businesses: businesses}
}

// Register creates an unapproved user. The first user of an empty system
// becomes an approved admin.
func (s *UserService) Register(ctx context.Context, email, name, preferredCurrency string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Register")
	defer span.End()

	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return nil, apperr.New(apperr.ErrInvalidOperation, "email address is invalid")
	}

	currency := models.NormalizeCurrencyCode(preferredCurrency)
	if currency != "" && !models.IsSupportedCurrency(currency) {
		return nil, apperr.New(apperr.ErrInvalidOperation, "unsupported currency %q", currency)
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:             addr.Address,
		Name:              strings.TrimSpace(name),
		Role:              models.UserRoleUser,
		PreferredCurrency: currency,
	}
	if admins == 0 {
		user.Role = models.UserRoleAdmin
		user.Approved = true
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("user_hash", logger.HashID(user.ID)).
		Str("email", logger.SanitizeEmail(user.Email)).
		Str("role", string(user.Role)).
		Msg("User registered")

	return user, nil
}

// Resolve turns an authenticated session into a caller identity. The user
// must exist, be approved and hold the session's token version.
func (s *UserService) Resolve(ctx context.Context, userID uuid.UUID, tokenVersion int) (models.Identity, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Identity{}, apperr.New(apperr.ErrAccessDenied, "session is no longer valid")
		}
		return models.Identity{}, err
	}
	if user.TokenVersion != tokenVersion {
		return models.Identity{}, apperr.New(apperr.ErrAccessDenied, "session is no longer valid")
	}
	if !user.Approved {
		return models.Identity{}, apperr.New(apperr.ErrAccessDenied, "your account is awaiting approval")
	}
	return models.Identity{UserID: user.ID, Role: user.Role, Approved: user.Approved}, nil
}

// Me returns the caller's own user record.
func (s *UserService) Me(ctx context.Context, caller models.Identity) (*models.User, error) {
	return s.users.GetByID(ctx, caller.UserID)
}

// SetPreferredCurrency changes the caller's display currency.
func (s *UserService) SetPreferredCurrency(ctx context.Context, caller models.Identity, code string) (*models.User, error) {
	code = models.NormalizeCurrencyCode(code)
	if !models.IsSupportedCurrency(code) {
		return nil, apperr.New(apperr.ErrInvalidOperation, "unsupported currency %q", code)
	}
	if err := s.users.SetPreferredCurrency(ctx, caller.UserID, code); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, caller.UserID)
}

// List returns all users. Admin only.
func (s *UserService) List(ctx context.Context, caller models.Identity) ([]models.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Approve grants or revokes a user's approval. Admin only.
func (s *UserService) Approve(ctx context.Context, caller models.Identity, userID uuid.UUID, approved bool) (*models.User, error) {
	ctx, span := startSpan(ctx, "UserService.Approve", caller)
	defer span.End()

	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if !approved && caller.UserID == userID {
		return nil, apperr.New(apperr.ErrInvalidOperation, "you cannot revoke your own approval")
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	if err := s.users.SetApproved(ctx, userID, approved); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("user_hash", logger.HashID(userID)).
		Str("admin_hash", logger.HashID(caller.UserID)).
		Bool("approved", approved).
		Msg("User approval changed")

	return s.users.GetByID(ctx, userID)
}

// SetRole changes a user's global role. Admin only; the last admin cannot
// be demoted.
func (s *UserService) SetRole(ctx context.Context, caller models.Identity, userID uuid.UUID, role models.UserRole) (*models.User, error) {
	ctx, span := startSpan(ctx, "UserService.SetRole", caller)
	defer span.End()

	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.New(apperr.ErrInvalidOperation, "role must be user or admin")
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}
	if target.Role == models.UserRoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("user_hash", logger.HashID(userID)).
		Str("admin_hash", logger.HashID(caller.UserID)).
		Str("role", string(role)).
		Msg("User role changed")

	return s.users.GetByID(ctx, userID)
}

// Delete removes a user. Admin only; the last admin and users that still
// own businesses cannot be deleted.
func (s *UserService) Delete(ctx context.Context, caller models.Identity, userID uuid.UUID) error {
	ctx, span := startSpan(ctx, "UserService.Delete", caller)
	defer span.End()

	if err := requireAdmin(caller); err != nil {
		return err
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	target, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role == models.UserRoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}

	owned, err := s.businesses.CountOwnedBy(ctx, userID)
	if err != nil {
		return err
	}
	if owned > 0 {
		return apperr.New(apperr.ErrInvalidOperation, "user still owns %d business(es)", owned)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	logger.Log.Info().
		Str("user_hash", logger.HashID(userID)).
		Str("admin_hash", logger.HashID(caller.UserID)).
		Msg("User deleted")
	return nil
}

// RevokeSessions invalidates every session of userID. Callers may revoke
// their own sessions; admins may revoke anyone's.
func (s *UserService) RevokeSessions(ctx context.Context, caller models.Identity, userID uuid.UUID) error {
	if caller.UserID != userID {
		if err := requireAdmin(caller); err != nil {
			return err
		}
	}
	if _, err := s.users.BumpTokenVersion(ctx, userID); err != nil {
		return err
	}

	logger.Log.Info().
		Str("user_hash", logger.HashID(userID)).
		Msg("Sessions revoked")
	return nil
}

func (s *UserService) ensureAnotherAdmin(ctx context.Context) error {
	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return apperr.New(apperr.ErrInvalidOperation, "cannot remove the last admin")
	}
	return nil
}

func requireAdmin(caller models.Identity) error {
	if !caller.Approved || !caller.IsAdmin() {
		return apperr.New(apperr.ErrAccessDenied, "admin role required")
	}
	return nil
}
