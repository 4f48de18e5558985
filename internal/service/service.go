// Package service implements the guarded business, partner, transaction and
// user operations of the ledger.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/business-ledger/internal/access"
	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

var tracer = otel.Tracer("gitlab.com/yelinaung/business-ledger/internal/service")

// UserStore persists users.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetPreferredCurrency(ctx context.Context, id uuid.UUID, code string) error
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) error
	SetRole(ctx context.Context, id uuid.UUID, role models.UserRole) error
	Delete(ctx context.Context, id uuid.UUID) error
	BumpTokenVersion(ctx context.Context, id uuid.UUID) (int, error)
	CountAdmins(ctx context.Context) (int, error)
}

// BusinessStore persists businesses and their partner lists. Partner
// mutations compare-and-swap on business.Version.
type BusinessStore interface {
	access.BusinessFinder
	Create(ctx context.Context, business *models.Business) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Business, error)
	CountOwnedBy(ctx context.Context, userID uuid.UUID) (int, error)
	Update(ctx context.Context, business *models.Business) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddPartner(ctx context.Context, business *models.Business, partner *models.Partner) error
	UpdatePartnerRole(ctx context.Context, business *models.Business, userID uuid.UUID, role models.PartnerRole) error
	RemovePartner(ctx context.Context, business *models.Business, userID uuid.UUID) error
}

// TransactionStore persists transactions.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	CreateBatch(ctx context.Context, txns []*models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Update(ctx context.Context, txn *models.Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, businessID uuid.UUID, filter models.TransactionFilter) ([]models.Transaction, error)
	Totals(ctx context.Context, businessID uuid.UUID, filter models.TransactionFilter) (income, expense decimal.Decimal, err error)
}

// Authorizer resolves a caller's membership of a business.
type Authorizer interface {
	Authorize(ctx context.Context, businessID uuid.UUID, caller models.Identity, minimum *models.PartnerRole) (*access.Grant, error)
}

func startSpan(ctx context.Context, name string, caller models.Identity) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Bool("ledger.caller.admin", caller.IsAdmin()),
	))
}

// authorize rejects unapproved callers before consulting the guard.
func authorize(
	ctx context.Context,
	guard Authorizer,
	businessID uuid.UUID,
	caller models.Identity,
	minimum *models.PartnerRole,
) (*access.Grant, error) {
	if !caller.Approved {
		return nil, apperr.New(apperr.ErrAccessDenied, "your account is awaiting approval")
	}
	return guard.Authorize(ctx, businessID, caller, minimum)
}

// requireOwner layers the exact owner identity check on top of the owner rank.
func requireOwner(
	ctx context.Context,
	guard Authorizer,
	businessID uuid.UUID,
	caller models.Identity,
) (*access.Grant, error) {
	grant, err := authorize(ctx, guard, businessID, caller, models.RoleOwner.Ptr())
	if err != nil {
		return nil, err
	}
	if !grant.IsOwner(caller.UserID) {
		return nil, apperr.New(apperr.ErrInsufficientRole, "only the business owner can do this")
	}
	return grant, nil
}

// calendarDay returns the UTC calendar date of t as midnight UTC, so
// instants given with different offsets land on the same day.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
