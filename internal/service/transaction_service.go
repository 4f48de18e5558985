package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/exchange"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// MaxBatchSize is the largest number of transactions accepted in one batch.
const MaxBatchSize = 500

// TransactionInput is a new transaction. Amount is in Currency, or in the
// base currency when Currency is empty. A zero Date means today.
type TransactionInput struct {
	Type        models.TransactionType
	Amount      decimal.Decimal
	Currency    string
	Description string
	Date        time.Time
}

// TransactionPatch updates the non-nil fields of a transaction.
// Currency applies to Amount only.
type TransactionPatch struct {
	Type        *models.TransactionType
	Amount      *decimal.Decimal
	Currency    string
	Description *string
	Date        *time.Time
}

// SummaryRequest selects the period and display currency of a summary.
// Zero From or To leaves that end open; an empty Currency means the
// business currency.
type SummaryRequest struct {
	From     time.Time
	To       time.Time
	Currency string
}

// Summary is the converted income, expense and net of a business.
type Summary struct {
	BusinessID       uuid.UUID       `json:"businessId"`
	Currency         string          `json:"currency"`
	From             *time.Time      `json:"from,omitempty"`
	To               *time.Time      `json:"to,omitempty"`
	Income           decimal.Decimal `json:"income"`
	Expense          decimal.Decimal `json:"expense"`
	Net              decimal.Decimal `json:"net"`
	IncomeFormatted  string          `json:"incomeFormatted"`
	ExpenseFormatted string          `json:"expenseFormatted"`
	NetFormatted     string          `json:"netFormatted"`
}

// TransactionService records and reports business transactions.
type TransactionService struct {
	guard     Authorizer
	store     TransactionStore
	converter exchange.Converter
	now       func() time.Time
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(guard Authorizer, store TransactionStore, converter exchange.Converter) *TransactionService {
	return &TransactionService{guard: guard, store: store, converter: converter, now: time.Now}
}

// Create records a transaction. Requires editor rank.
func (s *TransactionService) Create(
	ctx context.Context,
	caller models.Identity,
	businessID uuid.UUID,
	in TransactionInput,
) (*models.Transaction, error) {
	ctx, span := startSpan(ctx, "TransactionService.Create", caller)
	defer span.End()

	if _, err := authorize(ctx, s.guard, businessID, caller, models.RoleEditor.Ptr()); err != nil {
		return nil, err
	}

	txn, err := s.build(ctx, caller, businessID, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, txn); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("business_hash", logger.HashID(businessID)).
		Str("user_hash", logger.HashID(caller.UserID)).
		Str("type", string(txn.Type)).
		Str("description", logger.SanitizeDescription(txn.Description)).
		Msg("Transaction created")

	return txn, nil
}

// CreateBatch records several transactions. Every item is validated before
// any is stored, and the items are stored atomically.
func (s *TransactionService) CreateBatch(
	ctx context.Context,
	caller models.Identity,
	businessID uuid.UUID,
	items []TransactionInput,
) ([]*models.Transaction, error) {
	ctx, span := startSpan(ctx, "TransactionService.CreateBatch", caller)
	defer span.End()

	if _, err := authorize(ctx, s.guard, businessID, caller, models.RoleEditor.Ptr()); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.New(apperr.ErrInvalidOperation, "batch is empty")
	}
	if len(items) > MaxBatchSize {
		return nil, apperr.New(apperr.ErrInvalidOperation, "batch exceeds %d transactions", MaxBatchSize)
	}

	txns := make([]*models.Transaction, 0, len(items))
	for i, in := range items {
		txn, err := s.build(ctx, caller, businessID, in)
		if err != nil {
			return nil, batchItemError(i, err)
		}
		txns = append(txns, txn)
	}

	if err := s.store.CreateBatch(ctx, txns); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("business_hash", logger.HashID(businessID)).
		Str("user_hash", logger.HashID(caller.UserID)).
		Int("count", len(txns)).
		Msg("Transaction batch created")

	return txns, nil
}

// Update applies patch to a transaction of businessID. Requires editor rank.
func (s *TransactionService) Update(
	ctx context.Context,
	caller models.Identity,
	businessID, transactionID uuid.UUID,
	patch TransactionPatch,
) (*models.Transaction, error) {
	ctx, span := startSpan(ctx, "TransactionService.Update", caller)
	defer span.End()

	if _, err := authorize(ctx, s.guard, businessID, caller, models.RoleEditor.Ptr()); err != nil {
		return nil, err
	}
	txn, err := s.load(ctx, businessID, transactionID)
	if err != nil {
		return nil, err
	}

	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, apperr.New(apperr.ErrInvalidOperation, "type must be income or expense")
		}
		txn.Type = *patch.Type
	}
	if patch.Amount == nil && strings.TrimSpace(patch.Currency) != "" {
		return nil, apperr.New(apperr.ErrInvalidOperation, "currency applies to amount, which is missing")
	}
	if patch.Amount != nil {
		amount, err := s.baseAmount(ctx, *patch.Amount, patch.Currency)
		if err != nil {
			return nil, err
		}
		txn.Amount = amount
	}
	if patch.Description != nil {
		desc, err := validateDescription(*patch.Description)
		if err != nil {
			return nil, err
		}
		txn.Description = desc
	}
	if patch.Date != nil {
		date, err := s.validateDate(*patch.Date)
		if err != nil {
			return nil, err
		}
		txn.Date = date
	}

	if err := s.store.Update(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Delete removes a transaction of businessID. Requires editor rank.
func (s *TransactionService) Delete(ctx context.Context, caller models.Identity, businessID, transactionID uuid.UUID) error {
	ctx, span := startSpan(ctx, "TransactionService.Delete", caller)
	defer span.End()

	if _, err := authorize(ctx, s.guard, businessID, caller, models.RoleEditor.Ptr()); err != nil {
		return err
	}
	if _, err := s.load(ctx, businessID, transactionID); err != nil {
		return err
	}
	return s.store.Delete(ctx, transactionID)
}

// List returns the transactions of a business matching filter.
func (s *TransactionService) List(
	ctx context.Context,
	caller models.Identity,
	businessID uuid.UUID,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	ctx, span := startSpan(ctx, "TransactionService.List", caller)
	defer span.End()

	if _, err := authorize(ctx, s.guard, businessID, caller, nil); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperr.New(apperr.ErrInvalidOperation, "from must not be after to")
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, apperr.New(apperr.ErrInvalidOperation, "type must be income or expense")
	}

	txns, err := s.store.List(ctx, businessID, filter)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return txns, nil
}

// Summary totals income and expense over a period in the display currency.
func (s *TransactionService) Summary(
	ctx context.Context,
	caller models.Identity,
	businessID uuid.UUID,
	req SummaryRequest,
) (*Summary, error) {
	ctx, span := startSpan(ctx, "TransactionService.Summary", caller)
	defer span.End()

	grant, err := authorize(ctx, s.guard, businessID, caller, nil)
	if err != nil {
		return nil, err
	}

	currency := models.NormalizeCurrencyCode(req.Currency)
	if currency == "" {
		currency = grant.Business.Currency
	}
	if !models.IsSupportedCurrency(currency) {
		return nil, apperr.New(apperr.ErrInvalidOperation, "unsupported currency %q", currency)
	}

	var filter models.TransactionFilter
	if !req.From.IsZero() {
		filter.From = &req.From
	}
	if !req.To.IsZero() {
		filter.To = &req.To
	}
	if filter.From != nil && filter.To != nil && req.From.After(req.To) {
		return nil, apperr.New(apperr.ErrInvalidOperation, "from must not be after to")
	}

	income, expense, err := s.store.Totals(ctx, businessID, filter)
	if err != nil {
		return nil, err
	}

	income, err = s.converter.Convert(ctx, income, models.BaseCurrency, currency)
	if err != nil {
		return nil, err
	}
	expense, err = s.converter.Convert(ctx, expense, models.BaseCurrency, currency)
	if err != nil {
		return nil, err
	}
	net := income.Sub(expense)

	return &Summary{
		BusinessID:       businessID,
		Currency:         currency,
		From:             filter.From,
		To:               filter.To,
		Income:           income,
		Expense:          expense,
		Net:              net,
		IncomeFormatted:  exchange.Format(income, currency),
		ExpenseFormatted: exchange.Format(expense, currency),
		NetFormatted:     exchange.Format(net, currency),
	}, nil
}

func (s *TransactionService) build(
	ctx context.Context,
	caller models.Identity,
	businessID uuid.UUID,
	in TransactionInput,
) (*models.Transaction, error) {
	if !in.Type.Valid() {
		return nil, apperr.New(apperr.ErrInvalidOperation, "type must be income or expense")
	}
	amount, err := s.baseAmount(ctx, in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	desc, err := validateDescription(in.Description)
	if err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	date, err = s.validateDate(date)
	if err != nil {
		return nil, err
	}

	return &models.Transaction{
		BusinessID:  businessID,
		Type:        in.Type,
		Amount:      amount,
		Description: desc,
		Date:        date,
		AddedBy:     caller.UserID,
	}, nil
}

func (s *TransactionService) load(ctx context.Context, businessID, transactionID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.store.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.BusinessID != businessID {
		return nil, apperr.New(apperr.ErrNotFound, "transaction not found")
	}
	return txn, nil
}

// baseAmount converts amount from currency to the base currency and checks
// the stored value is not negative.
func (s *TransactionService) baseAmount(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperr.New(apperr.ErrInvalidOperation, "amount must not be negative")
	}
	code := models.NormalizeCurrencyCode(currency)
	if code != "" && code != models.BaseCurrency {
		converted, err := s.converter.Convert(ctx, amount, code, models.BaseCurrency)
		if err != nil {
			return decimal.Zero, err
		}
		amount = converted
	}
	amount = amount.Round(2)
	if amount.IsNegative() {
		return decimal.Zero, apperr.New(apperr.ErrInvalidOperation, "amount must not be negative")
	}
	return amount, nil
}

// validateDate rejects dates after today, compared by UTC calendar day.
func (s *TransactionService) validateDate(date time.Time) (time.Time, error) {
	day := calendarDay(date)
	today := calendarDay(s.now())
	if day.After(today) {
		return time.Time{}, apperr.New(apperr.ErrInvalidOperation, "date must not be in the future")
	}
	return day, nil
}

// batchItemError keeps the failure kind of a batch item and puts its index
// in the caller-facing message.
func batchItemError(i int, err error) error {
	kind := apperr.KindOf(err)
	if kind == nil {
		return fmt.Errorf("item %d: %w", i, err)
	}
	return apperr.New(kind, "item %d: %s", i, apperr.MessageOf(err))
}

func validateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > models.MaxDescriptionLength {
		return "", apperr.New(apperr.ErrInvalidOperation,
			"description must be at most %d characters", models.MaxDescriptionLength)
	}
	return desc, nil
}
