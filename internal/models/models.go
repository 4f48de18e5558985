// Package models defines the domain entities for the business ledger.
package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency every transaction amount is stored in.
const BaseCurrency = "USD"

// DefaultCurrency is used when neither the request nor the user names one.
const DefaultCurrency = "USD"

// MaxBusinessNameLength is the maximum allowed length for business names.
const MaxBusinessNameLength = 100

// MaxDescriptionLength is the maximum allowed length for transaction descriptions.
const MaxDescriptionLength = 500

// Currency describes a supported currency code.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	// ZeroDecimal currencies are displayed in whole units.
	ZeroDecimal bool `json:"zeroDecimal"`
}

// SupportedCurrencies lists all supported currencies in display order.
var SupportedCurrencies = []Currency{
	{Code: "USD", Symbol: "$", Name: "US Dollar"},
	{Code: "EUR", Symbol: "€", Name: "Euro"},
	{Code: "GBP", Symbol: "£", Name: "British Pound"},
	{Code: "JPY", Symbol: "¥", Name: "Japanese Yen", ZeroDecimal: true},
	{Code: "CNY", Symbol: "¥", Name: "Chinese Yuan"},
	{Code: "INR", Symbol: "₹", Name: "Indian Rupee"},
	{Code: "SGD", Symbol: "S$", Name: "Singapore Dollar"},
	{Code: "MYR", Symbol: "RM", Name: "Malaysian Ringgit"},
	{Code: "THB", Symbol: "฿", Name: "Thai Baht"},
	{Code: "IDR", Symbol: "Rp", Name: "Indonesian Rupiah", ZeroDecimal: true},
	{Code: "PHP", Symbol: "₱", Name: "Philippine Peso"},
	{Code: "VND", Symbol: "₫", Name: "Vietnamese Dong", ZeroDecimal: true},
	{Code: "KRW", Symbol: "₩", Name: "South Korean Won", ZeroDecimal: true},
	{Code: "AUD", Symbol: "A$", Name: "Australian Dollar"},
	{Code: "NZD", Symbol: "NZ$", Name: "New Zealand Dollar"},
	{Code: "HKD", Symbol: "HK$", Name: "Hong Kong Dollar"},
	{Code: "TWD", Symbol: "NT$", Name: "New Taiwan Dollar"},
	{Code: "CAD", Symbol: "C$", Name: "Canadian Dollar"},
	{Code: "CHF", Symbol: "CHF", Name: "Swiss Franc"},
}

// NormalizeCurrencyCode upper-cases and trims a currency code.
func NormalizeCurrencyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LookupCurrency returns the supported currency for code.
func LookupCurrency(code string) (Currency, bool) {
	code = NormalizeCurrencyCode(code)
	idx := slices.IndexFunc(SupportedCurrencies, func(c Currency) bool { return c.Code == code })
	if idx < 0 {
		return Currency{}, false
	}
	return SupportedCurrencies[idx], true
}

// IsSupportedCurrency reports whether code is in SupportedCurrencies.
func IsSupportedCurrency(code string) bool {
	_, ok := LookupCurrency(code)
	return ok
}

// UserRole is the global role of a user.
type UserRole string

// User roles.
const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known user role.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin:
		return true
	default:
		return false
	}
}

// PartnerRole is a user's role within a business.
type PartnerRole string

// Partner roles, lowest to highest.
const (
	RoleViewer PartnerRole = "viewer"
	RoleEditor PartnerRole = "editor"
	RoleOwner  PartnerRole = "owner"
)

// Ptr returns a pointer to r, for optional minimum roles.
func (r PartnerRole) Ptr() *PartnerRole {
	return &r
}

// TransactionType distinguishes income from expense.
type TransactionType string

// Transaction types.
const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// User is a registered account.
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	Role              UserRole  `json:"role"`
	Approved          bool      `json:"approved"`
	PreferredCurrency string    `json:"preferredCurrency,omitempty"`
	// TokenVersion invalidates outstanding sessions when incremented.
	TokenVersion int       `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID   uuid.UUID
	Role     UserRole
	Approved bool
}

// IsAdmin reports whether the caller holds the global admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == UserRoleAdmin
}

// Partner is a membership record embedded in a business.
type Partner struct {
	UserID   uuid.UUID   `json:"userId"`
	Role     PartnerRole `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

// Business is a ledger shared between its partners.
type Business struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	OwnerID  uuid.UUID `json:"ownerId"`
	Currency string    `json:"currency"`
	Partners []Partner `json:"partners"`
	// Version is bumped on every write and used for compare-and-swap.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PartnerFor returns the partner entry of userID.
func (b *Business) PartnerFor(userID uuid.UUID) (Partner, bool) {
	for _, p := range b.Partners {
		if p.UserID == userID {
			return p, true
		}
	}
	return Partner{}, false
}

// Transaction is a single income or expense entry of a business.
type Transaction struct {
	ID         uuid.UUID       `json:"id"`
	BusinessID uuid.UUID       `json:"businessId"`
	Type       TransactionType `json:"type"`
	// Amount is always in BaseCurrency.
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	AddedBy     uuid.UUID       `json:"addedBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	From *time.Time
	To   *time.Time
	Type *TransactionType
}
