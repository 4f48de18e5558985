package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/business-ledger/internal/exchange"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/models"
	"gitlab.com/yelinaung/business-ledger/internal/repository/memory"
)

func init() {
	logger.InitHashSaltForTesting("service-test-salt-0123456789abcdef")
}

// fixedRates serves a constant rate table.
type fixedRates struct {
	table *exchange.RateTable
}

func (f fixedRates) Rates(context.Context) (*exchange.RateTable, error) {
	return f.table, nil
}

func testConverter() *exchange.Service {
	return exchange.NewService(fixedRates{table: &exchange.RateTable{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("0.5"),
			"JPY": decimal.RequireFromString("100"),
		},
		Origin: exchange.OriginLive,
	}})
}

// fixture wires the services over an in-memory store.
type fixture struct {
	users        *memory.UserRepository
	businesses   *memory.BusinessRepository
	transactions *memory.TransactionRepository
	svc          *Services
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()

	f := &fixture{
		users:        store.Users(),
		businesses:   store.Businesses(),
		transactions: store.Transactions(),
		now:          time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC),
	}
	f.svc = New(f.users, f.businesses, f.transactions, testConverter())
	f.svc.Transactions.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) user(t *testing.T, email string, preferred string) models.Identity {
	t.Helper()
	u := &models.User{Email: email, Name: email, Approved: true, PreferredCurrency: preferred}
	require.NoError(t, f.users.Create(context.Background(), u))
	return models.Identity{UserID: u.ID, Role: u.Role, Approved: true}
}

func (f *fixture) admin(t *testing.T, email string) models.Identity {
	t.Helper()
	u := &models.User{Email: email, Name: email, Role: models.UserRoleAdmin, Approved: true}
	require.NoError(t, f.users.Create(context.Background(), u))
	return models.Identity{UserID: u.ID, Role: u.Role, Approved: true}
}

func (f *fixture) business(t *testing.T, owner models.Identity, name string) *models.Business {
	t.Helper()
	b, err := f.svc.Businesses.Create(context.Background(), owner, BusinessInput{Name: name, Currency: "USD"})
	require.NoError(t, err)
	return b
}

// stored counts the transactions kept for businessID.
func (f *fixture) stored(t *testing.T, businessID uuid.UUID) int {
	t.Helper()
	txns, err := f.transactions.List(context.Background(), businessID, models.TransactionFilter{})
	require.NoError(t, err)
	return len(txns)
}

// version returns the stored version of a business.
func (f *fixture) version(t *testing.T, businessID uuid.UUID) int64 {
	t.Helper()
	b, err := f.businesses.GetByID(context.Background(), businessID)
	require.NoError(t, err)
	return b.Version
}
