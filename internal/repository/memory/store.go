// Package memory implements the ledger repositories in process memory with
// the same constraints as the PostgreSQL schema. It backs local runs with
// DATABASE_URL=memory:// and the service tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// Store holds all entities behind one lock, so cross-entity checks are
// atomic the way foreign keys are in the database.
type Store struct {
	mu           sync.Mutex
	users        map[uuid.UUID]models.User
	businesses   map[uuid.UUID]models.Business
	transactions map[uuid.UUID]models.Transaction
	now          func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]models.User),
		businesses:   make(map[uuid.UUID]models.Business),
		transactions: make(map[uuid.UUID]models.Transaction),
		now:          time.Now,
	}
}

// Users returns the user repository of s.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Businesses returns the business repository of s.
func (s *Store) Businesses() *BusinessRepository { return &BusinessRepository{s: s} }

// Transactions returns the transaction repository of s.
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s: s} }

// UserRepository stores users.
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.TrimSpace(user.Email)
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperr.New(apperr.ErrDuplicate, "a user with this email already exists")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.UserRoleUser
	}
	user.TokenVersion = 0
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "user not found")
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(email)
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "user not found")
}

func (r *UserRepository) List(context.Context) ([]models.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b models.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.Email, b.Email))
	})
	return users, nil
}

func (r *UserRepository) SetPreferredCurrency(_ context.Context, id uuid.UUID, code string) error {
	return r.s.updateUser(id, func(u *models.User) error {
		u.PreferredCurrency = code
		return nil
	})
}

func (r *UserRepository) SetApproved(_ context.Context, id uuid.UUID, approved bool) error {
	return r.s.updateUser(id, func(u *models.User) error {
		if !approved {
			u.TokenVersion++
		}
		u.Approved = approved
		return nil
	})
}

func (r *UserRepository) SetRole(_ context.Context, id uuid.UUID, role models.UserRole) error {
	s := r.s
	return s.updateUser(id, func(u *models.User) error {
		if u.Role == models.UserRoleAdmin && role != models.UserRoleAdmin && s.adminsLocked() <= 1 {
			return apperr.New(apperr.ErrInvalidOperation, "cannot demote the last admin")
		}
		u.Role = role
		u.TokenVersion++
		return nil
	})
}

func (r *UserRepository) Delete(_ context.Context, id uuid.UUID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	if u.Role == models.UserRoleAdmin && s.adminsLocked() <= 1 {
		return apperr.New(apperr.ErrInvalidOperation, "cannot delete the last admin")
	}
	for _, b := range s.businesses {
		if b.OwnerID == id {
			return apperr.New(apperr.ErrInvalidOperation, "user still owns businesses or transactions")
		}
	}
	for _, t := range s.transactions {
		if t.AddedBy == id {
			return apperr.New(apperr.ErrInvalidOperation, "user still owns businesses or transactions")
		}
	}

	for bid, b := range s.businesses {
		if idx := partnerIndex(b.Partners, id); idx >= 0 {
			b.Partners = slices.Delete(slices.Clone(b.Partners), idx, idx+1)
			s.businesses[bid] = b
		}
	}
	delete(s.users, id)
	return nil
}

func (r *UserRepository) BumpTokenVersion(_ context.Context, id uuid.UUID) (int, error) {
	var version int
	err := r.s.updateUser(id, func(u *models.User) error {
		u.TokenVersion++
		version = u.TokenVersion
		return nil
	})
	return version, err
}

func (r *UserRepository) CountAdmins(context.Context) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminsLocked(), nil
}

func (s *Store) updateUser(id uuid.UUID, fn func(u *models.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func (s *Store) adminsLocked() int {
	n := 0
	for _, u := range s.users {
		if u.Role == models.UserRoleAdmin {
			n++
		}
	}
	return n
}

// BusinessRepository stores businesses and their partner lists. Writes
// compare-and-swap on Business.Version.
type BusinessRepository struct{ s *Store }

func cloneBusiness(b models.Business) *models.Business {
	b.Partners = slices.Clone(b.Partners)
	return &b
}

func partnerIndex(partners []models.Partner, userID uuid.UUID) int {
	return slices.IndexFunc(partners, func(p models.Partner) bool { return p.UserID == userID })
}

func (r *BusinessRepository) Create(_ context.Context, business *models.Business) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[business.OwnerID]; !ok {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	owners := 0
	for i, p := range business.Partners {
		if _, ok := s.users[p.UserID]; !ok {
			return apperr.New(apperr.ErrNotFound, "user not found")
		}
		if partnerIndex(business.Partners[:i], p.UserID) >= 0 {
			return apperr.New(apperr.ErrDuplicate, "user is already a partner of this business")
		}
		if p.Role == models.RoleOwner {
			owners++
		}
	}
	if owners > 1 {
		return apperr.New(apperr.ErrInvalidOperation, "a business has exactly one owner")
	}

	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}
	business.Version = 1
	business.CreatedAt = s.now()
	business.UpdatedAt = business.CreatedAt
	for i := range business.Partners {
		if business.Partners[i].JoinedAt.IsZero() {
			business.Partners[i].JoinedAt = business.CreatedAt
		}
	}
	s.businesses[business.ID] = *cloneBusiness(*business)
	return nil
}

func (r *BusinessRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Business, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.businesses[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "business not found")
	}
	return cloneBusiness(b), nil
}

func (r *BusinessRepository) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Business, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Business
	for _, b := range s.businesses {
		if partnerIndex(b.Partners, userID) >= 0 {
			out = append(out, *cloneBusiness(b))
		}
	}
	slices.SortFunc(out, func(a, b models.Business) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (r *BusinessRepository) CountOwnedBy(_ context.Context, userID uuid.UUID) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, b := range s.businesses {
		if b.OwnerID == userID {
			n++
		}
	}
	return n, nil
}

func (r *BusinessRepository) Update(_ context.Context, business *models.Business) error {
	return r.s.mutateBusiness(business, func(stored *models.Business) error {
		stored.Name = business.Name
		stored.Currency = business.Currency
		return nil
	})
}

// Delete removes a business and its transactions.
func (r *BusinessRepository) Delete(_ context.Context, id uuid.UUID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.businesses[id]; !ok {
		return apperr.New(apperr.ErrNotFound, "business not found")
	}
	for tid, t := range s.transactions {
		if t.BusinessID == id {
			delete(s.transactions, tid)
		}
	}
	delete(s.businesses, id)
	return nil
}

func (r *BusinessRepository) AddPartner(_ context.Context, business *models.Business, partner *models.Partner) error {
	s := r.s
	return s.mutateBusiness(business, func(stored *models.Business) error {
		if partnerIndex(stored.Partners, partner.UserID) >= 0 {
			return apperr.New(apperr.ErrDuplicate, "user is already a partner of this business")
		}
		if _, ok := s.users[partner.UserID]; !ok {
			return apperr.New(apperr.ErrNotFound, "user not found")
		}
		if partner.JoinedAt.IsZero() {
			partner.JoinedAt = s.now().UTC()
		}
		stored.Partners = append(stored.Partners, *partner)
		return nil
	})
}

func (r *BusinessRepository) UpdatePartnerRole(
	_ context.Context,
	business *models.Business,
	userID uuid.UUID,
	role models.PartnerRole,
) error {
	return r.s.mutateBusiness(business, func(stored *models.Business) error {
		idx := partnerIndex(stored.Partners, userID)
		if idx < 0 || stored.Partners[idx].Role == models.RoleOwner {
			return apperr.New(apperr.ErrNotFound, "partner not found")
		}
		stored.Partners[idx].Role = role
		return nil
	})
}

func (r *BusinessRepository) RemovePartner(_ context.Context, business *models.Business, userID uuid.UUID) error {
	return r.s.mutateBusiness(business, func(stored *models.Business) error {
		idx := partnerIndex(stored.Partners, userID)
		if idx < 0 || stored.Partners[idx].Role == models.RoleOwner {
			return apperr.New(apperr.ErrNotFound, "partner not found")
		}
		stored.Partners = slices.Delete(stored.Partners, idx, idx+1)
		return nil
	})
}

// mutateBusiness applies fn to a copy of the stored business and saves it if
// business.Version is still current. business.Version only advances on success.
func (s *Store) mutateBusiness(business *models.Business, fn func(stored *models.Business) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.businesses[business.ID]
	if !ok || b.Version != business.Version {
		return apperr.New(apperr.ErrConflict, "business was modified concurrently, retry")
	}
	stored := cloneBusiness(b)
	if err := fn(stored); err != nil {
		return err
	}
	stored.Version++
	stored.UpdatedAt = s.now()
	s.businesses[business.ID] = *stored

	business.Version = stored.Version
	business.UpdatedAt = stored.UpdatedAt
	return nil
}

// TransactionRepository stores transactions.
type TransactionRepository struct{ s *Store }

func (r *TransactionRepository) Create(_ context.Context, txn *models.Transaction) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransactionLocked(txn); err != nil {
		return err
	}
	s.insertTransactionLocked(txn)
	return nil
}

// CreateBatch stores every transaction or none.
func (r *TransactionRepository) CreateBatch(_ context.Context, txns []*models.Transaction) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, txn := range txns {
		if err := s.checkTransactionLocked(txn); err != nil {
			return err
		}
	}
	for _, txn := range txns {
		s.insertTransactionLocked(txn)
	}
	return nil
}

func (r *TransactionRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "transaction not found")
	}
	return &txn, nil
}

func (r *TransactionRepository) Update(_ context.Context, txn *models.Transaction) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[txn.ID]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "transaction not found")
	}
	stored.Type = txn.Type
	stored.Amount = txn.Amount
	stored.Description = txn.Description
	stored.Date = txn.Date
	stored.UpdatedAt = s.now()
	s.transactions[txn.ID] = stored
	txn.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *TransactionRepository) Delete(_ context.Context, id uuid.UUID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return apperr.New(apperr.ErrNotFound, "transaction not found")
	}
	delete(s.transactions, id)
	return nil
}

// List returns matching transactions, newest first.
func (r *TransactionRepository) List(
	_ context.Context,
	businessID uuid.UUID,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	txns := s.matchingLocked(businessID, filter)
	slices.SortFunc(txns, func(a, b models.Transaction) int {
		return cmp.Or(
			b.Date.Compare(a.Date),
			b.CreatedAt.Compare(a.CreatedAt),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})
	return txns, nil
}

func (r *TransactionRepository) Totals(
	_ context.Context,
	businessID uuid.UUID,
	filter models.TransactionFilter,
) (income, expense decimal.Decimal, err error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	income, expense = decimal.Zero, decimal.Zero
	for _, txn := range s.matchingLocked(businessID, filter) {
		switch txn.Type {
		case models.TransactionIncome:
			income = income.Add(txn.Amount)
		case models.TransactionExpense:
			expense = expense.Add(txn.Amount)
		}
	}
	return income, expense, nil
}

func (s *Store) checkTransactionLocked(txn *models.Transaction) error {
	if _, ok := s.businesses[txn.BusinessID]; !ok {
		return apperr.New(apperr.ErrNotFound, "business not found")
	}
	if _, ok := s.users[txn.AddedBy]; !ok {
		return apperr.New(apperr.ErrNotFound, "user not found")
	}
	if txn.Amount.IsNegative() {
		return apperr.New(apperr.ErrInvalidOperation, "amount must not be negative")
	}
	return nil
}

func (s *Store) insertTransactionLocked(txn *models.Transaction) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = s.now()
	txn.UpdatedAt = txn.CreatedAt
	s.transactions[txn.ID] = *txn
}

func (s *Store) matchingLocked(businessID uuid.UUID, filter models.TransactionFilter) []models.Transaction {
	var out []models.Transaction
	for _, txn := range s.transactions {
		if txn.BusinessID != businessID {
			continue
		}
		if filter.From != nil && txn.Date.Before(dateOnly(*filter.From)) {
			continue
		}
		if filter.To != nil && txn.Date.After(dateOnly(*filter.To)) {
			continue
		}
		if filter.Type != nil && txn.Type != *filter.Type {
			continue
		}
		out = append(out, txn)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
