package service

import (
	"gitlab.com/yelinaung/business-ledger/internal/access"
	"gitlab.com/yelinaung/business-ledger/internal/exchange"
)

// Services bundles the domain services over shared stores.
type Services struct {
	Businesses   *BusinessService
	Partners     *PartnerService
	Transactions *TransactionService
	Users        *UserService
}

// New wires all services. Business and partner mutations share one
// per-business lock.
func New(users UserStore, businesses BusinessStore, transactions TransactionStore, converter exchange.Converter) *Services {
	guard := access.NewGuard(businesses)

	businessSvc := NewBusinessService(guard, businesses, users)
	partnerSvc := NewPartnerService(guard, businesses, users)
	partnerSvc.locks = businessSvc.locks

	return &Services{
		Businesses:   businessSvc,
		Partners:     partnerSvc,
		Transactions: NewTransactionService(guard, transactions, converter),
		Users:        NewUserService(users, businesses),
	}
}
