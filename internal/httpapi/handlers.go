package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/exchange"
	"gitlab.com/yelinaung/business-ledger/internal/models"
	"gitlab.com/yelinaung/business-ledger/internal/service"
)

type registerRequest struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredCurrency string `json:"preferredCurrency"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.svc.Users.Register(r.Context(), req.Email, req.Name, req.PreferredCurrency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *api) listCurrencies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, exchange.ListSupported())
}

type ratesResponse struct {
	Base      string                     `json:"base"`
	Origin    string                     `json:"origin"`
	RateDate  *time.Time                 `json:"rateDate,omitempty"`
	FetchedAt *time.Time                 `json:"fetchedAt,omitempty"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

func (a *api) getRates(w http.ResponseWriter, r *http.Request) {
	table, err := a.rates.Rates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := ratesResponse{Base: table.Base, Origin: table.Origin, Rates: table.Rates}
	if !table.RateDate.IsZero() {
		resp.RateDate = &table.RateDate
	}
	if !table.FetchedAt.IsZero() {
		resp.FetchedAt = &table.FetchedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) refreshRates(w http.ResponseWriter, r *http.Request) {
	a.rateCache.Reset()
	a.getRates(w, r)
}

func (a *api) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.Users.Me(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateMeRequest struct {
	PreferredCurrency string `json:"preferredCurrency"`
}

func (a *api) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.svc.Users.SetPreferredCurrency(r.Context(), identityFrom(r), req.PreferredCurrency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) revokeOwnSessions(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r)
	if err := a.svc.Users.RevokeSessions(r.Context(), caller, caller.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type businessRequest struct {
	Name     *string `json:"name"`
	Currency *string `json:"currency"`
}

func (a *api) listBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := a.svc.Businesses.ListForUser(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, businesses)
}

func (a *api) createBusiness(w http.ResponseWriter, r *http.Request) {
	var req businessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := service.BusinessInput{}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Currency != nil {
		in.Currency = *req.Currency
	}
	business, err := a.svc.Businesses.Create(r.Context(), identityFrom(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, business)
}

func (a *api) getBusiness(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	business, err := a.svc.Businesses.Get(r.Context(), identityFrom(r), businessID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, business)
}

func (a *api) updateBusiness(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req businessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	business, err := a.svc.Businesses.Update(r.Context(), identityFrom(r), businessID,
		service.BusinessPatch{Name: req.Name, Currency: req.Currency})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, business)
}

func (a *api) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Businesses.Delete(r.Context(), identityFrom(r), businessID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type partnerRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *api) listPartners(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	partners, err := a.svc.Partners.List(r.Context(), identityFrom(r), businessID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}

func (a *api) addPartner(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req partnerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	partner, err := a.svc.Partners.Add(r.Context(), identityFrom(r), businessID, req.Email, models.PartnerRole(req.Role))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, partner)
}

func (a *api) updatePartner(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req partnerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	partner, err := a.svc.Partners.UpdateRole(r.Context(), identityFrom(r), businessID, userID, models.PartnerRole(req.Role))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

func (a *api) removePartner(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Partners.Remove(r.Context(), identityFrom(r), businessID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transactionRequest struct {
	Type        *string          `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
}

func (req transactionRequest) input() (service.TransactionInput, error) {
	in := service.TransactionInput{Currency: req.Currency}
	if req.Type != nil {
		in.Type = models.TransactionType(strings.ToLower(strings.TrimSpace(*req.Type)))
	}
	if req.Amount == nil {
		return in, apperr.New(apperr.ErrInvalidOperation, "amount is required")
	}
	in.Amount = *req.Amount
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			return in, err
		}
		in.Date = date
	}
	return in, nil
}

func (req transactionRequest) patch() (service.TransactionPatch, error) {
	patch := service.TransactionPatch{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	}
	if req.Type != nil {
		typ := models.TransactionType(strings.ToLower(strings.TrimSpace(*req.Type)))
		patch.Type = &typ
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &date
	}
	return patch, nil
}

func (a *api) listTransactions(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := transactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txns, err := a.svc.Transactions.List(r.Context(), identityFrom(r), businessID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (a *api) createTransaction(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := a.svc.Transactions.Create(r.Context(), identityFrom(r), businessID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

type batchRequest struct {
	Transactions []transactionRequest `json:"transactions"`
}

func (a *api) createTransactionBatch(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]service.TransactionInput, 0, len(req.Transactions))
	for i, item := range req.Transactions {
		in, err := item.input()
		if err != nil {
			writeError(w, r, apperr.New(apperr.ErrInvalidOperation, "item %d: %s", i, apperr.MessageOf(err)))
			return
		}
		items = append(items, in)
	}
	txns, err := a.svc.Transactions.CreateBatch(r.Context(), identityFrom(r), businessID, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txns)
}

func (a *api) updateTransaction(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	transactionID, err := uuidParam(r, "transactionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := a.svc.Transactions.Update(r.Context(), identityFrom(r), businessID, transactionID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (a *api) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	transactionID, err := uuidParam(r, "transactionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Transactions.Delete(r.Context(), identityFrom(r), businessID, transactionID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) summary(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuidParam(r, "businessID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := transactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := service.SummaryRequest{Currency: r.URL.Query().Get("currency")}
	if filter.From != nil {
		req.From = *filter.From
	}
	if filter.To != nil {
		req.To = *filter.To
	}
	s, err := a.svc.Transactions.Summary(r.Context(), identityFrom(r), businessID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.Users.List(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type approvalRequest struct {
	Approved bool `json:"approved"`
}

func (a *api) setApproval(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req approvalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.svc.Users.Approve(r.Context(), identityFrom(r), userID, req.Approved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (a *api) setRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role := models.UserRole(strings.ToLower(strings.TrimSpace(req.Role)))
	user, err := a.svc.Users.SetRole(r.Context(), identityFrom(r), userID, role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Users.Delete(r.Context(), identityFrom(r), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) revokeSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Users.RevokeSessions(r.Context(), identityFrom(r), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
