package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.ErrNotFound, "%s not found", strings.TrimSuffix(name, "ID"))
	}
	return id, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.New(apperr.ErrInvalidOperation, "%s must be a date like 2006-01-02", field)
}

func optionalDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func transactionFilter(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()

	var (
		filter models.TransactionFilter
		err    error
	)
	if filter.From, err = optionalDate("from", q.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = optionalDate("to", q.Get("to")); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		typ := models.TransactionType(strings.ToLower(raw))
		filter.Type = &typ
	}
	return filter, nil
}
