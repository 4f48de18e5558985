package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a failure kind to an HTTP status code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, apperr.ErrInsufficientRole):
		return http.StatusForbidden, "insufficient_role"
	case errors.Is(err, apperr.ErrInvalidOperation):
		return http.StatusBadRequest, "invalid_operation"
	case errors.Is(err, apperr.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrRatesUnavailable):
		return http.StatusServiceUnavailable, "rates_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: apperr.MessageOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to write response body")
	}
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into dst. Unknown fields are refused.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.New(apperr.ErrInvalidOperation, "invalid request body: %s", describeDecodeError(err))
	}
	return nil
}

func describeDecodeError(err error) string {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return "malformed JSON"
	case errors.As(err, &typeErr):
		return "wrong type for field " + typeErr.Field
	case errors.As(err, &maxErr):
		return "body too large"
	case errors.Is(err, io.EOF):
		return "body is empty"
	default:
		return err.Error()
	}
}
