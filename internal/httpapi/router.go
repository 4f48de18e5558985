// Package httpapi exposes the ledger services over a JSON REST API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/business-ledger/internal/exchange"
	"gitlab.com/yelinaung/business-ledger/internal/logger"
	"gitlab.com/yelinaung/business-ledger/internal/service"
)

func init() {
	// Amounts and rates go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// RateReader returns the current exchange rate table.
type RateReader interface {
	Rates(ctx context.Context) (*exchange.RateTable, error)
}

// RateResetter drops cached exchange rates.
type RateResetter interface {
	Reset()
}

// Deps are the collaborators of the API.
type Deps struct {
	Services  *service.Services
	Rates     RateReader
	RateCache RateResetter
	JWTSecret []byte
}

type api struct {
	svc       *service.Services
	rates     RateReader
	rateCache RateResetter
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(d Deps) http.Handler {
	a := &api{svc: d.Services, rates: d.Rates, rateCache: d.RateCache}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Get("/currencies", a.listCurrencies)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(d.JWTSecret, d.Services.Users))

			r.Get("/rates", a.getRates)

			r.Get("/me", a.getMe)
			r.Patch("/me", a.updateMe)
			r.Post("/me/revoke-sessions", a.revokeOwnSessions)

			r.Route("/businesses", func(r chi.Router) {
				r.Get("/", a.listBusinesses)
				r.Post("/", a.createBusiness)

				r.Route("/{businessID}", func(r chi.Router) {
					r.Get("/", a.getBusiness)
					r.Patch("/", a.updateBusiness)
					r.Delete("/", a.deleteBusiness)

					r.Get("/partners", a.listPartners)
					r.Post("/partners", a.addPartner)
					r.Patch("/partners/{userID}", a.updatePartner)
					r.Delete("/partners/{userID}", a.removePartner)

					r.Get("/transactions", a.listTransactions)
					r.Post("/transactions", a.createTransaction)
					r.Post("/transactions/batch", a.createTransactionBatch)
					r.Patch("/transactions/{transactionID}", a.updateTransaction)
					r.Delete("/transactions/{transactionID}", a.deleteTransaction)

					r.Get("/summary", a.summary)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/users", a.listUsers)
				r.Post("/users/{userID}/approval", a.setApproval)
				r.Put("/users/{userID}/role", a.setRole)
				r.Delete("/users/{userID}", a.deleteUser)
				r.Post("/users/{userID}/revoke-sessions", a.revokeSessions)
				r.Post("/rates/refresh", a.refreshRates)
			})
		})
	})

	return otelhttp.NewHandler(r, "ledger.http")
}

// requestLogger logs each request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		trace.SpanFromContext(r.Context()).SetName(r.Method + " " + route)

		logger.Log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

// routePattern returns the matched chi route, never the raw path, so ids
// stay out of logs and span names.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
