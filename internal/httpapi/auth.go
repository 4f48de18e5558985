package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// Claims are the bearer token claims. Subject is the user id and
// TokenVersion must match the user's current token version.
type Claims struct {
	TokenVersion int `json:"tv"`
	jwt.RegisteredClaims
}

// IdentityResolver turns a verified session into a caller identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, tokenVersion int) (models.Identity, error)
}

type identityKey struct{}

// SignToken issues an HS256 bearer token for user.
func SignToken(secret []byte, user *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Authenticate requires a valid bearer token and stores the caller identity
// in the request context.
func Authenticate(secret []byte, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "bearer token required"})
				return
			}

			claims, err := parseToken(secret, raw)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "invalid token"})
				return
			}
			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "invalid token subject"})
				return
			}

			identity, err := resolver.Resolve(r.Context(), userID, claims.TokenVersion)
			if err != nil {
				if errors.Is(err, apperr.ErrAccessDenied) {
					writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: apperr.MessageOf(err)})
					return
				}
				writeError(w, r, fmt.Errorf("failed to resolve identity: %w", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
		})
	}
}

// requireAdmin refuses callers without the global admin role.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFrom(r).IsAdmin() {
			writeError(w, r, apperr.New(apperr.ErrAccessDenied, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFrom(r *http.Request) models.Identity {
	identity, _ := r.Context().Value(identityKey{}).(models.Identity)
	return identity
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
