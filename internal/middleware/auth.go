package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anything-ai/anything-ai/internal/apperrors"
	"github.com/anything-ai/anything-ai/internal/i18n"
	"github.com/anything-ai/anything-ai/internal/respond"
	"github.com/anything-ai/anything-ai/internal/services/auth"
)

type claimsKey struct{}

// ClaimsFrom returns the authenticated claims, or nil
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// WithClaims stores claims in ctx
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// TokenVerifier verifies bearer tokens
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Authenticate rejects requests without a valid bearer token with 401
func Authenticate(verifier TokenVerifier, responder *respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !found || token == "" {
				responder.Error(w, r, apperrors.NewUnauthorized("missing bearer token").
					WithMessageID(i18n.MsgMissingToken))
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				unauthorized := apperrors.NewUnauthorized("invalid token").WithMessageID(i18n.MsgInvalidToken)
				if errors.Is(err, auth.ErrTokenExpired) {
					unauthorized = apperrors.NewUnauthorized("token expired").WithMessageID(i18n.MsgTokenExpired)
				}
				responder.Error(w, r, unauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
