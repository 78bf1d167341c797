// Package middleware provides HTTP middleware that authenticates requests with
// session tokens issued by the service.
//
// RequireSession extracts the token from "Authorization: Bearer <token>",
// verifies it and stores the claims in the request context. Missing, malformed,
// tampered or expired tokens answer 401 with the standard error body.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/otherjamesbrown/mfa-auth-service/internal/errors"
	"github.com/otherjamesbrown/mfa-auth-service/internal/httpapi"
	"github.com/otherjamesbrown/mfa-auth-service/internal/security"
)

// ContextKey is the type for context keys.
type ContextKey string

// ClaimsKey is the context key for verified session claims.
const ClaimsKey ContextKey = "auth.claims"

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (*security.SessionClaims, error)
}

var (
	errMissingToken = apperrors.Authentication("missing authorization header")
	errBadHeader    = apperrors.Authentication("invalid authorization header format")
	errInvalidToken = apperrors.Authentication("invalid or expired token")
)

// RequireSession returns middleware that rejects requests without a valid session token.
func RequireSession(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("missing authorization header", zap.String("path", r.URL.Path))
				httpapi.WriteError(w, errMissingToken)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				logger.Debug("invalid authorization header format", zap.String("path", r.URL.Path))
				httpapi.WriteError(w, errBadHeader)
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				logger.Debug("token validation failed", zap.String("path", r.URL.Path), zap.Error(err))
				httpapi.WriteError(w, errInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims stored by RequireSession.
func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*security.SessionClaims)
	return claims, ok && claims != nil
}
