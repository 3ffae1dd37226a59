// Package interceptor holds HTTP middleware that authenticates requests.
package interceptor

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	authtypes "github.com/vasapolrittideah/lms-api/services/auth-service/pkg/types"
	"github.com/vasapolrittideah/lms-api/shared/utilities"
)

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "access_token"

type contextKey struct{}

var AccountClaimsKey = contextKey{}

// Authenticator validates an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*authtypes.JWTClaims, error)
}

// NewJWTInterceptor rejects requests without a valid access token. The token is
// read from the access_token cookie first and the Authorization header second.
// Verified claims are stored in the request context under AccountClaimsKey.
func NewJWTInterceptor(authenticator Authenticator, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractAccessToken(r)
			if err != nil {
				utilities.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := authenticator.Authenticate(r.Context(), tokenString)
			if err != nil {
				logger.Debug().Err(err).Str("ip", utilities.ClientIP(r)).Msg("access token rejected")
				utilities.WriteError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), AccountClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by the interceptor.
func ClaimsFromContext(ctx context.Context) (*authtypes.JWTClaims, bool) {
	claims, ok := ctx.Value(AccountClaimsKey).(*authtypes.JWTClaims)
	return claims, ok
}

func extractAccessToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	if r.Header.Get("Authorization") == "" {
		return "", errors.New("missing access token")
	}

	tokenString, ok := utilities.BearerToken(r)
	if !ok {
		return "", errors.New("invalid authorization header format")
	}

	return tokenString, nil
}
