package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	otpAuth "github.com/MrEthical07/otpAuth"
)

// SessionCookie is the cookie the HTTP adapter stores the session token in.
const SessionCookie = "session"

// TokenValidator is the subset of *otpAuth.Engine used by RequireSession.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*otpAuth.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims injected by RequireSession.
func ClaimsFromContext(ctx context.Context) (*otpAuth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*otpAuth.Claims)
	return claims, ok
}

// AccountIDFromContext returns the authenticated account ID, or "".
func AccountIDFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.AccountID
	}
	return ""
}

// RequireSession rejects requests without a valid session token with 401.
func RequireSession(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := TokenFromRequest(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				msg := "unauthorized"
				if errors.Is(err, otpAuth.ErrTokenExpired) {
					msg = "token expired"
				}
				http.Error(w, msg, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest prefers the Authorization bearer token and falls back to
// the session cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
