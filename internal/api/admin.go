package api

import (
	"errors"
	"net/http"

	"github.com/mampersat/ratewings2025/internal/auth"
	"github.com/mampersat/ratewings2025/internal/middleware"
)

// TokenVerifier verifies admin bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireAdmin returns middleware that rejects requests without a valid admin
// bearer token with 401 auth_failed. The token subject is stored on the
// request context. A nil verifier leaves the wrapped handler open.
func RequireAdmin(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ratewings"`)
				writeCodedError(w, r, ErrCodeAuthFailed, "Admin token required")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				msg := "Invalid admin token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Admin token has expired"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="ratewings", error="invalid_token"`)
				writeCodedError(w, r, ErrCodeAuthFailed, msg)
				return
			}

			ctx := middleware.SetAdminSubject(r.Context(), claims.Subject)
			middleware.UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
