package http

import (
	"net/http"
	"strings"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
)

const (
	HeaderSessionID = "X-Session-ID"
	HeaderDeviceID  = "X-Device-ID"
)

// AuthMiddleware resolves the bearer token into an identity. Requests
// without a token continue as anonymous; a bad token is rejected.
func AuthMiddleware(provider auth.Provider, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), domain.Anonymous())))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respondError(log, w, http.StatusUnauthorized, "unauthenticated", "malformed authorization header")
				return
			}
			identity, err := provider.Identify(strings.TrimSpace(token))
			if err != nil {
				handleError(log, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// requireAccount rejects anonymous callers before the handler runs.
func requireAccount(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.FromContext(r.Context()).IsAnonymous() {
				respondError(log, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
