package middleware

import (
	"context"
	"net/http"

	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
)

type contextKey string

const sessionCtxKey contextKey = "session"

// SessionResolver re-validates a session ID from the auth cookie against the
// session store.
type SessionResolver interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Auth returns middleware that resolves the auth-session cookie to a live
// session record and injects it into the request context. Requests without a
// live session are rejected with 401.
func Auth(store *cookie.AuthStore, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authSess := store.Get(r)
			sessionID, ok := authSess.SessionID()
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "login required")
				return
			}
			sess, err := resolver.GetSession(r.Context(), sessionID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// ContextWithSession injects an authenticated session, for handlers invoked
// outside the Auth middleware (tests, background jobs).
func ContextWithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// SessionFromContext extracts the authenticated session from the request context.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey).(*domain.Session)
	return s, ok
}
