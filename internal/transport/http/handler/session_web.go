package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
)

// SessionChecker re-validates a parked session before it is promoted into the
// auth cookie.
type SessionChecker interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// SessionWeb turns backend session records into browser cookies. It is the
// single place that writes the auth cookie, so the remember-me rules and the
// pending-cookie cleanup live here and nowhere else.
type SessionWeb struct {
	cookies  *cookie.Stores
	sessions SessionChecker
}

func NewSessionWeb(cookies *cookie.Stores, sessions SessionChecker) *SessionWeb {
	return &SessionWeb{cookies: cookies, sessions: sessions}
}

// HandleNewSession commits sess to the auth cookie and redirects. With
// remember the cookie persists until the session record expires; without it
// the cookie dies with the browser session while the record outlives it.
func (s *SessionWeb) HandleNewSession(w http.ResponseWriter, r *http.Request, sess *domain.Session, remember bool, redirectTo string) {
	auth := s.cookies.Auth.Get(r)
	auth.SetSessionID(sess.SessionID)

	var expires *time.Time
	if remember {
		expires = &sess.ExpirationDate
	}
	if err := auth.Save(r, w, expires); err != nil {
		writeError(w, http.StatusInternalServerError, "could not establish session")
		return
	}
	http.Redirect(w, r, safeRedirect(redirectTo), http.StatusFound)
}

// HandleVerification promotes the parked session from the pending cookie into
// the auth cookie after a successful code check. The pending cookie is
// destroyed on every path, success or failure, so stale state can never leak
// into a later flow.
func (s *SessionWeb) HandleVerification(w http.ResponseWriter, r *http.Request, redirectTo string) {
	verify := s.cookies.Verify.Get(r)
	remember := verify.Remember()
	sessionID, ok := verify.UnverifiedSessionID()
	_ = verify.Destroy(r, w)

	if !ok {
		s.RedirectWithToast(w, r, "/login", cookie.Toast{
			Type:        "error",
			Title:       "Session expired",
			Description: "Your login session expired. Please log in again.",
		})
		return
	}

	sess, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		// The parked session was deleted or expired between login and code
		// entry; start over.
		s.RedirectWithToast(w, r, "/login", cookie.Toast{
			Type:        "error",
			Title:       "Session expired",
			Description: "Your login session expired. Please log in again.",
		})
		return
	}

	auth := s.cookies.Auth.Get(r)
	auth.SetSessionID(sess.SessionID)
	auth.SetVerifiedTime(time.Now())

	var expires *time.Time
	if remember {
		expires = &sess.ExpirationDate
	}
	if err := auth.Save(r, w, expires); err != nil {
		writeError(w, http.StatusInternalServerError, "could not establish session")
		return
	}
	http.Redirect(w, r, safeRedirect(redirectTo), http.StatusFound)
}

// RedirectWithToast queues a flash toast and redirects.
func (s *SessionWeb) RedirectWithToast(w http.ResponseWriter, r *http.Request, to string, t cookie.Toast) {
	_ = s.cookies.Toast.Add(r, w, t)
	http.Redirect(w, r, safeRedirect(to), http.StatusFound)
}
