// Package cookie wraps gorilla/sessions with the three cookie stores the app
// uses: the authenticated-session cookie, the short-lived pending-verification
// cookie and the toast flash cookie. Each store owns its cookie name and
// lifetime; values are signed (and optionally encrypted) with the configured
// keys.
package cookie

import (
	"encoding/gob"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	AuthCookieName   = "sf_session"
	VerifyCookieName = "sf_verification"
	ToastCookieName  = "sf_toast"
)

// Value keys inside the cookies.
const (
	sessionIDKey           = "session_id"
	verifiedTimeKey        = "verified_time"
	rememberKey            = "remember"
	unverifiedSessionIDKey = "unverified_session_id"
	resetTargetKey         = "reset_target"
	onboardingEmailKey     = "onboarding_email"
	changeEmailUserKey     = "change_email_user"
)

// verifyCookieMaxAge bounds the pending-verification cookie; codes expire
// before it does, so a slightly generous window is fine.
const verifyCookieMaxAge = int(time.Hour / time.Second)

func init() {
	gob.Register(Toast{})
}

// Stores bundles the three cookie stores. All share the same key material but
// keep separate cookie names and lifetimes.
type Stores struct {
	Auth   *AuthStore
	Verify *VerifyStore
	Toast  *ToastStore
}

func NewStores(hashKey, blockKey []byte, secure bool) *Stores {
	return &Stores{
		Auth:   &AuthStore{base: newBase(hashKey, blockKey, secure)},
		Verify: &VerifyStore{base: newBase(hashKey, blockKey, secure)},
		Toast:  &ToastStore{base: newBase(hashKey, blockKey, secure)},
	}
}

func newBase(hashKey, blockKey []byte, secure bool) *sessions.CookieStore {
	var s *sessions.CookieStore
	if len(blockKey) > 0 {
		s = sessions.NewCookieStore(hashKey, blockKey)
	} else {
		s = sessions.NewCookieStore(hashKey)
	}
	s.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return s
}

// getString reads a string value from a session, tolerating absence.
func getString(sess *sessions.Session, key string) (string, bool) {
	v, ok := sess.Values[key].(string)
	return v, ok && v != ""
}

// ── auth session ─────────────────────────────────────────────────────────────

// AuthStore manages the authenticated-session cookie.
type AuthStore struct {
	base *sessions.CookieStore
}

// Get returns the auth session for the request. A tampered or stale cookie is
// treated as an empty session rather than an error; the user simply logs in
// again.
func (s *AuthStore) Get(r *http.Request) *AuthSession {
	sess, _ := s.base.Get(r, AuthCookieName)
	return &AuthSession{sess: sess}
}

type AuthSession struct {
	sess *sessions.Session
}

func (a *AuthSession) SessionID() (string, bool) {
	return getString(a.sess, sessionIDKey)
}

func (a *AuthSession) SetSessionID(id string) {
	a.sess.Values[sessionIDKey] = id
}

func (a *AuthSession) SetVerifiedTime(t time.Time) {
	a.sess.Values[verifiedTimeKey] = t.Unix()
}

// Save commits the cookie. When expires is non-nil the cookie persists until
// that instant ("remember me"); otherwise it is a browser-session cookie.
func (a *AuthSession) Save(r *http.Request, w http.ResponseWriter, expires *time.Time) error {
	if expires != nil {
		a.sess.Options.MaxAge = int(time.Until(*expires) / time.Second)
	} else {
		a.sess.Options.MaxAge = 0
	}
	return a.sess.Save(r, w)
}

// Destroy expires the cookie and clears its values.
func (a *AuthSession) Destroy(r *http.Request, w http.ResponseWriter) error {
	for k := range a.sess.Values {
		delete(a.sess.Values, k)
	}
	a.sess.Options.MaxAge = -1
	return a.sess.Save(r, w)
}

// ── pending-verification session ─────────────────────────────────────────────

// VerifyStore manages the transient pending-verification cookie that bridges
// the request step of a flow and its verified completion step.
type VerifyStore struct {
	base *sessions.CookieStore
}

func (s *VerifyStore) Get(r *http.Request) *VerifySession {
	sess, _ := s.base.Get(r, VerifyCookieName)
	return &VerifySession{sess: sess}
}

type VerifySession struct {
	sess *sessions.Session
}

func (v *VerifySession) Remember() bool {
	b, _ := v.sess.Values[rememberKey].(bool)
	return b
}

func (v *VerifySession) SetRemember(remember bool) {
	v.sess.Values[rememberKey] = remember
}

func (v *VerifySession) UnverifiedSessionID() (string, bool) {
	return getString(v.sess, unverifiedSessionIDKey)
}

func (v *VerifySession) SetUnverifiedSessionID(id string) {
	v.sess.Values[unverifiedSessionIDKey] = id
}

func (v *VerifySession) ResetTarget() (string, bool) {
	return getString(v.sess, resetTargetKey)
}

func (v *VerifySession) SetResetTarget(target string) {
	v.sess.Values[resetTargetKey] = target
}

func (v *VerifySession) OnboardingEmail() (string, bool) {
	return getString(v.sess, onboardingEmailKey)
}

func (v *VerifySession) SetOnboardingEmail(email string) {
	v.sess.Values[onboardingEmailKey] = email
}

func (v *VerifySession) ChangeEmailUserID() (string, bool) {
	return getString(v.sess, changeEmailUserKey)
}

func (v *VerifySession) SetChangeEmailUserID(userID string) {
	v.sess.Values[changeEmailUserKey] = userID
}

func (v *VerifySession) Save(r *http.Request, w http.ResponseWriter) error {
	v.sess.Options.MaxAge = verifyCookieMaxAge
	return v.sess.Save(r, w)
}

// Destroy expires the cookie and clears its values. Calling it on an already
// destroyed or absent cookie just re-sends the expired Set-Cookie header, so
// it is safe to call unconditionally on every verify outcome.
func (v *VerifySession) Destroy(r *http.Request, w http.ResponseWriter) error {
	for k := range v.sess.Values {
		delete(v.sess.Values, k)
	}
	v.sess.Options.MaxAge = -1
	return v.sess.Save(r, w)
}

// ── toast flash ──────────────────────────────────────────────────────────────

// Toast is a one-shot notification shown after a redirect.
type Toast struct {
	Type        string
	Title       string
	Description string
}

// ToastStore manages the flash cookie carrying toasts across redirects.
type ToastStore struct {
	base *sessions.CookieStore
}

// Add queues a toast for the next page load.
func (s *ToastStore) Add(r *http.Request, w http.ResponseWriter, t Toast) error {
	sess, _ := s.base.Get(r, ToastCookieName)
	sess.AddFlash(t)
	return sess.Save(r, w)
}

// Pop returns the oldest queued toast, clearing it from the cookie.
// Returns nil when no toast is pending.
func (s *ToastStore) Pop(r *http.Request, w http.ResponseWriter) (*Toast, error) {
	sess, _ := s.base.Get(r, ToastCookieName)
	flashes := sess.Flashes()
	if err := sess.Save(r, w); err != nil {
		return nil, err
	}
	for _, f := range flashes {
		if t, ok := f.(Toast); ok {
			return &t, nil
		}
	}
	return nil, nil
}
