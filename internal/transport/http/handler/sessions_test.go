package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
)

func newSessionsHandler(t *testing.T) (*SessionsHandler, *mockAuthService, *cookie.Stores) {
	t.Helper()
	stores := newTestStores(t)
	svc := new(mockAuthService)
	web := NewSessionWeb(stores, svc)
	return NewSessionsHandler(svc, stores, web), svc, stores
}

func TestLogin_BadCredentials(t *testing.T) {
	h, svc, _ := newSessionsHandler(t)
	svc.On("Login", mock.Anything, "zizi", "nope").Return(nil, domain.ErrUnauthorized)

	req := postForm("/login", url.Values{
		"username": {"zizi"},
		"password": {"nope"},
	})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertExpectations(t)
}

func TestLogin_MissingFields(t *testing.T) {
	h, svc, _ := newSessionsHandler(t)

	req := postForm("/login", url.Values{"username": {"zizi"}})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeSubmission(t, rec)
	assert.Contains(t, env.FieldErrors, "Password")
	svc.AssertNotCalled(t, "Login")
}

func TestLogin_ConfirmedUserGetsAuthCookie(t *testing.T) {
	h, svc, _ := newSessionsHandler(t)
	sess := &domain.Session{SessionID: "s1", UserID: "u1", ExpirationDate: timeInAnHour()}
	svc.On("Login", mock.Anything, "zizi", "hunter22").
		Return(&auth.LoginResult{Session: sess, User: &domain.User{UserID: "u1"}}, nil)

	req := postForm("/login", url.Values{
		"username":   {"zizi"},
		"password":   {"hunter22"},
		"remember":   {"on"},
		"redirectTo": {"/cart"},
	})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get("Location"))
	authCookie := cookieByName(t, rec, cookie.AuthCookieName)
	require.NotNil(t, authCookie)
	assert.Positive(t, authCookie.MaxAge)
}

func TestLogin_UnconfirmedUserIsParkedNotPromoted(t *testing.T) {
	h, svc, stores := newSessionsHandler(t)
	sess := &domain.Session{SessionID: "s1", UserID: "u1", ExpirationDate: timeInAnHour()}
	svc.On("Login", mock.Anything, "zizi", "hunter22").Return(&auth.LoginResult{
		Session:              sess,
		User:                 &domain.User{UserID: "u1"},
		RequiresVerification: true,
		RedirectTo:           mustURL("http://shop.example/verify?type=onboarding&target=zizi%40example.com"),
	}, nil)

	req := postForm("/login", url.Values{
		"username": {"zizi"},
		"password": {"hunter22"},
		"remember": {"on"},
	})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/verify?type=onboarding&target=zizi%40example.com", rec.Header().Get("Location"))

	// No auth cookie yet; the session is parked in the pending cookie.
	assert.Nil(t, cookieByName(t, rec, cookie.AuthCookieName))
	set := cookieByName(t, rec, cookie.VerifyCookieName)
	require.NotNil(t, set)

	next := httptest.NewRequest(http.MethodPost, "/verify", nil)
	next.AddCookie(set)
	pending := stores.Verify.Get(next)
	parkedID, ok := pending.UnverifiedSessionID()
	require.True(t, ok)
	assert.Equal(t, "s1", parkedID)
	assert.True(t, pending.Remember())
}

func TestLogout_DestroysCookieAndSession(t *testing.T) {
	h, svc, stores := newSessionsHandler(t)
	svc.On("Logout", mock.Anything, "s1").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(loginCookie(t, stores, "s1"))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	authCookie := cookieByName(t, rec, cookie.AuthCookieName)
	require.NotNil(t, authCookie)
	assert.Negative(t, authCookie.MaxAge)
	svc.AssertExpectations(t)
}

func TestLogout_WithoutCookieStillRedirects(t *testing.T) {
	h, svc, _ := newSessionsHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	svc.AssertNotCalled(t, "Logout")
}
