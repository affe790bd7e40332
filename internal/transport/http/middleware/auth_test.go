package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s := args.Get(0); s != nil {
		return s.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func testStores(t *testing.T) *cookie.Stores {
	t.Helper()
	return cookie.NewStores([]byte("0123456789abcdef0123456789abcdef"), nil, false)
}

// loginCookie builds a signed auth cookie carrying sessionID.
func loginCookie(t *testing.T, stores *cookie.Stores, sessionID string) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess := stores.Auth.Get(req)
	sess.SetSessionID(sessionID)
	require.NoError(t, sess.Save(req, rec, nil))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestAuth_NoCookie(t *testing.T) {
	stores := testStores(t)
	resolver := new(mockResolver)
	h := Auth(stores.Auth, resolver)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resolver.AssertNotCalled(t, "GetSession")
}

func TestAuth_InvalidSession(t *testing.T) {
	stores := testStores(t)
	resolver := new(mockResolver)
	resolver.On("GetSession", mock.Anything, "gone").Return(nil, domain.ErrInvalidSession)
	h := Auth(stores.Auth, resolver)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(loginCookie(t, stores, "gone"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resolver.AssertExpectations(t)
}

func TestAuth_ValidSessionInContext(t *testing.T) {
	stores := testStores(t)
	want := &domain.Session{
		SessionID:      "sess-1",
		UserID:         "user-1",
		ExpirationDate: time.Now().Add(time.Hour),
	}
	resolver := new(mockResolver)
	resolver.On("GetSession", mock.Anything, "sess-1").Return(want, nil)

	var got *domain.Session
	h := Auth(stores.Auth, resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	req.AddCookie(loginCookie(t, stores, "sess-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	resolver.AssertExpectations(t)
}
