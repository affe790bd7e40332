package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/application/verification"
	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Login(ctx context.Context, usernameOrEmail, password string) (*auth.LoginResult, error) {
	args := m.Called(ctx, usernameOrEmail, password)
	if r := args.Get(0); r != nil {
		return r.(*auth.LoginResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockAuthService) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s := args.Get(0); s != nil {
		return s.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) RequestPasswordReset(ctx context.Context, usernameOrEmail, redirectTo string) (*url.URL, error) {
	args := m.Called(ctx, usernameOrEmail, redirectTo)
	if u := args.Get(0); u != nil {
		return u.(*url.URL), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) CompletePasswordReset(ctx context.Context, target, newPassword string) error {
	return m.Called(ctx, target, newPassword).Error(0)
}

func (m *mockAuthService) RequestSignup(ctx context.Context, email, redirectTo string) (*url.URL, error) {
	args := m.Called(ctx, email, redirectTo)
	if u := args.Get(0); u != nil {
		return u.(*url.URL), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) CompleteOnboarding(ctx context.Context, email, username, name, password string) (*domain.Session, error) {
	args := m.Called(ctx, email, username, name, password)
	if s := args.Get(0); s != nil {
		return s.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) ConfirmEmail(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockAuthService) RequestEmailChange(ctx context.Context, userID, newEmail, redirectTo string) (*url.URL, error) {
	args := m.Called(ctx, userID, newEmail, redirectTo)
	if u := args.Get(0); u != nil {
		return u.(*url.URL), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) CompleteEmailChange(ctx context.Context, userID, newEmail string) error {
	return m.Called(ctx, userID, newEmail).Error(0)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Issue(ctx context.Context, vt domain.VerificationType, target, redirectTo string, period time.Duration) (*verification.Issued, error) {
	args := m.Called(ctx, vt, target, redirectTo, period)
	if i := args.Get(0); i != nil {
		return i.(*verification.Issued), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVerifier) IsCodeValid(ctx context.Context, code string, vt domain.VerificationType, target string) error {
	return m.Called(ctx, code, vt, target).Error(0)
}

func (m *mockVerifier) Consume(ctx context.Context, vt domain.VerificationType, target string) error {
	return m.Called(ctx, vt, target).Error(0)
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

func timeInAnHour() time.Time {
	return time.Now().Add(time.Hour)
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
