package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
)

func newVerifyHandler(t *testing.T) (*VerifyHandler, *mockAuthService, *mockVerifier, *cookie.Stores) {
	t.Helper()
	stores := newTestStores(t)
	svc := new(mockAuthService)
	verifier := new(mockVerifier)
	web := NewSessionWeb(stores, svc)
	return NewVerifyHandler(svc, verifier, stores, web), svc, verifier, stores
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeSubmission(t *testing.T, rec *httptest.ResponseRecorder) SubmissionEnvelope {
	t.Helper()
	var env SubmissionEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestVerify_FieldErrors(t *testing.T) {
	h, _, verifier, _ := newVerifyHandler(t)

	req := postForm("/verify", url.Values{
		"code": {"12"},
		"type": {"magic-link"},
	})
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeSubmission(t, rec)
	assert.Contains(t, env.FieldErrors, "code")
	assert.Contains(t, env.FieldErrors, "type")
	assert.Contains(t, env.FieldErrors, "target")
	verifier.AssertNotCalled(t, "IsCodeValid")
}

func TestVerify_InvalidCode(t *testing.T) {
	h, _, verifier, _ := newVerifyHandler(t)
	verifier.On("IsCodeValid", mock.Anything, "123456", domain.VerificationResetPassword, "zizi@example.com").
		Return(domain.ErrInvalidCode)

	req := postForm("/verify", url.Values{
		"code":   {"123456"},
		"type":   {"reset-password"},
		"target": {"zizi@example.com"},
	})
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeSubmission(t, rec)
	assert.Equal(t, []string{"Invalid code"}, env.FieldErrors["code"])
	verifier.AssertNotCalled(t, "Consume")
}

func TestVerify_ParamsFromEmailedLink(t *testing.T) {
	// The emailed link carries everything in the query string with no form body.
	h, _, verifier, _ := newVerifyHandler(t)
	verifier.On("IsCodeValid", mock.Anything, "654321", domain.VerificationResetPassword, "zizi").Return(nil)
	verifier.On("Consume", mock.Anything, domain.VerificationResetPassword, "zizi").Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/verify?code=654321&type=reset-password&target=zizi", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/reset-password", rec.Header().Get("Location"))
	verifier.AssertExpectations(t)
}

func TestVerify_ResetPasswordStashesTarget(t *testing.T) {
	h, _, verifier, stores := newVerifyHandler(t)
	verifier.On("IsCodeValid", mock.Anything, "123456", domain.VerificationResetPassword, "zizi@example.com").Return(nil)
	verifier.On("Consume", mock.Anything, domain.VerificationResetPassword, "zizi@example.com").Return(nil)

	req := postForm("/verify", url.Values{
		"code":   {"123456"},
		"type":   {"reset-password"},
		"target": {"zizi@example.com"},
	})
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/reset-password", rec.Header().Get("Location"))

	// The stashed target is readable on a follow-up request carrying the cookie.
	set := cookieByName(t, rec, cookie.VerifyCookieName)
	require.NotNil(t, set)
	next := httptest.NewRequest(http.MethodPost, "/reset-password", nil)
	next.AddCookie(set)
	target, ok := stores.Verify.Get(next).ResetTarget()
	require.True(t, ok)
	assert.Equal(t, "zizi@example.com", target)
	verifier.AssertExpectations(t)
}

func TestVerify_FreshSignupGoesToOnboarding(t *testing.T) {
	h, _, verifier, _ := newVerifyHandler(t)
	verifier.On("IsCodeValid", mock.Anything, "123456", domain.VerificationOnboarding, "new@example.com").Return(nil)
	verifier.On("Consume", mock.Anything, domain.VerificationOnboarding, "new@example.com").Return(nil)

	req := postForm("/verify", url.Values{
		"code":   {"123456"},
		"type":   {"onboarding"},
		"target": {"new@example.com"},
	})
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/onboarding", rec.Header().Get("Location"))
	verifier.AssertExpectations(t)
}

func TestVerify_OnboardingConfirmsParkedSession(t *testing.T) {
	h, svc, verifier, stores := newVerifyHandler(t)
	live := &domain.Session{SessionID: "s1", UserID: "u1", ExpirationDate: timeInAnHour()}
	svc.On("GetSession", mock.Anything, "s1").Return(live, nil)
	svc.On("ConfirmEmail", mock.Anything, "u1").Return(nil)
	verifier.On("IsCodeValid", mock.Anything, "123456", domain.VerificationOnboarding, "old@example.com").Return(nil)
	verifier.On("Consume", mock.Anything, domain.VerificationOnboarding, "old@example.com").Return(nil)

	req := postForm("/verify?redirectTo=%2Fcart", url.Values{
		"code":   {"123456"},
		"type":   {"onboarding"},
		"target": {"old@example.com"},
	})
	req.AddCookie(pendingCookie(t, stores, "s1", true))
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get("Location"))

	auth := cookieByName(t, rec, cookie.AuthCookieName)
	require.NotNil(t, auth)
	assert.Positive(t, auth.MaxAge)
	svc.AssertExpectations(t)
	verifier.AssertExpectations(t)
}

func TestVerify_ChangeEmailWithoutOriginCookie(t *testing.T) {
	h, svc, verifier, _ := newVerifyHandler(t)
	verifier.On("IsCodeValid", mock.Anything, "123456", domain.VerificationChangeEmail, "next@example.com").Return(nil)

	req := postForm("/verify", url.Values{
		"code":   {"123456"},
		"type":   {"change-email"},
		"target": {"next@example.com"},
	})
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	svc.AssertNotCalled(t, "CompleteEmailChange")
	verifier.AssertNotCalled(t, "Consume")
}

func TestVerify_ChangeEmailCompletes(t *testing.T) {
	h, svc, verifier, stores := newVerifyHandler(t)
	svc.On("CompleteEmailChange", mock.Anything, "u1", "next@example.com").Return(nil)
	verifier.On("IsCodeValid", mock.Anything, "123456", domain.VerificationChangeEmail, "next@example.com").Return(nil)
	verifier.On("Consume", mock.Anything, domain.VerificationChangeEmail, "next@example.com").Return(nil)

	// The request step stashed the user ID in the pending cookie.
	seed := httptest.NewRequest(http.MethodGet, "/", nil)
	seedRec := httptest.NewRecorder()
	pending := stores.Verify.Get(seed)
	pending.SetChangeEmailUserID("u1")
	require.NoError(t, pending.Save(seed, seedRec))

	req := postForm("/verify", url.Values{
		"code":   {"123456"},
		"type":   {"change-email"},
		"target": {"next@example.com"},
	})
	req.AddCookie(seedRec.Result().Cookies()[0])
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/settings", rec.Header().Get("Location"))

	verify := cookieByName(t, rec, cookie.VerifyCookieName)
	require.NotNil(t, verify)
	assert.Negative(t, verify.MaxAge)
	svc.AssertExpectations(t)
	verifier.AssertExpectations(t)
}
