// Package verification implements issuing, validating and consuming the
// single-use codes behind the password-reset, signup-onboarding and
// email-change flows.
package verification

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/pkg/otp"
)

// Query parameter names on the verify endpoint. These are a wire contract:
// emailed links are built from them and parsed back by the verify handler.
const (
	QueryParamCode       = "code"
	QueryParamType       = "type"
	QueryParamTarget     = "target"
	QueryParamRedirectTo = "redirectTo"
)

// VerifyPath is the endpoint all verification links point at.
const VerifyPath = "/verify"

// Issued is the result of minting a verification code.
type Issued struct {
	Code      string
	ExpiresAt time.Time
	// VerifyURL is the emailed link: verify endpoint + type, target,
	// optional redirectTo and the code itself.
	VerifyURL *url.URL
	// RedirectTo is VerifyURL without the code — where the requesting flow
	// sends the user so they can type the code in manually.
	RedirectTo *url.URL
}

// Store is the persistence the service needs for verification records.
// Upsert must atomically supersede any prior record for the same
// (target, type) pair.
type Store interface {
	Upsert(ctx context.Context, v *domain.VerificationRecord) error
	Get(ctx context.Context, target string, vt domain.VerificationType) (*domain.VerificationRecord, error)
	Delete(ctx context.Context, target string, vt domain.VerificationType) error
}

type Service interface {
	// Issue mints a new code for (vt, target), superseding any live one,
	// and returns the code together with the URLs for the email and the
	// post-submit redirect.
	Issue(ctx context.Context, vt domain.VerificationType, target, redirectTo string, period time.Duration) (*Issued, error)
	// IsCodeValid checks a presented code against the live record. It does
	// not consume the record; callers consume after their own side effect
	// succeeded. Returns domain.ErrInvalidCode on any mismatch.
	IsCodeValid(ctx context.Context, code string, vt domain.VerificationType, target string) error
	// Consume deletes the record for (vt, target). Exactly-once semantics:
	// after Consume the code no longer validates.
	Consume(ctx context.Context, vt domain.VerificationType, target string) error
}

type ServiceDeps struct {
	Store   Store
	BaseURL *url.URL
}

type service struct {
	store   Store
	baseURL *url.URL
}

func NewService(deps ServiceDeps) Service {
	return &service{store: deps.Store, baseURL: deps.BaseURL}
}

func (s *service) Issue(ctx context.Context, vt domain.VerificationType, target, redirectTo string, period time.Duration) (*Issued, error) {
	if _, err := domain.ParseVerificationType(string(vt)); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, fmt.Errorf("target required: %w", domain.ErrBadRequest)
	}
	if period <= 0 {
		return nil, fmt.Errorf("validity period must be positive: %w", domain.ErrBadRequest)
	}

	code, err := otp.Generate(domain.CodeLength)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(period)
	rec := &domain.VerificationRecord{
		Target:    target,
		Type:      vt,
		Code:      code,
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: now,
	}
	// Single upsert keyed on (target, type): the previous live record is
	// superseded with no window where two coexist.
	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}

	redirect := s.verifyURL(vt, target, redirectTo)
	verify := s.verifyURL(vt, target, redirectTo)
	q := verify.Query()
	q.Set(QueryParamCode, code)
	verify.RawQuery = q.Encode()

	return &Issued{
		Code:       code,
		ExpiresAt:  expiresAt,
		VerifyURL:  verify,
		RedirectTo: redirect,
	}, nil
}

func (s *service) IsCodeValid(ctx context.Context, code string, vt domain.VerificationType, target string) error {
	rec, err := s.store.Get(ctx, target, vt)
	if err != nil {
		return fmt.Errorf("no live code for target: %w", domain.ErrInvalidCode)
	}
	if rec.Expired(time.Now()) {
		return fmt.Errorf("code expired: %w", domain.ErrInvalidCode)
	}
	if rec.Code != code {
		return fmt.Errorf("code mismatch: %w", domain.ErrInvalidCode)
	}
	return nil
}

func (s *service) Consume(ctx context.Context, vt domain.VerificationType, target string) error {
	return s.store.Delete(ctx, target, vt)
}

func (s *service) verifyURL(vt domain.VerificationType, target, redirectTo string) *url.URL {
	u := *s.baseURL
	u.Path = VerifyPath
	q := url.Values{}
	q.Set(QueryParamType, string(vt))
	q.Set(QueryParamTarget, target)
	if redirectTo != "" {
		q.Set(QueryParamRedirectTo, redirectTo)
	}
	u.RawQuery = q.Encode()
	return &u
}
