// Package auth implements the account flows built on top of verification
// codes: login, signup onboarding, password reset and email change.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/storefront-auth/internal/application/verification"
	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/smtp"
	"github.com/storefront-auth/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

const fieldPasswordHash = "password_hash"

// UserStore is the persistence the service needs for users.
type UserStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// SessionStore is the persistence the service needs for sessions.
type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteByUser(ctx context.Context, userID, keepSessionID string) error
}

// LoginResult carries the freshly created session. When the account's email
// was never confirmed the session must not be promoted to the auth cookie yet;
// RequiresVerification is set and RedirectTo points at the code-entry page.
type LoginResult struct {
	Session              *domain.Session
	User                 *domain.User
	RequiresVerification bool
	RedirectTo           *url.URL
}

type Service interface {
	Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	// GetSession returns the live session or domain.ErrInvalidSession when it
	// is gone or expired.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	CreateSession(ctx context.Context, userID string) (*domain.Session, error)

	RequestPasswordReset(ctx context.Context, usernameOrEmail, redirectTo string) (*url.URL, error)
	CompletePasswordReset(ctx context.Context, target, newPassword string) error

	RequestSignup(ctx context.Context, email, redirectTo string) (*url.URL, error)
	CompleteOnboarding(ctx context.Context, email, username, name, password string) (*domain.Session, error)
	ConfirmEmail(ctx context.Context, userID string) error

	RequestEmailChange(ctx context.Context, userID, newEmail, redirectTo string) (*url.URL, error)
	CompleteEmailChange(ctx context.Context, userID, newEmail string) error
}

type ServiceDeps struct {
	Users           UserStore
	Sessions        SessionStore
	Verifier        verification.Service
	Mailer          smtp.Mailer
	SessionTTL      time.Duration
	VerificationTTL time.Duration
}

type service struct {
	users           UserStore
	sessions        SessionStore
	verifier        verification.Service
	mailer          smtp.Mailer
	sessionTTL      time.Duration
	verificationTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:           deps.Users,
		sessions:        deps.Sessions,
		verifier:        deps.Verifier,
		mailer:          deps.Mailer,
		sessionTTL:      deps.SessionTTL,
		verificationTTL: deps.VerificationTTL,
	}
}

func (s *service) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, usernameOrEmail)
	if err != nil {
		u, err = s.users.GetByEmail(ctx, usernameOrEmail)
		if err != nil {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	sess, err := s.CreateSession(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	result := &LoginResult{Session: sess, User: u}

	if !u.EmailConfirmed {
		// The account exists but its address was never verified; park the
		// session until the user proves they own the mailbox.
		issued, err := s.verifier.Issue(ctx, domain.VerificationOnboarding, u.Email, "", s.verificationTTL)
		if err != nil {
			return nil, err
		}
		if err := s.sendCodeEmail(u.Email, "Confirm your email", issued); err != nil {
			return nil, err
		}
		result.RequiresVerification = true
		result.RedirectTo = issued.RedirectTo
	}
	return result, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrInvalidSession)
		}
		return nil, err
	}
	if sess.Expired(time.Now()) {
		return nil, fmt.Errorf("session %s expired: %w", sessionID, domain.ErrInvalidSession)
	}
	return sess, nil
}

func (s *service) CreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:      id.New(),
		UserID:         userID,
		ExpirationDate: now.Add(s.sessionTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, usernameOrEmail, redirectTo string) (*url.URL, error) {
	u, err := s.users.GetByEmail(ctx, usernameOrEmail)
	if err != nil {
		u, err = s.users.GetByUsername(ctx, usernameOrEmail)
		if err != nil {
			return nil, fmt.Errorf("no user with that username or email: %w", domain.ErrNotFound)
		}
	}

	// Target is the submitted identifier verbatim so the emailed link and a
	// later manual entry reconstruct the same record key.
	issued, err := s.verifier.Issue(ctx, domain.VerificationResetPassword, usernameOrEmail, redirectTo, s.verificationTTL)
	if err != nil {
		return nil, err
	}
	if err := s.sendCodeEmail(u.Email, "Reset your password", issued); err != nil {
		return nil, err
	}
	return issued.RedirectTo, nil
}

func (s *service) CompletePasswordReset(ctx context.Context, target, newPassword string) error {
	u, err := s.users.GetByEmail(ctx, target)
	if err != nil {
		u, err = s.users.GetByUsername(ctx, target)
		if err != nil {
			return fmt.Errorf("no user for reset target: %w", domain.ErrNotFound)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	// Whoever held the old password loses their sessions.
	return s.sessions.DeleteByUser(ctx, u.UserID, "")
}

func (s *service) RequestSignup(ctx context.Context, email, redirectTo string) (*url.URL, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("a user already exists with this email: %w", domain.ErrConflict)
	}
	issued, err := s.verifier.Issue(ctx, domain.VerificationOnboarding, email, redirectTo, s.verificationTTL)
	if err != nil {
		return nil, err
	}
	if err := s.sendCodeEmail(email, "Welcome! Confirm your email", issued); err != nil {
		return nil, err
	}
	return issued.RedirectTo, nil
}

func (s *service) CompleteOnboarding(ctx context.Context, email, username, name, password string) (*domain.Session, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("a user already exists with this email: %w", domain.ErrConflict)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     username,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		// The email was verified by the onboarding code before this point.
		EmailConfirmed: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	sess, err := s.CreateSession(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return sess, nil
}

func (s *service) ConfirmEmail(ctx context.Context, userID string) error {
	return s.users.Update(ctx, userID, map[string]interface{}{"email_confirmed": true})
}

func (s *service) RequestEmailChange(ctx context.Context, userID, newEmail, redirectTo string) (*url.URL, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return nil, fmt.Errorf("this email is already in use: %w", domain.ErrConflict)
	}
	issued, err := s.verifier.Issue(ctx, domain.VerificationChangeEmail, newEmail, redirectTo, s.verificationTTL)
	if err != nil {
		return nil, err
	}
	if err := s.sendCodeEmail(newEmail, "Confirm your new email", issued); err != nil {
		return nil, err
	}
	return issued.RedirectTo, nil
}

func (s *service) CompleteEmailChange(ctx context.Context, userID, newEmail string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	oldEmail := u.Email
	if err := s.users.Update(ctx, userID, map[string]interface{}{"email": newEmail}); err != nil {
		return err
	}
	// Heads-up to the old address; failure here must not undo the change.
	_ = s.mailer.SendEmail(oldEmail, "Your email was changed",
		fmt.Sprintf("The email on your account was changed to %s. If this wasn't you, contact support immediately.", newEmail))
	return nil
}

func (s *service) sendCodeEmail(to, subject string, issued *verification.Issued) error {
	body := fmt.Sprintf("Your verification code is %s.\n\nOr open this link:\n%s\n\nThe code expires at %s.",
		issued.Code, issued.VerifyURL.String(), issued.ExpiresAt.Format(time.RFC1123))
	if err := s.mailer.SendEmail(to, subject, body); err != nil {
		return fmt.Errorf("send to %s: %v: %w", to, err, domain.ErrSendFailure)
	}
	return nil
}
