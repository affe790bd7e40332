package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/application/verification"
	"github.com/storefront-auth/internal/config"
	"github.com/storefront-auth/internal/infrastructure/cookie"
	"github.com/storefront-auth/internal/infrastructure/smtp"
	"github.com/storefront-auth/internal/transport/http/handler"
	appmiddleware "github.com/storefront-auth/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Users         auth.UserStore
	Sessions      auth.SessionStore
	Verifications verification.Store
	Mailer        smtp.Mailer
	Cookies       *cookie.Stores
	BaseURL       *url.URL
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// 5 requests/second, burst of 10 — applied to code-minting and
	// code-guessing endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	verifierSvc := verification.NewService(verification.ServiceDeps{
		Store:   deps.Verifications,
		BaseURL: deps.BaseURL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:           deps.Users,
		Sessions:        deps.Sessions,
		Verifier:        verifierSvc,
		Mailer:          deps.Mailer,
		SessionTTL:      time.Duration(cfg.SessionExpiryDays) * 24 * time.Hour,
		VerificationTTL: time.Duration(cfg.VerificationExpiryMin) * time.Minute,
	})

	web := handler.NewSessionWeb(deps.Cookies, authSvc)
	healthH := handler.NewHealthHandler()
	sessionsH := handler.NewSessionsHandler(authSvc, deps.Cookies, web)
	verifyH := handler.NewVerifyHandler(authSvc, verifierSvc, deps.Cookies, web)
	passwordH := handler.NewPasswordHandler(authSvc, deps.Cookies, web)
	signupH := handler.NewSignupHandler(authSvc, deps.Cookies, web)
	changeEmailH := handler.NewChangeEmailHandler(authSvc, deps.Cookies)

	// ── Public routes ────────────────────────────────────────────────────────
	r.Get("/health-check/{action}", healthH.Ping)

	r.With(sensitiveRL.Limit).Post("/login", sessionsH.Login)
	r.Post("/logout", sessionsH.Logout)

	r.With(sensitiveRL.Limit).Get(verification.VerifyPath, verifyH.Verify)
	r.With(sensitiveRL.Limit).Post(verification.VerifyPath, verifyH.Verify)

	r.With(sensitiveRL.Limit).Post("/forgot-password", passwordH.ForgotPassword)
	r.Post("/reset-password", passwordH.ResetPassword)

	r.With(sensitiveRL.Limit).Post("/signup", signupH.Signup)
	r.Post("/onboarding", signupH.Onboarding)

	// ── Authenticated routes ─────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Auth(deps.Cookies.Auth, authSvc))

		r.Post("/settings/change-email", changeEmailH.Request)
	})

	return r
}
