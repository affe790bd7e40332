package handler

import (
	"errors"
	"net/http"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
	"github.com/storefront-auth/internal/pkg/validate"
)

// SignupHandler handles the signup request and the post-verification
// onboarding form.
type SignupHandler struct {
	svc     auth.Service
	cookies *cookie.Stores
	web     *SessionWeb
}

func NewSignupHandler(svc auth.Service, cookies *cookie.Stores, web *SessionWeb) *SignupHandler {
	return &SignupHandler{svc: svc, cookies: cookies, web: web}
}

type signupRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirectTo"`
}

func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors := validate.Fields(&req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	redirectTo, err := h.svc.RequestSignup(r.Context(), req.Email, req.RedirectTo)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeFieldErrors(w, map[string][]string{
				"email": {"A user already exists with this email"},
			})
			return
		}
		httpError(w, err)
		return
	}
	http.Redirect(w, r, redirectTo.RequestURI(), http.StatusFound)
}

type onboardingRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=20,alphanum"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Remember        string `json:"remember"`
	RedirectTo      string `json:"redirectTo"`
}

// Onboarding creates the account for the email proven by the signup code. The
// email comes from the pending-verification cookie, never from the form.
func (h *SignupHandler) Onboarding(w http.ResponseWriter, r *http.Request) {
	verify := h.cookies.Verify.Get(r)
	email, ok := verify.OnboardingEmail()
	if !ok {
		_ = verify.Destroy(r, w)
		h.web.RedirectWithToast(w, r, "/signup", cookie.Toast{
			Type:        "error",
			Title:       "Verification required",
			Description: "Verify your email address before finishing signup.",
		})
		return
	}

	var req onboardingRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors := validate.Fields(&req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	sess, err := h.svc.CompleteOnboarding(r.Context(), email, req.Username, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeFieldErrors(w, map[string][]string{
				"username": {err.Error()},
			})
			return
		}
		httpError(w, err)
		return
	}
	_ = verify.Destroy(r, w)

	remember := req.Remember == "on" || req.Remember == "true"
	h.web.HandleNewSession(w, r, sess, remember, req.RedirectTo)
}
