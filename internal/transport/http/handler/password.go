package handler

import (
	"errors"
	"net/http"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
	"github.com/storefront-auth/internal/pkg/validate"
)

// PasswordHandler handles the forgot-password and reset-password steps.
type PasswordHandler struct {
	svc     auth.Service
	cookies *cookie.Stores
	web     *SessionWeb
}

func NewPasswordHandler(svc auth.Service, cookies *cookie.Stores, web *SessionWeb) *PasswordHandler {
	return &PasswordHandler{svc: svc, cookies: cookies, web: web}
}

type forgotPasswordRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
	RedirectTo      string `json:"redirectTo"`
}

// ForgotPassword looks up the account and emails a reset code. The submitted
// identifier rides along verbatim as the verification target.
func (h *PasswordHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors := validate.Fields(&req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	redirectTo, err := h.svc.RequestPasswordReset(r.Context(), req.UsernameOrEmail, req.RedirectTo)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeFieldErrors(w, map[string][]string{
				"usernameOrEmail": {"No user exists with this username or email"},
			})
		case errors.Is(err, domain.ErrSendFailure):
			// The code record is live; the user can retry the send without a
			// new code being minted needlessly.
			writeFormError(w, http.StatusInternalServerError, "could not send reset email, please try again")
		default:
			httpError(w, err)
		}
		return
	}
	http.Redirect(w, r, redirectTo.RequestURI(), http.StatusFound)
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ResetPassword sets the new password for the target proven by the reset
// code. The target comes from the pending-verification cookie, never from the
// request itself.
func (h *PasswordHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	verify := h.cookies.Verify.Get(r)
	target, ok := verify.ResetTarget()
	if !ok {
		_ = verify.Destroy(r, w)
		h.web.RedirectWithToast(w, r, "/login", cookie.Toast{
			Type:        "error",
			Title:       "Invalid reset",
			Description: "Start the password reset over and verify the emailed code first.",
		})
		return
	}

	var req resetPasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors := validate.Fields(&req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	if err := h.svc.CompletePasswordReset(r.Context(), target, req.Password); err != nil {
		httpError(w, err)
		return
	}
	_ = verify.Destroy(r, w)
	h.web.RedirectWithToast(w, r, "/login", cookie.Toast{
		Type:        "success",
		Title:       "Password reset",
		Description: "Your password has been changed. Log in with the new one.",
	})
}
