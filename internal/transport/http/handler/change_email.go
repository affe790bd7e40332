package handler

import (
	"errors"
	"net/http"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
	"github.com/storefront-auth/internal/pkg/validate"
	"github.com/storefront-auth/internal/transport/http/middleware"
)

// ChangeEmailHandler starts an email change for the logged-in user.
type ChangeEmailHandler struct {
	svc     auth.Service
	cookies *cookie.Stores
}

func NewChangeEmailHandler(svc auth.Service, cookies *cookie.Stores) *ChangeEmailHandler {
	return &ChangeEmailHandler{svc: svc, cookies: cookies}
}

type changeEmailRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirectTo"`
}

func (h *ChangeEmailHandler) Request(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	var req changeEmailRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors := validate.Fields(&req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}

	redirectTo, err := h.svc.RequestEmailChange(r.Context(), sess.UserID, req.Email, req.RedirectTo)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeFieldErrors(w, map[string][]string{
				"email": {"This email is already in use"},
			})
			return
		}
		httpError(w, err)
		return
	}

	// The completion step needs to know whose email to swap; the user ID
	// rides the pending cookie, bound to this browser.
	verify := h.cookies.Verify.Get(r)
	verify.SetChangeEmailUserID(sess.UserID)
	if err := verify.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save verification state")
		return
	}
	http.Redirect(w, r, redirectTo.RequestURI(), http.StatusFound)
}
