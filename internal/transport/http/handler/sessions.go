package handler

import (
	"net/http"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/infrastructure/cookie"
	"github.com/storefront-auth/internal/pkg/validate"
)

// SessionsHandler handles login and logout.
type SessionsHandler struct {
	svc     auth.Service
	cookies *cookie.Stores
	web     *SessionWeb
}

func NewSessionsHandler(svc auth.Service, cookies *cookie.Stores, web *SessionWeb) *SessionsHandler {
	return &SessionsHandler{svc: svc, cookies: cookies, web: web}
}

type loginRequest struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Remember   string `json:"remember"`
	RedirectTo string `json:"redirectTo"`
}

func (h *SessionsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fieldErrors := validate.Fields(&req); fieldErrors != nil {
		writeFieldErrors(w, fieldErrors)
		return
	}
	remember := req.Remember == "on" || req.Remember == "true"

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}

	if result.RequiresVerification {
		// Park the session in the pending cookie; it only reaches the auth
		// cookie after the emailed code checks out.
		verify := h.cookies.Verify.Get(r)
		verify.SetUnverifiedSessionID(result.Session.SessionID)
		verify.SetRemember(remember)
		if err := verify.Save(r, w); err != nil {
			writeError(w, http.StatusInternalServerError, "could not save verification state")
			return
		}
		http.Redirect(w, r, result.RedirectTo.RequestURI(), http.StatusFound)
		return
	}

	h.web.HandleNewSession(w, r, result.Session, remember, req.RedirectTo)
}

func (h *SessionsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authSess := h.cookies.Auth.Get(r)
	if sessionID, ok := authSess.SessionID(); ok {
		// Best effort; an already-deleted record should not block logout.
		_ = h.svc.Logout(r.Context(), sessionID)
	}
	_ = authSess.Destroy(r, w)
	http.Redirect(w, r, "/", http.StatusFound)
}
