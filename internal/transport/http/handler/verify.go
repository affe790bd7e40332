package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/storefront-auth/internal/application/auth"
	"github.com/storefront-auth/internal/application/verification"
	"github.com/storefront-auth/internal/domain"
	"github.com/storefront-auth/internal/infrastructure/cookie"
)

// VerifyHandler is the single endpoint all verification codes funnel through,
// whether pasted into the form or carried by the emailed link.
type VerifyHandler struct {
	svc      auth.Service
	verifier verification.Service
	cookies  *cookie.Stores
	web      *SessionWeb
}

func NewVerifyHandler(svc auth.Service, verifier verification.Service, cookies *cookie.Stores, web *SessionWeb) *VerifyHandler {
	return &VerifyHandler{svc: svc, verifier: verifier, cookies: cookies, web: web}
}

// param reads a submission value, letting a posted form field override the
// query string so the emailed link's params survive into the form post.
func param(r *http.Request, key string) string {
	if v := r.PostFormValue(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}

// Verify validates the submitted code and dispatches on the verification
// type. The code is consumed only after the type's own action succeeded.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	code := param(r, verification.QueryParamCode)
	rawType := param(r, verification.QueryParamType)
	target := param(r, verification.QueryParamTarget)
	redirectTo := param(r, verification.QueryParamRedirectTo)

	fieldErrors := map[string][]string{}
	if len(code) != domain.CodeLength {
		fieldErrors[verification.QueryParamCode] = append(fieldErrors[verification.QueryParamCode],
			fmt.Sprintf("code must be %d digits", domain.CodeLength))
	}
	vt, err := domain.ParseVerificationType(rawType)
	if err != nil {
		fieldErrors[verification.QueryParamType] = append(fieldErrors[verification.QueryParamType], "unknown verification type")
	}
	if target == "" {
		fieldErrors[verification.QueryParamTarget] = append(fieldErrors[verification.QueryParamTarget], "target is required")
	}
	if len(fieldErrors) > 0 {
		writeFieldErrors(w, fieldErrors)
		return
	}

	if err := h.verifier.IsCodeValid(r.Context(), code, vt, target); err != nil {
		writeFieldErrors(w, map[string][]string{
			verification.QueryParamCode: {"Invalid code"},
		})
		return
	}

	switch vt {
	case domain.VerificationResetPassword:
		h.verifiedResetPassword(w, r, vt, target)
	case domain.VerificationOnboarding:
		h.verifiedOnboarding(w, r, vt, target, redirectTo)
	case domain.VerificationChangeEmail:
		h.verifiedChangeEmail(w, r, vt, target, redirectTo)
	default:
		// ParseVerificationType makes this unreachable; a hit means the enum
		// grew without a dispatch arm.
		slog.Error("verification type with no dispatch arm", "type", vt)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// verifiedResetPassword stashes the proven target for the reset form. The
// target never rides a query parameter past this point.
func (h *VerifyHandler) verifiedResetPassword(w http.ResponseWriter, r *http.Request, vt domain.VerificationType, target string) {
	verify := h.cookies.Verify.Get(r)
	verify.SetResetTarget(target)
	if err := verify.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save verification state")
		return
	}
	if err := h.verifier.Consume(r.Context(), vt, target); err != nil {
		httpError(w, err)
		return
	}
	http.Redirect(w, r, "/reset-password", http.StatusFound)
}

// verifiedOnboarding covers two cases sharing one code type: confirming an
// existing account's email after a blocked login, and a fresh signup moving on
// to the onboarding form.
func (h *VerifyHandler) verifiedOnboarding(w http.ResponseWriter, r *http.Request, vt domain.VerificationType, target, redirectTo string) {
	verify := h.cookies.Verify.Get(r)
	if sessionID, ok := verify.UnverifiedSessionID(); ok {
		sess, err := h.svc.GetSession(r.Context(), sessionID)
		if err != nil {
			// Parked session vanished; the promotion path owns the cleanup
			// and the login redirect. The unused code stays live.
			h.web.HandleVerification(w, r, redirectTo)
			return
		}
		if err := h.svc.ConfirmEmail(r.Context(), sess.UserID); err != nil {
			httpError(w, err)
			return
		}
		if err := h.verifier.Consume(r.Context(), vt, target); err != nil {
			httpError(w, err)
			return
		}
		h.web.HandleVerification(w, r, redirectTo)
		return
	}

	verify.SetOnboardingEmail(target)
	if err := verify.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save verification state")
		return
	}
	if err := h.verifier.Consume(r.Context(), vt, target); err != nil {
		httpError(w, err)
		return
	}
	http.Redirect(w, r, "/onboarding", http.StatusFound)
}

func (h *VerifyHandler) verifiedChangeEmail(w http.ResponseWriter, r *http.Request, vt domain.VerificationType, target, redirectTo string) {
	verify := h.cookies.Verify.Get(r)
	userID, ok := verify.ChangeEmailUserID()
	if !ok {
		_ = verify.Destroy(r, w)
		h.web.RedirectWithToast(w, r, "/login", cookie.Toast{
			Type:        "error",
			Title:       "Something went wrong",
			Description: "You must submit the code on the same device that requested the email change.",
		})
		return
	}

	if err := h.svc.CompleteEmailChange(r.Context(), userID, target); err != nil {
		httpError(w, err)
		return
	}
	if err := h.verifier.Consume(r.Context(), vt, target); err != nil {
		httpError(w, err)
		return
	}
	_ = verify.Destroy(r, w)
	if redirectTo == "" {
		redirectTo = "/settings"
	}
	h.web.RedirectWithToast(w, r, redirectTo, cookie.Toast{
		Type:        "success",
		Title:       "Email changed",
		Description: fmt.Sprintf("Your email has been changed to %s.", target),
	})
}
