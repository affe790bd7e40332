package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/storefront-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// SubmissionEnvelope reports a form submission outcome to API clients.
// FieldErrors are keyed by the submitted field name; FormErrors apply to the
// submission as a whole.
type SubmissionEnvelope struct {
	Status      string              `json:"status"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
	FormErrors  []string            `json:"form_errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeFieldErrors reports a rejected submission with per-field messages.
func writeFieldErrors(w http.ResponseWriter, fieldErrors map[string][]string) {
	writeJSON(w, http.StatusBadRequest, SubmissionEnvelope{Status: "error", FieldErrors: fieldErrors})
}

// writeFormError reports a rejected submission with a whole-form message.
func writeFormError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, SubmissionEnvelope{Status: "error", FormErrors: []string{msg}})
}

// httpError maps domain sentinel errors to HTTP statuses. Unknown errors
// become a 500 without leaking internals.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSendFailure):
		writeError(w, http.StatusInternalServerError, "could not send verification email")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeRequest fills dst from a JSON body or an URL-encoded/multipart form,
// depending on the request Content-Type. Form fields are matched via the
// struct's json tags.
func decodeRequest(r *http.Request, dst interface{}) error {
	if isJSON(r) {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	// Re-encode the flat form as JSON so both content types flow through the
	// same struct tags.
	flat := map[string]string{}
	for k := range r.Form {
		flat[k] = r.Form.Get(k)
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func isJSON(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/json"
}
