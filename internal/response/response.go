package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned in the error body.
const (
	CodeValidation         = "validation_error"
	CodeBadRequest         = "bad_request"
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountDisabled    = "account_disabled"
	CodeEmailNotVerified   = "email_not_verified"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeUnauthenticated    = "unauthenticated"
	CodeNotFound           = "not_found"
	CodeRateLimited        = "rate_limited"
	CodeUnavailable        = "service_unavailable"
	CodeInternal           = "internal_error"
)

// ErrorBody is the error contract shared by every endpoint.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// JSON writes v with the given status. Responses are never cached since most
// of them carry credentials or per-user data.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes the error body.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// ValidationError writes a 422 with per-field messages.
func ValidationError(w http.ResponseWriter, message string, fields map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: ErrorDetail{
		Code:    CodeValidation,
		Message: message,
		Fields:  fields,
	}})
}

// Internal logs err and answers with a generic 500.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
	Error(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}
