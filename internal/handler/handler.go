package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pulse-analytics/pulse/internal/response"
	"github.com/pulse-analytics/pulse/internal/service"
	"github.com/pulse-analytics/pulse/internal/validation"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst and validates it. On failure the
// response has been written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst any) bool {
	return readJSON(w, r, dst) && validate(w, v, dst)
}

// readJSON is decodeJSON without validation, for handlers that normalize
// fields first.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, http.StatusRequestEntityTooLarge, response.CodeBadRequest, "Request body too large")
			return false
		}
		response.ValidationError(w, "Request body must be valid JSON", nil)
		return false
	}

	return true
}

func validate(w http.ResponseWriter, v *validation.Validator, dst any) bool {
	err := v.Struct(dst)
	if err == nil {
		return true
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field] = fe.Message
		}
		response.ValidationError(w, verrs.Error(), fields)
		return false
	}

	slog.Error("request validation failed", "error", err)
	response.ValidationError(w, "Invalid request", nil)
	return false
}

// writeError maps errors shared by every endpoint. Anything unknown is an
// internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationError(w, verr.Message, map[string]string{verr.Field: verr.Message})
	case errors.Is(err, service.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Not found")
	case errors.Is(err, service.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		response.Error(w, http.StatusUnauthorized, response.CodeUnauthenticated, "Could not validate credentials")
	default:
		response.Internal(w, r, err)
	}
}

// decodeBody decodes without validation, for endpoints that answer the same
// way whatever they receive.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
