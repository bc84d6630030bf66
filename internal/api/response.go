package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/garderoba/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

type errorBody struct {
	Error             string            `json:"error"`
	Kind              string            `json:"kind"`
	Fields            map[string]string `json:"fields,omitempty"`
	RemainingAttempts *int              `json:"remaining_attempts,omitempty"`
	RetryAfter        int               `json:"retry_after,omitempty"`
}

// writeError maps a domain error to its HTTP status. Anything unrecognised
// is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error(), Kind: model.ErrorKind(err)}
	status := http.StatusInternalServerError

	var (
		locked  *model.LockedOutError
		invalid *model.InvalidCredentialsError
		valid   *model.ValidationError
	)
	switch {
	case errors.As(err, &locked):
		status = http.StatusTooManyRequests
		body.RetryAfter = locked.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	case errors.As(err, &invalid):
		status = http.StatusUnauthorized
		body.RemainingAttempts = &invalid.RemainingAttempts
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrAccountBlocked), errors.Is(err, model.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrCapacityExceeded), errors.Is(err, model.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &valid):
		status = http.StatusBadRequest
		body.Fields = valid.Fields
	case errors.Is(err, model.ErrUnknownRole):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrCodeSpaceExhausted):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body = errorBody{Error: "internal error", Kind: "internal"}
	}
	jsonResponse(w, status, body)
}
