package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"modelhost/internal/manager"
	"modelhost/internal/modelrt"
	"modelhost/internal/store"
	"modelhost/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case manager.IsModelNotLoaded(err):
		return http.StatusConflict
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsModelNotFound(err), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case manager.IsBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrClosed), modelrt.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeError writes err with its mapped status. modelID is echoed in the
// body when the failure concerns a particular model.
func writeError(w http.ResponseWriter, err error, modelID string) int {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("queue_full")
		w.Header().Set("Retry-After", "1")
	}
	body := types.ErrorResponse{Error: err.Error(), Code: status}
	if status == http.StatusConflict || status == http.StatusBadGateway || status == http.StatusNotFound {
		body.ModelID = modelID
	}
	writeJSON(w, status, body)
	return status
}

// decodeJSON reads a JSON body of at most maxBodyBytes into v. On failure
// it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
