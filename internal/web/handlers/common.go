package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/registration"
	"github.com/kozaktomas/face-registry/internal/store"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusForError maps workflow errors to HTTP status codes.
func statusForError(err error) int {
	var validation *registration.ValidationError
	var submitErr *store.SubmitError

	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &submitErr):
		return http.StatusBadGateway
	case errors.Is(err, registration.ErrSurfaceClosed):
		return http.StatusGone
	case errors.Is(err, registration.ErrSourceUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, registration.ErrSubmitInFlight),
		errors.Is(err, registration.ErrResultDiscarded),
		errors.Is(err, camera.ErrSessionActive),
		errors.Is(err, camera.ErrNotStreaming),
		errors.Is(err, camera.ErrDeviceBusy):
		return http.StatusConflict
	case errors.Is(err, camera.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, imaging.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrEmptyFile),
		errors.Is(err, imaging.ErrUnsupportedFormat),
		errors.Is(err, imaging.ErrInvalidDataURL),
		errors.Is(err, errInvalidImageBody),
		errors.Is(err, errMultipartForm),
		errors.Is(err, errFileRequired):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
