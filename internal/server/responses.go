package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"studentsphere/internal/chat"
	"studentsphere/internal/classchat"
	"studentsphere/internal/content"
	"studentsphere/internal/directory"
	"studentsphere/pkg/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// statusFor maps service errors onto HTTP status codes. Every portal
// error is recoverable and surfaced to the user as-is.
func statusFor(err error) int {
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, directory.ErrUsernameTaken),
		errors.Is(err, directory.ErrDashboardIDTaken),
		errors.Is(err, directory.ErrTeacherUnknown),
		errors.Is(err, directory.ErrUnlinkConfirmRequired):
		return http.StatusConflict
	case errors.Is(err, directory.ErrTeacherNotFound),
		errors.Is(err, directory.ErrStudentNotFound),
		errors.Is(err, directory.ErrUserNotFound),
		errors.Is(err, content.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrContentUnavailable):
		return http.StatusGone
	case errors.Is(err, chat.ErrMediaTooLarge),
		errors.Is(err, classchat.ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, directory.ErrUsernameRequired),
		errors.Is(err, directory.ErrUnknownRole),
		errors.Is(err, directory.ErrBadDashboardID),
		errors.Is(err, directory.ErrBadTeacherID),
		errors.Is(err, directory.ErrTeacherLinkRequired),
		errors.Is(err, directory.ErrSameDashboardID),
		errors.Is(err, content.ErrPayloadRequired),
		errors.Is(err, content.ErrBadPayload),
		errors.Is(err, chat.ErrReceiverRequired),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, classchat.ErrEmptyMessage),
		errors.Is(err, classchat.ErrNotLinked),
		errors.Is(err, classchat.ErrTeacherWithoutDashboard):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status, hiding internal details.
func fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
