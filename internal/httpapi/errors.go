package httpapi

import (
	"encoding/json"
	"net/http"

	"gridd/internal/directory"
	"gridd/internal/distributor"
	"gridd/internal/queue"
	"gridd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps scheduler errors onto HTTP status codes. Anything the
// mapping does not recognize is a 500.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case distributor.IsInvalidRequest(err), distributor.IsInvalidNode(err), queue.IsInvalidRequest(err):
		return http.StatusBadRequest
	case directory.IsSessionNotFound(err), distributor.IsNodeNotFound(err):
		return http.StatusNotFound
	case queue.IsTimeout(err), distributor.IsSessionNotCreated(err):
		return http.StatusRequestTimeout
	case queue.IsBacklogFull(err):
		return http.StatusTooManyRequests
	case distributor.IsClosed(err), queue.IsQueueClosed(err):
		return http.StatusServiceUnavailable
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}

// failureReason labels a failed session creation for metrics. Values stay
// low-cardinality.
func failureReason(err error) string {
	switch {
	case queue.IsTimeout(err):
		return "timeout"
	case queue.IsBacklogFull(err):
		return "backlog_full"
	case distributor.IsInvalidRequest(err), queue.IsInvalidRequest(err):
		return "invalid_request"
	case distributor.IsClosed(err), queue.IsQueueClosed(err):
		return "shutting_down"
	default:
		return "internal"
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
