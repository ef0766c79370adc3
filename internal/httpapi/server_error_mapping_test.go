package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"gridd/internal/directory"
	"gridd/internal/distributor"
	"gridd/internal/queue"
	"gridd/pkg/types"
)

type stubHTTPError struct {
	msg  string
	code int
}

func (e stubHTTPError) Error() string   { return e.msg }
func (e stubHTTPError) StatusCode() int { return e.code }

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid request", distributor.ErrInvalidRequest("no profiles"), http.StatusBadRequest},
		{"invalid node", distributor.ErrInvalidNode("no slots"), http.StatusBadRequest},
		{"queue invalid", queue.ErrInvalidRequest("empty id"), http.StatusBadRequest},
		{"session not found", directory.ErrSessionNotFound("x"), http.StatusNotFound},
		{"node not found", distributor.ErrNodeNotFound("n"), http.StatusNotFound},
		{"queue timeout", queue.ErrRequestTimeout(time.Second), http.StatusRequestTimeout},
		{"not created", distributor.ErrSessionNotCreated("no slot"), http.StatusRequestTimeout},
		{"backlog full", queue.ErrBacklogFull(10), http.StatusTooManyRequests},
		{"closed", distributor.ErrClosed(), http.StatusServiceUnavailable},
		{"queue closed", queue.ErrQueueClosed(), http.StatusServiceUnavailable},
		{"http error", stubHTTPError{msg: "gone", code: http.StatusGone}, http.StatusGone},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Errorf("%s: statusForError=%d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{queue.ErrRequestTimeout(time.Second), "timeout"},
		{queue.ErrBacklogFull(1), "backlog_full"},
		{distributor.ErrInvalidRequest("x"), "invalid_request"},
		{distributor.ErrClosed(), "shutting_down"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := failureReason(tc.err); got != tc.want {
			t.Errorf("failureReason(%v)=%q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestCreateSession_TimeoutMapsTo408(t *testing.T) {
	svc := &mockService{newErr: queue.ErrRequestTimeout(50 * time.Millisecond)}
	r := NewMux(svc)
	w := postJSON(t, r, "/session", `{"capabilities":[{"browserName":"firefox"}]}`)
	if w.Code != http.StatusRequestTimeout {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateSession_BacklogFullMapsTo429(t *testing.T) {
	svc := &mockService{newErr: queue.ErrBacklogFull(100)}
	r := NewMux(svc)
	w := postJSON(t, r, "/session", `{"capabilities":[{"browserName":"firefox"}]}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateSession_InvalidRequestMapsTo400(t *testing.T) {
	svc := &mockService{newErr: distributor.ErrInvalidRequest("empty capability profile")}
	r := NewMux(svc)
	w := postJSON(t, r, "/session", `{"capabilities":[{}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateSession_ClosedMapsTo503(t *testing.T) {
	svc := &mockService{newErr: distributor.ErrClosed()}
	r := NewMux(svc)
	w := postJSON(t, r, "/session", `{"capabilities":[{"browserName":"firefox"}]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterNode_InvalidNodeMapsTo400(t *testing.T) {
	svc := &mockService{addErr: distributor.ErrInvalidNode("node offers no slots")}
	r := NewMux(svc)
	body := `{"status":{"node_id":"n1","node_uri":"http://n1","slots":[]}}`
	w := postJSON(t, r, "/node", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != http.StatusBadRequest {
		t.Fatalf("payload code=%d", er.Code)
	}
}
