package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gridd/internal/node"
	"gridd/pkg/types"
)

// NewNodeMux builds the node agent router. It serves the slot operations the
// hub's remote node client calls: create a session on this node, stop one,
// report status. 409 means no free matching slot, which the hub treats as a
// retryable placement failure.
func NewNodeMux(n *node.LocalNode) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/session", func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Capabilities) == 0 {
			writeJSONError(w, http.StatusBadRequest, "at least one capability profile is required")
			return
		}
		sess, err := n.NewSession(r.Context(), req)
		if err != nil {
			if node.IsNoCapacity(err) {
				writeJSONError(w, http.StatusConflict, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.CreateSessionResponse{Session: sess})
	})

	// Teardown is idempotent on the node too: an unknown or already
	// released id still comes back 204.
	r.Delete("/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := types.SessionID(chi.URLParam(r, "id"))
		if err := n.Stop(r.Context(), id); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		st, err := n.Status(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Post("/drain", func(w http.ResponseWriter, r *http.Request) {
		n.Drain()
		w.WriteHeader(http.StatusAccepted)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
