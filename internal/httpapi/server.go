package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridd/internal/distributor"
	"gridd/internal/node"
	"gridd/internal/queue"
	"gridd/pkg/types"
)

// Service defines the methods the hub API needs from the scheduler.
// *distributor.Distributor satisfies it directly.
type Service interface {
	NewSession(ctx context.Context, req types.SessionRequest) (types.Session, error)
	StopSession(ctx context.Context, id types.SessionID) error
	QuerySession(id types.SessionID) (types.Session, error)
	Sessions() []types.Session
	Status() types.DistributorStatus
	AddNodeStatus(n distributor.Node, st types.NodeStatus) error
	Heartbeat(id types.NodeID, st *types.NodeStatus) error
	DrainNode(id types.NodeID) error
	RemoveNode(id types.NodeID) bool
	Ready() bool
	QueueLen() int
	Uptime() time.Duration
}

// NewMux builds the hub router: session creation and teardown, node
// registration and supervision endpoints, status, health and metrics.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/session", func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var payload types.NewSessionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req := types.NewSessionRequest(payload.Capabilities...)
		if len(payload.Dialects) > 0 {
			req.Dialects = payload.Dialects
		}
		req.Metadata = payload.Metadata
		if payload.TimeoutMS > 0 {
			req.Timeout = time.Duration(payload.TimeoutMS) * time.Millisecond
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo {
			logEvent(r, "session create start", nil, 0, 0)
		}

		// Join server base context with request context so shutdown
		// cancels queued waits too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		queueDepth.Set(float64(svc.QueueLen()))
		sess, err := svc.NewSession(ctx, req)
		queueDepth.Set(float64(svc.QueueLen()))
		if err != nil {
			if queue.IsCanceled(err) || r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				// Client gone or shutting down; nobody to answer.
				return
			}
			status := statusForError(err)
			sessionFailuresTotal.WithLabelValues(failureReason(err)).Inc()
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("backlog_full")
			}
			writeJSONError(w, status, err.Error())
			if lvl >= LevelInfo {
				logEvent(r, "session create end", err, status, time.Since(start))
			}
			return
		}
		writeJSON(w, http.StatusOK, types.CreateSessionResponse{Session: sess})
		if lvl >= LevelInfo {
			logEvent(r, "session create end", nil, http.StatusOK, time.Since(start))
		}
	})

	r.Get("/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := types.SessionID(chi.URLParam(r, "id"))
		sess, err := svc.QuerySession(id)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sess)
	})

	r.Delete("/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := types.SessionID(chi.URLParam(r, "id"))
		// Stop is idempotent: a session that is already gone is success.
		if err := svc.StopSession(r.Context(), id); err != nil && statusForError(err) != http.StatusNotFound {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": svc.Sessions()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		st := svc.Status()
		writeJSON(w, http.StatusOK, types.StatusResponse{
			Ready:         svc.Ready(),
			Message:       statusMessage(st),
			QueueSize:     svc.QueueLen(),
			Distributor:   st,
			UptimeSeconds: int64(svc.Uptime().Seconds()),
		})
	})

	r.Post("/node", func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var reg types.RegisterNodeRequest
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		st := reg.Status
		if st.NodeID == "" || st.NodeURI == "" {
			writeJSONError(w, http.StatusBadRequest, "node_id and node_uri are required")
			return
		}
		remote := node.NewRemote(st.NodeID, st.NodeURI)
		if err := svc.AddNodeStatus(remote, st); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	r.Post("/node/{id}/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		id := types.NodeID(chi.URLParam(r, "id"))
		var st *types.NodeStatus
		if r.ContentLength != 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			var decoded types.NodeStatus
			if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			st = &decoded
		}
		if err := svc.Heartbeat(id, st); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/node/{id}/drain", func(w http.ResponseWriter, r *http.Request) {
		id := types.NodeID(chi.URLParam(r, "id"))
		if err := svc.DrainNode(id); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	r.Delete("/node/{id}", func(w http.ResponseWriter, r *http.Request) {
		// Removing an unknown node is a no-op, same as removing it twice.
		svc.RemoveNode(types.NodeID(chi.URLParam(r, "id")))
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// requireJSON enforces an application/json content type on mutating
// endpoints; writes the 415 itself.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: encoding response: %v", err)
	}
}

func statusMessage(st types.DistributorStatus) string {
	n := len(st.Nodes)
	switch {
	case n == 0:
		return "no nodes registered"
	case n == 1:
		return "1 node registered"
	default:
		return itoa(n) + " nodes registered"
	}
}

// logEvent logs one request-scoped line through the structured logger when
// installed, falling back to the standard logger.
func logEvent(r *http.Request, msg string, err error, status int, dur time.Duration) {
	rid := middleware.GetReqID(r.Context())
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path)
		if rid != "" {
			z = z.Str("request_id", rid)
		}
		if status != 0 {
			z = z.Int("status", status).Dur("dur", dur)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg(msg)
		return
	}
	if err != nil {
		log.Printf("%s path=%s status=%d dur=%s err=%v", msg, r.URL.Path, status, dur, err)
		return
	}
	log.Printf("%s path=%s status=%d dur=%s", msg, r.URL.Path, status, dur)
}
