// Package diagnostics is a read-only HTTP surface for operational
// visibility into a running tuplremoted: active sessions, per-session
// handle counts, and a Prometheus exposition passthrough. It carries no
// engine operations of its own and cannot mutate any handle state.
//
// The router shape (request-id/real-IP/recoverer middleware stack, a
// custom request logger wrapping internal/logger, bearer-token auth
// gating everything but health) is grounded on the teacher's
// pkg/controlplane/api router, trimmed to this layer's much smaller
// surface.
package diagnostics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tupldb/remote/internal/admintoken"
	"github.com/tupldb/remote/internal/logger"
	"github.com/tupldb/remote/internal/metrics"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/session"
)

// sessionView is the JSON shape for one entry of GET /sessions.
type sessionView struct {
	ID        string         `json:"id"`
	PeerAddr  string         `json:"peer_addr"`
	CreatedAt time.Time      `json:"created_at"`
	Handles   map[string]int `json:"handles_by_kind"`
}

// handleView is the JSON shape for one entry of GET /sessions/{id}/handles.
type handleView struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
}

// NewRouter builds the diagnostics HTTP handler. /healthz never requires a
// token; issuer may be nil, in which case every other route runs
// unauthenticated too — the same
// "empty token set means unauthenticated accept" convention
// internal/handshake uses for the wire-level handshake.
func NewRouter(tracker *session.Tracker, m *metrics.Metrics, issuer *admintoken.Issuer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(issuer))

		r.Get("/sessions", listSessions(tracker))
		r.Get("/sessions/{id}/handles", listHandles(tracker))
		r.Handle("/metrics", m.Handler())
	})

	return r
}

func listSessions(tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := tracker.List()
		views := make([]sessionView, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, sessionView{
				ID:        s.ID,
				PeerAddr:  s.PeerAddr,
				CreatedAt: s.CreatedAt,
				Handles:   countsByName(s.Registry),
			})
		}
		writeJSON(w, views)
	}
}

func listHandles(tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, ok := tracker.Get(id)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		views := handlesOf(s.Registry)
		writeJSON(w, views)
	}
}

// handlesOf is a placeholder kept deliberately minimal: registry.Registry
// exposes aggregate counts (Count/Len) for diagnostics rather than a full
// handle listing, since listing every live handle's identity would let
// this read-only surface reconstruct a client's exact capability graph.
func handlesOf(reg *registry.Registry) []handleView {
	counts := reg.Count()
	views := make([]handleView, 0, len(counts))
	for kind, n := range counts {
		for i := 0; i < n; i++ {
			views = append(views, handleView{Kind: kind.String()})
		}
	}
	return views
}

func countsByName(reg *registry.Registry) map[string]int {
	counts := reg.Count()
	out := make(map[string]int, len(counts))
	for kind, n := range counts {
		out[kind.String()] = n
	}
	return out
}

func bearerAuth(issuer *admintoken.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if issuer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			if _, err := issuer.Validate(token); err != nil {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("diagnostics: failed to encode response", "error", err.Error())
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("diagnostics request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
