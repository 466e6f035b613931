package diagnostics

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tupldb/remote/internal/admintoken"
	"github.com/tupldb/remote/internal/metrics"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/transport"
)

func newTestSession(t *testing.T) *session.ServerSession {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { _ = c1.Close(); _ = c2.Close() })
	conn := transport.NewConn(c1, nil)
	s := session.NewServerSession(conn)
	s.Registry.Register(registry.KindDatabase, struct{}{})
	return s
}

func TestHealthzUnauthenticated(t *testing.T) {
	r := NewRouter(session.NewTracker(), metrics.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionsRequiresBearerTokenWhenIssuerSet(t *testing.T) {
	issuer, err := admintoken.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)
	r := NewRouter(session.NewTracker(), metrics.New(), issuer)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := issuer.Issue("admin")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionsListsTrackedSessions(t *testing.T) {
	tracker := session.NewTracker()
	s := newTestSession(t)
	tracker.Add(s)

	r := NewRouter(tracker, metrics.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), s.ID)
}

func TestSessionHandlesNotFound(t *testing.T) {
	r := NewRouter(session.NewTracker(), metrics.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/sessions/nope/handles", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
