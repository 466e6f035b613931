// Package remotedb is the public facade wiring transport, session,
// server, registry, and rpc together into a usable client and server, the
// way the teacher's pkg/controlplane/runtime assembles its store/adapter
// layers behind a single entry point rather than asking callers to wire
// the internal packages themselves.
package remotedb

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tupldb/remote/internal/admintoken"
	"github.com/tupldb/remote/internal/client"
	"github.com/tupldb/remote/internal/diagnostics"
	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/handshake"
	"github.com/tupldb/remote/internal/metrics"
	"github.com/tupldb/remote/internal/server"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/transport"
)

// ServerOptions configures Serve.
type ServerOptions struct {
	// ListenAddr is the TCP address to accept RPC connections on.
	ListenAddr string

	// Tokens is the accepted handshake token set; empty runs
	// unauthenticated.
	Tokens handshake.TokenSet

	// WorkerLimit bounds concurrent handler calls per session; <= 0 is
	// unbounded.
	WorkerLimit int

	// Metrics, if non-nil, is wired into every session's dispatcher and
	// pipe pool.
	Metrics *metrics.Metrics

	// Tracker, if non-nil, records every accepted session so
	// internal/diagnostics can list it.
	Tracker *session.Tracker
}

// Server owns the RPC listener for one engine.Database.
type Server struct {
	listener *transport.Listener
}

// Serve starts accepting RPC connections against db and blocks until ctx
// is cancelled. Each accepted connection gets its own session, registry,
// and dispatcher; db is shared read/write state across all of them, the
// same way the teacher's adapters share one backing store across many
// client connections.
func Serve(ctx context.Context, db engine.Database, opts ServerOptions) error {
	s, err := NewServer(db, opts)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Addr returns the listener's bound address, valid only once Serve has
// started listening — callers that need it before then should poll.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error { return s.listener.Serve(ctx) }

// NewServer builds a Server without starting it; call Serve to begin
// accepting connections.
func NewServer(db engine.Database, opts ServerOptions) (*Server, error) {
	sessions := make(map[*transport.Conn]*session.ServerSession)
	var mu sync.Mutex

	cfg := transport.ServerConfig{
		Addr:   opts.ListenAddr,
		Tokens: opts.Tokens,
		NewHandler: func(conn *transport.Conn) transport.RequestHandler {
			d, reg, _ := server.NewSession(db, opts.WorkerLimit)
			reg.Conn = conn
			d.SetMetrics(opts.Metrics)

			if opts.Tracker != nil {
				sess := session.NewServerSession(conn)
				sess.Registry = reg
				opts.Tracker.Add(sess)
				mu.Lock()
				sessions[conn] = sess
				mu.Unlock()
			}

			return d.Handle
		},
		OnClose: func(conn *transport.Conn) {
			mu.Lock()
			sess, ok := sessions[conn]
			delete(sessions, conn)
			mu.Unlock()
			if !ok {
				return
			}
			opts.Tracker.Remove(sess)
			sess.Close()
		},
	}
	return &Server{listener: transport.NewListener(cfg)}, nil
}

// ServeDiagnostics starts the read-only HTTP diagnostics surface and
// blocks until ctx is cancelled, following the same listen-in-goroutine,
// shut-down-on-cancel shape as the server's own Serve. issuer may be nil
// to run it unauthenticated (suitable only for trusted networks).
func ServeDiagnostics(ctx context.Context, addr string, tracker *session.Tracker, m *metrics.Metrics, issuer *admintoken.Issuer) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: diagnostics.NewRouter(tracker, m, issuer),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("remotedb: diagnostics server: %w", err)
	}
}

// ClientOptions configures Dial.
type ClientOptions struct {
	Addr           string
	TokenA, TokenB uint64

	// AcceptsObservers enables the reverse-call path used by
	// Database.Verify/Analyze observers and UponLeader. Pass true if the
	// caller ever registers an engine.Observer or a leader-change
	// listener.
	AcceptsObservers bool

	// Metrics, if non-nil, records this session's pipe acquire/recycle
	// activity (cursor value streams, snapshot transfer).
	Metrics *metrics.Metrics
}

// Client is a connected remote session exposing the root Database.
type Client struct {
	sess *session.ClientSession
	db   engine.Database
}

// Dial connects to a tuplremoted server and returns a ready-to-use
// Client wrapping the session's root Database handle.
func Dial(ctx context.Context, opts ClientOptions) (*Client, error) {
	var reverse *session.ReverseRegistry
	if opts.AcceptsObservers {
		reverse = session.NewReverseRegistry()
	}

	dial := func(ctx context.Context) (*transport.Conn, error) {
		var handler transport.RequestHandler
		if reverse != nil {
			handler = reverse.Handler()
		}
		conn, err := transport.Dial(ctx, opts.Addr, opts.TokenA, opts.TokenB, handler)
		if err != nil {
			return nil, fmt.Errorf("remotedb: dial: %w", err)
		}
		return conn, nil
	}

	sess, err := session.NewClientSession(ctx, dial, isTransientDialError, reverse)
	if err != nil {
		return nil, err
	}
	sess.Pipes().SetMetrics(opts.Metrics)

	return &Client{sess: sess, db: client.NewDatabaseStub(sess, 1)}, nil
}

// Database returns the session's root Database handle.
func (c *Client) Database() engine.Database { return c.db }

// Session exposes the underlying session, for callers that need
// connection-state notifications or direct pipe access.
func (c *Client) Session() *session.ClientSession { return c.sess }

// Close stops the session's reconnect loop and closes its connection.
func (c *Client) Close() error { return c.sess.Close() }

func isTransientDialError(err error) bool {
	return err != nil
}
