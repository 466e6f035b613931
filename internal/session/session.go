// Package session manages the lifecycle of one logical connection between
// a client and the server: connection state transitions, the client-side
// reconnect loop, and the server-side per-connection handle registry used
// by the dispatcher. It is the Go analog of the teacher's NFSv4 session
// layer (internal/protocol/nfs/v4/state/session.go), replacing slot
// tables and sequence ids with a handle registry and a restorable
// reference tracker.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/tupldb/remote/internal/logger"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/restorable"
	"github.com/tupldb/remote/internal/transport"
)

// ConnState is the connection state a session moves through, mirroring
// the client-visible states this protocol exposes to restorable
// references and to diagnostics.
type ConnState int32

const (
	StateConnected ConnState = iota
	StateReconnecting
	StateReconnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateReconnected:
		return "reconnected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// newSessionID returns a random session identifier, playing the same role
// as the teacher's NFSv4 session id but drawn from a UUIDv4 rather than a
// raw 16-byte slot id.
func newSessionID() string {
	return uuid.NewString()
}

// ServerSession is the server's view of one client connection: its
// handle registry, peer address, and creation time. One exists per
// accepted (and handshaken) connection; diagnostics lists them by ID.
type ServerSession struct {
	ID        string
	PeerAddr  string
	CreatedAt time.Time
	Registry  *registry.Registry

	conn *transport.Conn
}

// NewServerSession wraps a just-accepted Conn with a fresh registry.
func NewServerSession(conn *transport.Conn) *ServerSession {
	return &ServerSession{
		ID:        newSessionID(),
		PeerAddr:  conn.RemoteAddr().String(),
		CreatedAt: time.Now(),
		Registry:  registry.New(),
		conn:      conn,
	}
}

// Close detaches every handle this session owns. Called once the
// underlying connection's Serve loop returns.
func (s *ServerSession) Close() {
	s.Registry.DetachAll(registry.DetachSessionClosed)
}

// Dialer opens a fresh client connection, performing the transport
// handshake. Supplied by the caller so Session doesn't need to know
// about handshake tokens directly.
type Dialer func(ctx context.Context) (*transport.Conn, error)

// ClientSession owns a client's connection and keeps it alive across
// transient network failures, re-arming every restorable reference once
// reconnected.
type ClientSession struct {
	dial    Dialer
	tracker *restorable.Tracker
	reverse *ReverseRegistry
	pipes   *transport.PipePool

	mu    sync.RWMutex
	conn  *transport.Conn
	state atomic.Int32

	listenersMu sync.Mutex
	listeners   []func(ConnState)

	backoff backoff.BackOff
	closed  chan struct{}
	once    sync.Once
}

// NewClientSession dials dial for the first connection and starts the
// background reconnect watcher. isTransient classifies a restorable
// reopen failure the same way internal/restorable.NewTracker does.
// reverse is the registry the caller's dialer already wired into the
// connection's inbound handler (so a reconnect reuses the same
// callback table); pass nil if this session never registers observers or
// leader notifiers.
func NewClientSession(ctx context.Context, dial Dialer, isTransient func(error) bool, reverse *ReverseRegistry) (*ClientSession, error) {
	conn, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: initial dial: %w", err)
	}

	cs := &ClientSession{
		dial:    dial,
		tracker: restorable.NewTracker(isTransient),
		reverse: reverse,
		pipes:   transport.NewPipePool(conn, 0),
		conn:    conn,
		closed:  make(chan struct{}),
		backoff: newReconnectBackoff(),
	}
	cs.state.Store(int32(StateConnected))

	go cs.watch(ctx)
	return cs, nil
}

// newReconnectBackoff builds the exponential-backoff policy used between
// reconnect attempts, capped so a long outage still retries periodically
// rather than growing unbounded.
func newReconnectBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry forever
	return b
}

// Conn returns the session's current connection. It changes identity
// across a reconnect, so callers should not cache the returned value
// across a call boundary where a reconnect might occur.
func (cs *ClientSession) Conn() *transport.Conn {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.conn
}

// State returns the session's current connection state.
func (cs *ClientSession) State() ConnState {
	return ConnState(cs.state.Load())
}

// Tracker exposes the restorable reference tracker so derived handles can
// register themselves.
func (cs *ClientSession) Tracker() *restorable.Tracker { return cs.tracker }

// Reverse exposes the registry server-pushed observer/leader callbacks are
// correlated through, or nil if this session was built without one.
func (cs *ClientSession) Reverse() *ReverseRegistry { return cs.reverse }

// Pipes exposes the pool used to open value-stream and snapshot-transfer
// pipes on this session's connection. It is bound to the connection that
// existed when the session was created; a stream opened mid-reconnect is
// expected to fail and be retried by its caller rather than silently
// rebind to the new connection.
func (cs *ClientSession) Pipes() *transport.PipePool { return cs.pipes }

// OnStateChange registers a callback invoked on every state transition.
func (cs *ClientSession) OnStateChange(fn func(ConnState)) {
	cs.listenersMu.Lock()
	defer cs.listenersMu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

func (cs *ClientSession) setState(s ConnState) {
	cs.state.Store(int32(s))
	cs.listenersMu.Lock()
	listeners := append([]func(ConnState){}, cs.listeners...)
	cs.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// watch runs the connection's Serve loop and, on failure, enters the
// reconnect loop with exponential backoff until a fresh connection is
// established, then re-arms every tracked restorable reference.
func (cs *ClientSession) watch(ctx context.Context) {
	for {
		conn := cs.Conn()
		err := conn.Serve(ctx)

		select {
		case <-ctx.Done():
			cs.setState(StateDisconnected)
			return
		case <-cs.closed:
			cs.setState(StateDisconnected)
			return
		default:
		}

		if err == nil {
			// Serve returning nil means a clean peer-initiated close, not
			// a failure worth reconnecting over.
			cs.setState(StateDisconnected)
			return
		}

		logger.Warnf("session: connection lost: %v", err)
		cs.setState(StateReconnecting)
		cs.reconnectLoop(ctx)
	}
}

func (cs *ClientSession) reconnectLoop(ctx context.Context) {
	cs.backoff.Reset()
	op := func() error {
		conn, err := cs.dial(ctx)
		if err != nil {
			return err
		}
		cs.mu.Lock()
		cs.conn = conn
		cs.mu.Unlock()
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(cs.backoff, ctx)); err != nil {
		// Context was cancelled while retrying; watch's caller will see
		// ctx.Done() on its next loop iteration.
		return
	}

	cs.setState(StateReconnected)
	cs.tracker.OnReconnected(ctx)
	cs.setState(StateConnected)
}

// Close stops the reconnect watcher and closes the current connection.
func (cs *ClientSession) Close() error {
	var err error
	cs.once.Do(func() {
		close(cs.closed)
		err = cs.Conn().Close()
	})
	return err
}
