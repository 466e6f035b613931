// Package registry tracks the live handles (skeletons on the server,
// stubs on the client) belonging to one session: capability-typed
// references identified by an opaque int64, looked up by selector
// dispatch and torn down on session close, reconnect, or client-side
// garbage collection. It follows the map-plus-mutex shape of the
// teacher's resource registry (pkg/registry/registry.go), scoped down
// from a process-wide table to one per session.
package registry

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tupldb/remote/internal/transport"
)

// HandleKind identifies what a Handle's Value actually is, used to decide
// detach policy when a session tears down or a handle is auto-disposed.
type HandleKind uint8

const (
	KindDatabase HandleKind = iota
	KindView
	KindIndex
	KindTemporaryIndex
	KindCursor
	KindTransaction
	KindTable
	KindQuery
	KindScanner
	KindUpdater
	KindSorter
	KindSnapshot
	KindObserver
	KindAccessor
)

func (k HandleKind) String() string {
	switch k {
	case KindDatabase:
		return "Database"
	case KindView:
		return "View"
	case KindIndex:
		return "Index"
	case KindTemporaryIndex:
		return "TemporaryIndex"
	case KindCursor:
		return "Cursor"
	case KindTransaction:
		return "Transaction"
	case KindTable:
		return "Table"
	case KindQuery:
		return "Query"
	case KindScanner:
		return "Scanner"
	case KindUpdater:
		return "Updater"
	case KindSorter:
		return "Sorter"
	case KindSnapshot:
		return "Snapshot"
	case KindObserver:
		return "Observer"
	case KindAccessor:
		return "Accessor"
	default:
		return "Unknown"
	}
}

// DetachReason tells a SessionAware handle why it is being torn down, so
// it can choose how to react (a Transaction rolls back, a Cursor just
// resets, a TemporaryIndex schedules deletion).
type DetachReason int

const (
	DetachSessionClosed DetachReason = iota
	DetachExplicitDispose
	DetachReconnectLost
)

// SessionAware is implemented by handle values that need to react to
// their owning session's lifecycle events beyond simple removal from the
// table.
type SessionAware interface {
	OnAttach()
	OnDetach(reason DetachReason)
}

// Handle is one entry in the registry: an identity, its kind, and the
// concrete skeleton/stub value it refers to.
type Handle struct {
	ID    int64
	Kind  HandleKind
	Value any
}

// Registry is the per-session handle table. It is safe for concurrent use
// by the dispatcher goroutines handling different calls on the same
// session.
type Registry struct {
	mu      sync.RWMutex
	handles map[int64]*Handle
	nextID  atomic.Int64

	// Conn is the connection this session's handles were dispatched from,
	// set once by the listener right after NewSession builds the registry.
	// Handles that need to push a reverse call to the client (a remote
	// Observer proxy, a leader-change notifier) or attach a pipe the
	// client already chose an id for (a value stream, a snapshot
	// transfer) read it from here rather than threading a *transport.Conn
	// through every skeleton constructor.
	Conn *transport.Conn
}

// New creates an empty per-session registry.
func New() *Registry {
	return &Registry{handles: make(map[int64]*Handle)}
}

// Register assigns a fresh handle id to value and adds it to the table.
// If value implements SessionAware, OnAttach is called before Register
// returns.
func (r *Registry) Register(kind HandleKind, value any) *Handle {
	id := r.nextID.Add(1)
	h := &Handle{ID: id, Kind: kind, Value: value}

	r.mu.Lock()
	r.handles[id] = h
	r.mu.Unlock()

	if aware, ok := value.(SessionAware); ok {
		aware.OnAttach()
	}
	return h
}

// RegisterAutoDispose is like Register, but additionally arranges for the
// handle to be disposed automatically once owner becomes unreachable and
// is collected — the Go analog of the client stub's weak-reference
// auto-dispose: a caller that drops its last reference to owner without
// calling Close still has the server-side handle reclaimed eventually.
func (r *Registry) RegisterAutoDispose(kind HandleKind, value any, owner *Handle) *Handle {
	h := r.Register(kind, value)
	runtime.AddCleanup(owner, func(id int64) {
		r.Dispose(id, DetachExplicitDispose)
	}, h.ID)
	return h
}

// Lookup finds the handle registered under id.
func (r *Registry) Lookup(id int64) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// MustLookup is Lookup but returns an error naming the missing id, for
// dispatch paths that want a single error-returning call.
func (r *Registry) MustLookup(id int64) (*Handle, error) {
	h, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("registry: no handle #%d", id)
	}
	return h, nil
}

// Dispose removes id from the table and, if its value implements
// SessionAware, calls OnDetach with reason. Disposing an id that is not
// present is a no-op.
func (r *Registry) Dispose(id int64, reason DetachReason) {
	r.mu.Lock()
	h, ok := r.handles[id]
	if ok {
		delete(r.handles, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if aware, ok := h.Value.(SessionAware); ok {
		aware.OnDetach(reason)
	}
}

// DetachAll tears down every handle currently registered, in no
// particular order, with the given reason. Used on session close and on
// a non-restorable reconnect failure.
func (r *Registry) DetachAll(reason DetachReason) {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.handles = make(map[int64]*Handle)
	r.mu.Unlock()

	for _, h := range handles {
		if aware, ok := h.Value.(SessionAware); ok {
			aware.OnDetach(reason)
		}
	}
}

// Count returns the number of live handles, broken down by kind — used by
// the diagnostics surface.
func (r *Registry) Count() map[HandleKind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[HandleKind]int)
	for _, h := range r.handles {
		counts[h.Kind]++
	}
	return counts
}

// Len returns the total number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
