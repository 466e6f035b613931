// Package restorable implements references that survive a session
// reconnect: a derived handle (an Index opened from a Database, a
// sub-View of a View) remembers how it was derived and re-opens itself
// against the new session's handle once the connection comes back, so a
// caller holding the reference never has to know a disconnect happened.
package restorable

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Capture is the tuple needed to re-derive a handle: which handle it came
// from, which operation produced it, and that operation's arguments.
// E.g. (databaseHandleID, "findIndex", encodedIndexName).
type Capture struct {
	OriginHandleID int64
	Operation      string
	Args           []byte
}

// Reopener re-executes a Capture against the current session and returns
// the freshly derived handle id.
type Reopener func(ctx context.Context, capture Capture) (int64, error)

// Ref is one restorable reference. Its current handle id can be read
// concurrently with a reconnect swapping it out.
type Ref struct {
	capture  Capture
	reopen   Reopener
	current  atomic.Int64
	mu       sync.Mutex
	broken   error
}

// NewRef creates a Ref bound to handleID, capturing how it was derived so
// a later reconnect can rebuild it.
func NewRef(handleID int64, capture Capture, reopen Reopener) *Ref {
	r := &Ref{capture: capture, reopen: reopen}
	r.current.Store(handleID)
	return r
}

// HandleID returns the ref's current handle id, or an error if the ref
// has been permanently broken by a non-transient reopen failure.
func (r *Ref) HandleID() (int64, error) {
	r.mu.Lock()
	broken := r.broken
	r.mu.Unlock()
	if broken != nil {
		return 0, broken
	}
	return r.current.Load(), nil
}

// Broken reports whether this ref has given up retrying.
func (r *Ref) Broken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broken != nil
}

// reconnect attempts to re-derive the handle after the session has
// transitioned back to CONNECTED. A successful reopen stores the new
// current id; a transient failure leaves the ref as-is so the next
// reconnect event retries; a non-transient failure installs a permanent
// broken state, after which every call through this reference fails with
// the original cause instead of silently retrying forever.
func (r *Ref) reconnect(ctx context.Context, isTransient func(error) bool) {
	if r.Broken() {
		return
	}
	newID, err := r.reopen(ctx, r.capture)
	if err != nil {
		if isTransient != nil && isTransient(err) {
			return
		}
		r.mu.Lock()
		r.broken = fmt.Errorf("restorable: could not re-derive handle: %w", err)
		r.mu.Unlock()
		return
	}
	r.current.Store(newID)
}

// Tracker holds every restorable Ref belonging to one session and re-arms
// them all when the session reconnects.
type Tracker struct {
	mu          sync.Mutex
	refs        map[*Ref]struct{}
	isTransient func(error) bool
}

// NewTracker creates a Tracker. isTransient classifies a reopen failure
// as transient (retry on the next reconnect) versus durable (break the
// ref permanently); pass nil to treat every failure as durable.
func NewTracker(isTransient func(error) bool) *Tracker {
	return &Tracker{refs: make(map[*Ref]struct{}), isTransient: isTransient}
}

// Track registers ref so a future reconnect re-arms it.
func (t *Tracker) Track(ref *Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[ref] = struct{}{}
}

// Untrack removes ref, e.g. once its owning stub is explicitly disposed.
func (t *Tracker) Untrack(ref *Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.refs, ref)
}

// OnReconnected re-derives every tracked ref against the new session.
// Called once, after the session's connection state moves from
// RECONNECTING to CONNECTED.
func (t *Tracker) OnReconnected(ctx context.Context) {
	t.mu.Lock()
	refs := make([]*Ref, 0, len(t.refs))
	for ref := range t.refs {
		refs = append(refs, ref)
	}
	t.mu.Unlock()

	for _, ref := range refs {
		ref.reconnect(ctx, t.isTransient)
	}
}

// Len reports how many refs are currently tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.refs)
}
