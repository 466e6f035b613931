package session

import (
	"sync"
)

// Tracker is the process-wide table of live ServerSessions, the
// accept-side analog of ClientSession's single-connection view: it
// exists purely so an operational surface (internal/diagnostics) can
// list who is connected without threading a callback through every
// accepted connection.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*ServerSession
}

// NewTracker creates an empty session tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*ServerSession)}
}

// Add registers s as live. Called once a connection's handshake and
// registry setup succeed.
func (t *Tracker) Add(s *ServerSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID] = s
}

// Remove drops s from the table. Called once its connection's Serve
// loop returns.
func (t *Tracker) Remove(s *ServerSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, s.ID)
}

// List returns a snapshot of every currently tracked session.
func (t *Tracker) List() []*ServerSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*ServerSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Get returns the session registered under id, if any.
func (t *Tracker) Get(id string) (*ServerSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}
