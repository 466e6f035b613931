package session

import (
	"context"
	"sync"

	"github.com/tupldb/remote/internal/transport"
	"github.com/tupldb/remote/internal/wire"
)

// ReverseHandler processes one server-pushed request addressed to a
// client-chosen correlation id (an observer node event, a leader-change
// edge), returning the reply payload for a call that expects one.
type ReverseHandler func(ctx context.Context, selector uint32, payload []byte) []byte

// ReverseRegistry correlates server-pushed callback requests with the
// client-local Go callback that registered to receive them. It is the
// client-side mirror of internal/registry.Registry: the server has an id
// space for handles it owns, this is the client's id space for callbacks
// it owns, addressed from the other direction over the same connection.
type ReverseRegistry struct {
	mu   sync.Mutex
	next int64
	live map[int64]ReverseHandler
}

// NewReverseRegistry returns an empty registry.
func NewReverseRegistry() *ReverseRegistry {
	return &ReverseRegistry{live: make(map[int64]ReverseHandler)}
}

// Register reserves a fresh correlation id for h and returns it; the
// caller sends this id to the server so pushes addressed to it land on h.
func (r *ReverseRegistry) Register(h ReverseHandler) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := r.next
	r.live[id] = h
	return id
}

// Release forgets id, once the caller no longer expects pushes for it.
func (r *ReverseRegistry) Release(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

// Handler builds the transport.RequestHandler a client Conn installs to
// process inbound (server-initiated) requests: look up the correlation id
// carried in the request's PipeID field and run its handler, replying
// with whatever bytes it returns. A push to an id nobody is listening for
// anymore (a verify that already finished) gets an encoded true reply
// rather than an error, which the server's observer path reads as
// "continue"; on the no-reply leader-notification path nothing is sent
// back at all.
func (r *ReverseRegistry) Handler() transport.RequestHandler {
	return func(ctx context.Context, req wire.RequestFrame) wire.ReplyFrame {
		r.mu.Lock()
		h, ok := r.live[int64(req.PipeID)]
		r.mu.Unlock()

		if req.NoReply {
			if ok {
				h(ctx, req.Selector, req.Payload)
			}
			return wire.ReplyFrame{}
		}

		var payload []byte
		if ok {
			payload = h(ctx, req.Selector, req.Payload)
		} else {
			e := wire.NewEncoder()
			e.WriteBool(true) // nobody home: let the server keep going rather than abort the walk
			payload = e.Bytes()
		}
		return wire.ReplyFrame{PipeID: req.PipeID, Kind: wire.FrameResult, Payload: payload}
	}
}
