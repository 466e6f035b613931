// Package stub provides the single call path every client-side proxy
// type is built from. Rather than generating a dynamic proxy at runtime
// (reflection-based method interception), each concrete stub — DatabaseStub,
// ViewStub, CursorStub, and so on in internal/client — is a small hand
// written struct whose methods call stub.Call with the selector and
// options appropriate to that operation. This is the Go-native
// replacement for a generated stub class: explicit, inspectable, and
// free of runtime codegen.
package stub

import (
	"context"
	"fmt"

	"github.com/tupldb/remote/internal/wire"
)

// Caller is the minimal surface a stub needs from its connection. It is
// satisfied by *transport.Conn; kept as an interface here so this package
// has no dependency on transport or session internals.
type Caller interface {
	Call(ctx context.Context, req wire.RequestFrame) (wire.ReplyFrame, error)
}

// Disposer is notified after a disposing call completes, successfully or
// not, so the local handle registry entry can be removed regardless of
// what the server reported.
type Disposer interface {
	DisposeLocal()
}

// FailureObserver is notified when a call on a restorable-eligible handle
// fails so the restorable reference machinery (internal/restorable) can
// decide whether to re-arm against a fresh handle or install a broken
// wrapper.
type FailureObserver interface {
	ObserveFailure(handleID int64, err error)
}

// CallOptions controls how stub.Call treats one invocation.
type CallOptions struct {
	// Batched, if true, writes the request without waiting for a reply;
	// used for a sequence of calls whose results the caller doesn't need
	// individually (e.g. a run of cursor advances before a final read).
	Batched bool

	// NoReply additionally tells the server not to write a reply at all.
	// Only valid alongside Batched.
	NoReply bool

	// Disposer marks this call as disposing: on return, the local handle
	// is removed from the registry regardless of whether the remote call
	// itself succeeded, since a failed dispose still means the client no
	// longer has anything to do with the handle.
	Disposer bool

	// Restorable marks this call as eligible for restorable re-arm: a
	// transient failure (handle not found after reconnect, broken pipe)
	// is reported to the supplied FailureObserver instead of being
	// returned directly to the caller as a hard error.
	Restorable bool
}

// Call sends req.Selector/payload to the identified handle over c and
// decodes the reply, applying opts' side effects.
func Call(ctx context.Context, c Caller, handleID int64, selector uint32, payload []byte, opts CallOptions, disposer Disposer, observer FailureObserver) ([]byte, error) {
	req := wire.RequestFrame{
		PipeID:   uint64(handleID),
		Selector: selector,
		Batched:  opts.Batched,
		NoReply:  opts.NoReply,
		Payload:  payload,
	}

	reply, err := c.Call(ctx, req)

	if opts.Disposer && disposer != nil {
		disposer.DisposeLocal()
	}

	if err != nil {
		if opts.Restorable && observer != nil {
			observer.ObserveFailure(handleID, err)
		}
		return nil, fmt.Errorf("stub: call selector %d on handle #%d: %w", selector, handleID, err)
	}

	if opts.NoReply {
		return nil, nil
	}

	if reply.Kind == wire.FrameException {
		werr, decodeErr := wire.DecodeError(reply.Payload)
		if decodeErr != nil {
			return nil, fmt.Errorf("stub: decode exception from handle #%d: %w", handleID, decodeErr)
		}
		if opts.Restorable && observer != nil && isTransient(werr) {
			observer.ObserveFailure(handleID, werr)
		}
		return nil, werr
	}

	return reply.Payload, nil
}

// isTransient reports whether kind represents a failure the restorable
// machinery should react to by re-arming, as opposed to a durable
// application-level error (a constraint violation, a parse error) that
// should simply propagate.
func isTransient(werr *wire.WireError) bool {
	switch werr.Kind {
	case wire.ErrorKindClosedDatabase, wire.ErrorKindClosedIndex, wire.ErrorKindClosedView, wire.ErrorKindIO:
		return true
	default:
		return false
	}
}
