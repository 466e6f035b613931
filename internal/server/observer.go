package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/transport"
	"github.com/tupldb/remote/internal/wire"
)

// remoteObserver implements engine.Observer on the server side of a
// Database.Verify/Index.Verify call, forwarding each node
// event back to the client's real engine.Observer over the same
// connection the call arrived on. correlationID is an opaque value the
// client chose when it registered this proxy (SelDatabaseRegisterObserver)
// and is echoed back unchanged so the client can find the right local
// callback among several concurrent calls.
type remoteObserver struct {
	conn          *transport.Conn
	reg           *registry.Registry
	id            int64
	correlationID int64
	flags         engine.ObserverFlags
}

func newRemoteObserver(conn *transport.Conn, correlationID int64, flags engine.ObserverFlags) *remoteObserver {
	return &remoteObserver{conn: conn, correlationID: correlationID, flags: flags}
}

func (o *remoteObserver) IndexNodeVisited(ctx context.Context, id int64, level int32) bool {
	if o.flags&engine.ObserverFlagVisited == 0 {
		return true
	}
	e := wire.NewEncoder()
	e.WriteInt64(id)
	e.WriteInt32(level)
	return o.push(ctx, wire.SelObserverIndexNodeVisited, e.Bytes())
}

func (o *remoteObserver) IndexNodePassed(ctx context.Context, id int64, level int32, entryCount, freeBytes int64) bool {
	if o.flags&engine.ObserverFlagPassedOrFailed == 0 {
		return true
	}
	e := wire.NewEncoder()
	e.WriteInt64(id)
	e.WriteInt32(level)
	e.WriteInt64(entryCount)
	e.WriteInt64(freeBytes)
	return o.push(ctx, wire.SelObserverIndexNodePassed, e.Bytes())
}

func (o *remoteObserver) IndexNodeFailed(ctx context.Context, id int64, level int32, message string) bool {
	if o.flags&engine.ObserverFlagPassedOrFailed == 0 {
		return true
	}
	e := wire.NewEncoder()
	e.WriteInt64(id)
	e.WriteInt32(level)
	e.WriteString(message)
	return o.push(ctx, wire.SelObserverIndexNodeFailed, e.Bytes())
}

// push issues a reverse call on the connection this observer proxy was
// registered from and waits for the continue/stop reply, the same
// request/reply mechanics a client-issued call uses — the connection is
// symmetric, so nothing but direction distinguishes this from an ordinary
// capability call. A failed push (peer gone, call error, exception reply)
// is treated as "stop": the verify loop can't assume the client
// is still listening.
func (o *remoteObserver) push(ctx context.Context, selector uint32, payload []byte) bool {
	if o.conn == nil {
		return true
	}
	reply, err := o.conn.Call(ctx, wire.RequestFrame{PipeID: uint64(o.correlationID), Selector: selector, Payload: payload})
	if err != nil || reply.Kind == wire.FrameException {
		return false
	}
	cont, err := wire.NewDecoder(reply.Payload).ReadBool()
	if err != nil {
		return true
	}
	return cont
}

// handlerDatabaseRegisterObserver registers a remoteObserver proxy for the
// calling client's correlationID, returning the server-side handle id the
// client then passes as the observer argument to Verify. One
// registration is reused across however many verify calls the
// client wants to drive through it, until it disposes the handle.
func handlerDatabaseRegisterObserver(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	d := wire.NewDecoder(payload)
	correlationID, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed observer correlation id")
	}
	flags, err := d.ReadUint8()
	if err != nil {
		return nil, engine.IllegalStateError("malformed observer flags")
	}

	ro := newRemoteObserver(s.reg.Conn, correlationID, engine.ObserverFlags(flags))
	h := s.reg.Register(registry.KindObserver, ro)
	ro.reg = s.reg
	ro.id = h.ID

	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

// handlerObserverRelease disposes a remote observer proxy once the
// verify call it was driving has returned.
func handlerObserverRelease(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*remoteObserver)
	s.reg.Dispose(s.id, registry.DetachExplicitDispose)
	return nil, nil
}
