package client

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// rootHandleID is the session's well-known root Database handle id: the
// first Register call server.NewSession makes on an empty registry, so it
// is always 1. Observer registration is addressed here regardless of
// which stub (DatabaseStub or IndexStub) initiated the verify/analyze
// call, since only the root handle's skeleton type is guaranteed to
// answer SelDatabaseRegisterObserver.
const rootHandleID int64 = 1

// observerReverseHandler adapts a local engine.Observer into a
// session.ReverseHandler: it decodes the node-event payload the server's
// remoteObserver pushed and runs the matching Observer method, encoding
// its continue/stop bool back as the reply.
func observerReverseHandler(observer engine.Observer) session.ReverseHandler {
	return func(ctx context.Context, selector uint32, payload []byte) []byte {
		d := wire.NewDecoder(payload)
		e := wire.NewEncoder()

		var cont bool
		switch selector {
		case wire.SelObserverIndexNodeVisited:
			id, _ := d.ReadInt64()
			level, _ := d.ReadInt32()
			cont = observer.IndexNodeVisited(ctx, id, level)
		case wire.SelObserverIndexNodePassed:
			id, _ := d.ReadInt64()
			level, _ := d.ReadInt32()
			entryCount, _ := d.ReadInt64()
			freeBytes, _ := d.ReadInt64()
			cont = observer.IndexNodePassed(ctx, id, level, entryCount, freeBytes)
		case wire.SelObserverIndexNodeFailed:
			id, _ := d.ReadInt64()
			level, _ := d.ReadInt32()
			message, _ := d.ReadString()
			cont = observer.IndexNodeFailed(ctx, id, level, message)
		default:
			cont = true
		}

		e.WriteBool(cont)
		return e.Bytes()
	}
}

// registerRemoteObserver registers observer with the server so its
// verify/analyze progress events are pushed back over sess's connection,
// returning the server-side observer handle id to pass as the Verify
// argument and a release func to call once the operation has returned. A
// nil observer is a no-op: the returned id is 0, the wire's existing
// "no observer" convention.
func registerRemoteObserver(ctx context.Context, sess *session.ClientSession, observer engine.Observer) (id int64, release func(), err error) {
	release = func() {}
	if observer == nil {
		return 0, release, nil
	}

	rev := sess.Reverse()
	var correlationID int64
	if rev != nil {
		correlationID = rev.Register(observerReverseHandler(observer))
	}

	e := wire.NewEncoder()
	e.WriteInt64(correlationID)
	e.WriteUint8(uint8(engine.ObserverFlagVisited | engine.ObserverFlagPassedOrFailed))
	payload, err := call(ctx, sess, rootHandleID, wire.SelDatabaseRegisterObserver, e.Bytes())
	if err != nil {
		if rev != nil {
			rev.Release(correlationID)
		}
		return 0, release, err
	}

	serverID, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		if rev != nil {
			rev.Release(correlationID)
		}
		return 0, release, err
	}

	release = func() {
		if rev != nil {
			rev.Release(correlationID)
		}
		_, _ = disposingCall(context.Background(), sess, serverID, wire.SelObserverRelease, nil)
	}
	return serverID, release, nil
}
