// Package client implements the client-side proxy half of every
// capability type: one small stub struct per registry.HandleKind sibling
// on the server, each holding the handle id it addresses and the session
// it calls through. A stub's methods satisfy the matching internal/engine
// interface by marshaling arguments, calling stub.Call, and unmarshaling
// the reply — the inverse of internal/server's skeletons.
package client

import (
	"context"
	"math"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/stub"
	"github.com/tupldb/remote/internal/wire"
)

// float64bits/float64frombits mirror internal/server/codec.go's helpers,
// round-tripping a float64 through the wire codec's Uint64 primitive.
func float64bits(f float64) uint64     { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// handleIDer is implemented by every stub type, letting a caller that
// only has an engine.Transaction/engine.Scanner/... interface value
// recover the wire handle id underneath it.
type handleIDer interface {
	handleID() int64
}

// call is the shared single-call path every stub method goes through:
// resolve the session's current connection, invoke the selector, and
// return the raw reply payload (nil for a no-result call).
func call(ctx context.Context, sess *session.ClientSession, handleID int64, selector uint32, payload []byte) ([]byte, error) {
	return stub.Call(ctx, sess.Conn(), handleID, selector, payload, stub.CallOptions{}, nil, nil)
}

// disposingCall is call but marks the invocation as disposing: the
// client treats handleID as no longer usable once it returns, regardless
// of whether the remote call itself succeeded.
func disposingCall(ctx context.Context, sess *session.ClientSession, handleID int64, selector uint32, payload []byte) ([]byte, error) {
	return stub.Call(ctx, sess.Conn(), handleID, selector, payload, stub.CallOptions{Disposer: true}, nil, nil)
}

// encodeTxnRef writes txn's handle id, the same "0 means bogus" framing
// internal/server/codec.go's decodeTxnRef reads; in practice a stub always
// has a real TransactionStub (even for the bogus transaction, fetched via
// Database.BogusTransaction), so the id written is always a real one.
func encodeTxnRef(e *wire.Encoder, txn engine.Transaction) {
	if h, ok := txn.(handleIDer); ok {
		e.WriteInt64(h.handleID())
		return
	}
	e.WriteInt64(0)
}

func decodeValueResult(d *wire.Decoder) (engine.ValueResult, error) {
	loaded, err := d.ReadBool()
	if err != nil {
		return engine.ValueResult{}, err
	}
	data, err := d.ReadBytes()
	if err != nil {
		return engine.ValueResult{}, err
	}
	return engine.ValueResult{Loaded: loaded, Data: data}, nil
}

func decodeLockResult(d *wire.Decoder) (wire.LockResult, error) {
	b, err := d.ReadUint8()
	if err != nil {
		return 0, err
	}
	return wire.DecodeLockResult(b), nil
}

// nilIfEmpty mirrors internal/server/view.go's helper: an empty bound
// written over the wire round-trips back to Go nil, which the engine
// interfaces treat as "unbounded" for range arguments.
func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func encodeQueryArgs(e *wire.Encoder, args [][]byte) {
	e.WriteUint32(uint32(len(args)))
	for _, a := range args {
		e.WriteBytes(a)
	}
}
