// Package server implements the server-side skeleton half of every
// capability type: one small struct per registry.HandleKind, each
// holding the engine object it wraps plus the session registry it
// registers child handles into. Handlers are plain functions matching
// rpc.Handler, registered against their selector in Register.
package server

import (
	"math"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/wire"
)

// float64bits and float64frombits round-trip a float64 through the wire
// codec's Uint64 primitive, which is all it offers since Encoder/Decoder
// has no native float support (internal/wire/codec.go).
func float64bits(f float64) uint64     { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// decodeTxnRef reads a leading handle id (0 meaning "no transaction",
// encoded as the database's bogus transaction) and resolves it against
// reg, leaving d positioned just past the id.
func decodeTxnRef(reg *registry.Registry, bogus engine.Transaction, d *wire.Decoder) (engine.Transaction, error) {
	id, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed transaction reference")
	}
	if id == 0 {
		return bogus, nil
	}
	h, err := reg.MustLookup(id)
	if err != nil {
		return nil, engine.IllegalStateError(err.Error())
	}
	txn, ok := h.Value.(engine.Transaction)
	if !ok {
		return nil, engine.IllegalStateError("handle is not a transaction")
	}
	return txn, nil
}

// decodeTxnRefWithID is decodeTxnRef but additionally returns the raw
// handle id that was decoded (0 for the bogus transaction), for callers
// that need to remember which handle a txn reference pointed at.
func decodeTxnRefWithID(reg *registry.Registry, bogus engine.Transaction, d *wire.Decoder) (engine.Transaction, int64, error) {
	id, err := d.ReadInt64()
	if err != nil {
		return nil, 0, engine.IllegalStateError("malformed transaction reference")
	}
	if id == 0 {
		return bogus, 0, nil
	}
	h, err := reg.MustLookup(id)
	if err != nil {
		return nil, 0, engine.IllegalStateError(err.Error())
	}
	txn, ok := h.Value.(engine.Transaction)
	if !ok {
		return nil, 0, engine.IllegalStateError("handle is not a transaction")
	}
	return txn, id, nil
}

func encodeValueResult(e *wire.Encoder, v engine.ValueResult) {
	e.WriteBool(v.Loaded)
	e.WriteBytes(v.Data)
}

func encodeLockResult(e *wire.Encoder, r wire.LockResult) {
	e.WriteUint8(wire.EncodeLockResult(r))
}

// registerIndex wraps idx as both a View and Index skeleton under one
// handle, since internal/engine.Index embeds View and the wire protocol
// addresses it by a single handle id regardless of which selector range
// a given call falls in.
func registerIndex(reg *registry.Registry, idx engine.Index, bogus engine.Transaction) *registry.Handle {
	return reg.Register(registry.KindIndex, &Index{View: View{view: idx, reg: reg, bogus: bogus}, idx: idx})
}
