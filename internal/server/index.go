package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

// Index is a View plus identity, name, and lifecycle. It embeds View so
// the view selector range is answered the same way whether the handle
// was obtained as a plain registry view or a full index.
type Index struct {
	View
	idx engine.Index
}

func handlerIndexID(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Index)
	e := wire.NewEncoder()
	e.WriteInt64(s.idx.ID())
	return e.Bytes(), nil
}

func handlerIndexName(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Index)
	e := wire.NewEncoder()
	e.WriteBytes(s.idx.Name())
	return e.Bytes(), nil
}

func handlerIndexAsTable(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Index)
	descriptor, err := wire.DecodeDescriptor(payload)
	if err != nil {
		return nil, engine.IllegalStateError("malformed row descriptor")
	}
	tbl, err := s.idx.AsTable(ctx, descriptor)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindTable, &Table{table: tbl, reg: s.reg, bogus: s.bogus})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerIndexEvict(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Index)
	d := wire.NewDecoder(payload)
	low, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed low bound")
	}
	high, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed high bound")
	}
	maxValueLength, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed eviction threshold")
	}
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	// The request carries a value-length threshold rather than a reference
	// to a client-side evictor predicate, so eviction is driven by that
	// threshold instead of an arbitrary remote closure.
	evicted, err := s.idx.Evict(ctx, txn, nilIfEmpty(low), nilIfEmpty(high), func(_, value []byte) bool {
		return int64(len(value)) > maxValueLength
	})
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteInt64(evicted)
	return e.Bytes(), nil
}

func handlerIndexAnalyze(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Index)
	d := wire.NewDecoder(payload)
	low, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed low bound")
	}
	high, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed high bound")
	}
	stats, err := s.idx.Analyze(ctx, nilIfEmpty(low), nilIfEmpty(high))
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(wire.EncodeIndexStats(stats))
	return e.Bytes(), nil
}

func handlerIndexVerify(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Index)
	observerID, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed observer reference")
	}
	var observer engine.Observer
	if observerID != 0 {
		h, err := s.reg.MustLookup(observerID)
		if err != nil {
			return nil, engine.IllegalStateError(err.Error())
		}
		observer, _ = h.Value.(engine.Observer)
	}
	ok, err := s.idx.Verify(ctx, observer)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerIndexClose(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Index).idx.Close(ctx)
}

func handlerIndexDrop(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Index).idx.Drop(ctx)
}

func handlerIndexIsClosed(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Index)
	e := wire.NewEncoder()
	e.WriteBool(s.idx.IsClosed())
	return e.Bytes(), nil
}

// RegisterIndex binds the Index-kind selector range onto d.
func RegisterIndex(d *rpc.Dispatcher) {
	d.Register(wire.SelIndexID, handlerIndexID)
	d.Register(wire.SelIndexName, handlerIndexName)
	d.Register(wire.SelIndexAsTable, handlerIndexAsTable)
	d.Register(wire.SelIndexEvict, handlerIndexEvict)
	d.Register(wire.SelIndexAnalyze, handlerIndexAnalyze)
	d.Register(wire.SelIndexVerify, handlerIndexVerify)
	d.Register(wire.SelIndexClose, handlerIndexClose)
	d.Register(wire.SelIndexDrop, handlerIndexDrop)
	d.Register(wire.SelIndexIsClosed, handlerIndexIsClosed)
}
