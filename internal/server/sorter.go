package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

// Sorter is the skeleton for an engine.Sorter.
type Sorter struct {
	sorter engine.Sorter
	reg    *registry.Registry
	bogus  engine.Transaction
}

func handlerSorterAdd(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Sorter)
	d := wire.NewDecoder(payload)
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	value, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	return nil, s.sorter.Add(ctx, key, value)
}

func handlerSorterAddBatch(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Sorter)
	d := wire.NewDecoder(payload)
	n, err := d.ReadUint32()
	if err != nil {
		return nil, engine.IllegalStateError("malformed batch count")
	}
	keys := make([][]byte, n)
	values := make([][]byte, n)
	for i := range keys {
		if keys[i], err = d.ReadBytes(); err != nil {
			return nil, engine.IllegalStateError("malformed batch key")
		}
	}
	for i := range values {
		if values[i], err = d.ReadBytes(); err != nil {
			return nil, engine.IllegalStateError("malformed batch value")
		}
	}
	return nil, s.sorter.AddBatch(ctx, keys, values)
}

func handlerSorterAddAll(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Sorter)
	scannerID, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed scanner reference")
	}
	h, err := s.reg.MustLookup(scannerID)
	if err != nil {
		return nil, engine.IllegalStateError(err.Error())
	}
	skel, ok := h.Value.(*Scanner)
	if !ok {
		return nil, engine.IllegalStateError("handle is not a scanner")
	}
	return nil, s.sorter.AddAll(ctx, skel.scanner)
}

func handlerSorterFinish(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Sorter)
	idx, err := s.sorter.Finish(ctx)
	if err != nil {
		return nil, err
	}
	h := registerIndex(s.reg, idx, s.bogus)
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerSorterFinishScan(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Sorter)
	ordering, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return nil, engine.IllegalStateError("malformed ordering")
	}
	scanner, err := s.sorter.FinishScan(ctx, wire.Ordering(ordering))
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindScanner, &Scanner{scanner: scanner})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerSorterProgress(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Sorter)
	// Progress is a float64, encoded the same IEEE-754 bit-pattern way as
	// CompactFile's targetRatio since the wire codec has no float support.
	e := wire.NewEncoder()
	e.WriteUint64(float64bits(s.sorter.Progress()))
	return e.Bytes(), nil
}

func handlerSorterReset(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Sorter).sorter.Reset(ctx)
}

// RegisterSorter binds the Sorter-kind selector range onto d.
func RegisterSorter(d *rpc.Dispatcher) {
	d.Register(wire.SelSorterAdd, handlerSorterAdd)
	d.Register(wire.SelSorterAddBatch, handlerSorterAddBatch)
	d.Register(wire.SelSorterAddAll, handlerSorterAddAll)
	d.Register(wire.SelSorterFinish, handlerSorterFinish)
	d.Register(wire.SelSorterFinishScan, handlerSorterFinishScan)
	d.Register(wire.SelSorterProgress, handlerSorterProgress)
	d.Register(wire.SelSorterReset, handlerSorterReset)
}
