package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

// Database is the root skeleton: the only handle a session starts with,
// from which every Index/Transaction/Sorter/Snapshot handle descends.
type Database struct {
	db  engine.Database
	reg *registry.Registry
}

// NewDatabase registers db as the session's root handle.
func NewDatabase(reg *registry.Registry, db engine.Database) *registry.Handle {
	return reg.Register(registry.KindDatabase, &Database{db: db, reg: reg})
}

func (s *Database) registerTxn(txn engine.Transaction) *registry.Handle {
	return s.reg.Register(registry.KindTransaction, &Transaction{txn: txn})
}

func handlerDatabaseOpen(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	name, err := wire.NewDecoder(payload).ReadString()
	if err != nil {
		return nil, engine.IllegalStateError("malformed index name")
	}
	idx, err := s.db.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	h := registerIndex(s.reg, idx, s.db.BogusTransaction())
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabaseFind(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	name, err := wire.NewDecoder(payload).ReadString()
	if err != nil {
		return nil, engine.IllegalStateError("malformed index name")
	}
	idx, ok, err := s.db.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	if ok {
		h := registerIndex(s.reg, idx, s.db.BogusTransaction())
		e.WriteInt64(h.ID)
	} else {
		e.WriteInt64(0)
	}
	return e.Bytes(), nil
}

func handlerDatabaseIndexByID(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed index id")
	}
	idx, ok, err := s.db.IndexByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	if ok {
		h := registerIndex(s.reg, idx, s.db.BogusTransaction())
		e.WriteInt64(h.ID)
	} else {
		e.WriteInt64(0)
	}
	return e.Bytes(), nil
}

func handlerDatabaseRename(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	d := wire.NewDecoder(payload)
	idxID, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed index reference")
	}
	newName, err := d.ReadString()
	if err != nil {
		return nil, engine.IllegalStateError("malformed new name")
	}
	h, err := s.reg.MustLookup(idxID)
	if err != nil {
		return nil, engine.IllegalStateError(err.Error())
	}
	skel, ok := h.Value.(*Index)
	if !ok {
		return nil, engine.IllegalStateError("handle is not an index")
	}
	if err := s.db.Rename(ctx, skel.idx, newName); err != nil {
		return nil, err
	}
	return nil, nil
}

func handlerDatabaseDeleteIndex(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	idxID, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed index reference")
	}
	h, err := s.reg.MustLookup(idxID)
	if err != nil {
		return nil, engine.IllegalStateError(err.Error())
	}
	skel, ok := h.Value.(*Index)
	if !ok {
		return nil, engine.IllegalStateError("handle is not an index")
	}
	runnable, err := s.db.DeleteIndex(ctx, skel.idx)
	if err != nil {
		return nil, err
	}
	if err := runnable.Run(ctx); err != nil {
		return nil, err
	}
	s.reg.Dispose(idxID, registry.DetachExplicitDispose)
	return nil, nil
}

func handlerDatabaseNewTemporaryIndex(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	idx, err := s.db.NewTemporaryIndex(ctx)
	if err != nil {
		return nil, err
	}
	h := registerIndex(s.reg, idx, s.db.BogusTransaction())
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabaseRegistryByName(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	v, err := s.db.RegistryByName(ctx)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindView, &View{view: v, reg: s.reg, bogus: s.db.BogusTransaction()})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabaseRegistryByID(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	v, err := s.db.RegistryByID(ctx)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindView, &View{view: v, reg: s.reg, bogus: s.db.BogusTransaction()})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabaseNewTransaction(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	mode, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return nil, engine.IllegalStateError("malformed durability mode")
	}
	txn, err := s.db.NewTransaction(ctx, wire.DecodeDurabilityMode(mode))
	if err != nil {
		return nil, err
	}
	h := s.registerTxn(txn)
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabaseBogusTransaction(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	h := s.registerTxn(s.db.BogusTransaction())
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabaseNewSorter(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	so, err := s.db.NewSorter(ctx)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindSorter, &Sorter{sorter: so, reg: s.reg, bogus: s.db.BogusTransaction()})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabaseCapacityLimit(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	limit, err := s.db.CapacityLimit(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteInt64(limit)
	return e.Bytes(), nil
}

func handlerDatabaseSetCapacityLimit(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	limit, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed capacity limit")
	}
	return nil, s.db.SetCapacityLimit(ctx, limit)
}

func handlerDatabaseBeginSnapshot(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	snap, err := s.db.BeginSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindSnapshot, &Snapshot{snapshot: snap, reg: s.reg})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerDatabasePreallocate(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	bytesCount, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed preallocate size")
	}
	return nil, s.db.Preallocate(ctx, bytesCount)
}

func handlerDatabaseCreateCachePrimer(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	primer, err := s.db.CreateCachePrimer(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(primer)
	return e.Bytes(), nil
}

func handlerDatabaseApplyCachePrimer(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	primer, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed cache primer")
	}
	return nil, s.db.ApplyCachePrimer(ctx, primer)
}

// handlerDatabaseUponLeader registers a LeaderNotifier whose Acquired/Lost
// edges are forwarded to the client's correlationID as unacknowledged
// pushes (SelLeaderAcquired/SelLeaderLost), fired on the session's
// connection the same way a remoteObserver pushes node events. The push
// runs detached from the request's own context since leadership can
// change long after this registration call itself has returned.
func handlerDatabaseUponLeader(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	correlationID, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed leader notifier correlation id")
	}

	conn := s.reg.Conn
	push := func(selector uint32) {
		if conn == nil {
			return
		}
		_, _ = conn.Call(context.Background(), wire.RequestFrame{
			PipeID: uint64(correlationID), Selector: selector, NoReply: true,
		})
	}

	return nil, s.db.UponLeader(ctx, engine.LeaderNotifier{
		Acquired: func() { push(wire.SelLeaderAcquired) },
		Lost:     func() { push(wire.SelLeaderLost) },
	})
}

func handlerDatabaseFailover(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Database).db.Failover(ctx)
}

func handlerDatabaseStats(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	stats, err := s.db.Stats(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(wire.EncodeIndexStats(stats.IndexStats))
	e.WriteInt64(stats.CheckpointCount)
	return e.Bytes(), nil
}

func handlerDatabaseFlush(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Database).db.Flush(ctx)
}

func handlerDatabaseSync(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Database).db.Sync(ctx)
}

func handlerDatabaseCheckpoint(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Database).db.Checkpoint(ctx)
}

func handlerDatabaseCompactFile(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	bits, err := wire.NewDecoder(payload).ReadUint64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed compaction ratio")
	}
	finished, err := s.db.CompactFile(ctx, float64frombits(bits))
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(finished)
	return e.Bytes(), nil
}

func handlerDatabaseVerify(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	d := wire.NewDecoder(payload)
	observerID, err := d.ReadInt64()
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
	ok, err := s.db.Verify(ctx, observer)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerDatabaseIsLeader(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	e := wire.NewEncoder()
	e.WriteBool(s.db.IsLeader(ctx))
	return e.Bytes(), nil
}

func handlerDatabaseClose(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Database).db.Close(ctx)
}

func handlerDatabaseCloseWithCause(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	msg, err := wire.NewDecoder(payload).ReadString()
	if err != nil {
		return nil, engine.IllegalStateError("malformed close cause")
	}
	var cause error
	if msg != "" {
		cause = engine.IllegalStateError(msg)
	}
	return nil, s.db.CloseWithCause(ctx, cause)
}

func handlerDatabaseIsClosed(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Database)
	e := wire.NewEncoder()
	e.WriteBool(s.db.IsClosed(ctx))
	return e.Bytes(), nil
}

func handlerDatabaseShutdown(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Database).db.Shutdown(ctx)
}

// RegisterDatabase binds every Database-kind selector onto d.
func RegisterDatabase(d *rpc.Dispatcher) {
	d.Register(wire.SelDatabaseOpen, handlerDatabaseOpen)
	d.Register(wire.SelDatabaseFind, handlerDatabaseFind)
	d.Register(wire.SelDatabaseIndexByID, handlerDatabaseIndexByID)
	d.Register(wire.SelDatabaseRename, handlerDatabaseRename)
	d.Register(wire.SelDatabaseDeleteIndex, handlerDatabaseDeleteIndex)
	d.Register(wire.SelDatabaseNewTemporaryIndex, handlerDatabaseNewTemporaryIndex)
	d.Register(wire.SelDatabaseRegistryByName, handlerDatabaseRegistryByName)
	d.Register(wire.SelDatabaseRegistryByID, handlerDatabaseRegistryByID)
	d.Register(wire.SelDatabaseNewTransaction, handlerDatabaseNewTransaction)
	d.Register(wire.SelDatabaseBogusTransaction, handlerDatabaseBogusTransaction)
	d.Register(wire.SelDatabaseNewSorter, handlerDatabaseNewSorter)
	d.Register(wire.SelDatabaseCapacityLimit, handlerDatabaseCapacityLimit)
	d.Register(wire.SelDatabaseSetCapacityLimit, handlerDatabaseSetCapacityLimit)
	d.Register(wire.SelDatabasePreallocate, handlerDatabasePreallocate)
	d.Register(wire.SelDatabaseBeginSnapshot, handlerDatabaseBeginSnapshot)
	d.Register(wire.SelDatabaseCreateCachePrimer, handlerDatabaseCreateCachePrimer)
	d.Register(wire.SelDatabaseApplyCachePrimer, handlerDatabaseApplyCachePrimer)
	d.Register(wire.SelDatabaseStats, handlerDatabaseStats)
	d.Register(wire.SelDatabaseFlush, handlerDatabaseFlush)
	d.Register(wire.SelDatabaseSync, handlerDatabaseSync)
	d.Register(wire.SelDatabaseCheckpoint, handlerDatabaseCheckpoint)
	d.Register(wire.SelDatabaseCompactFile, handlerDatabaseCompactFile)
	d.Register(wire.SelDatabaseVerify, handlerDatabaseVerify)
	d.Register(wire.SelDatabaseIsLeader, handlerDatabaseIsLeader)
	d.Register(wire.SelDatabaseUponLeader, handlerDatabaseUponLeader)
	d.Register(wire.SelDatabaseFailover, handlerDatabaseFailover)
	d.Register(wire.SelDatabaseClose, handlerDatabaseClose)
	d.Register(wire.SelDatabaseCloseWithCause, handlerDatabaseCloseWithCause)
	d.Register(wire.SelDatabaseIsClosed, handlerDatabaseIsClosed)
	d.Register(wire.SelDatabaseShutdown, handlerDatabaseShutdown)
	d.Register(wire.SelDatabaseRegisterObserver, handlerDatabaseRegisterObserver)
	d.Register(wire.SelObserverRelease, handlerObserverRelease)
}
