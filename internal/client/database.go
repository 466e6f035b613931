package client

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// DatabaseStub is the client-side proxy for the root engine.Database
// handle: the first handle a session acquires, from which every other
// stub descends. id is always the session's well-known root handle id.
type DatabaseStub struct {
	sess *session.ClientSession
	id   int64
}

// NewDatabaseStub wraps sess's root handle id as an engine.Database.
func NewDatabaseStub(sess *session.ClientSession, rootID int64) *DatabaseStub {
	return &DatabaseStub{sess: sess, id: rootID}
}

func (db *DatabaseStub) handleID() int64 { return db.id }

func (db *DatabaseStub) Open(ctx context.Context, name string) (engine.Index, error) {
	e := wire.NewEncoder()
	e.WriteString(name)
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseOpen, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newIndexStub(db.sess, id), nil
}

func (db *DatabaseStub) Find(ctx context.Context, name string) (engine.Index, bool, error) {
	e := wire.NewEncoder()
	e.WriteString(name)
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseFind, e.Bytes())
	if err != nil {
		return nil, false, err
	}
	d := wire.NewDecoder(payload)
	ok, err := d.ReadBool()
	if err != nil {
		return nil, false, err
	}
	id, err := d.ReadInt64()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return newIndexStub(db.sess, id), true, nil
}

func (db *DatabaseStub) IndexByID(ctx context.Context, id int64) (engine.Index, bool, error) {
	e := wire.NewEncoder()
	e.WriteInt64(id)
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseIndexByID, e.Bytes())
	if err != nil {
		return nil, false, err
	}
	d := wire.NewDecoder(payload)
	ok, err := d.ReadBool()
	if err != nil {
		return nil, false, err
	}
	handleID, err := d.ReadInt64()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return newIndexStub(db.sess, handleID), true, nil
}

func (db *DatabaseStub) Rename(ctx context.Context, idx engine.Index, newName string) error {
	h, ok := idx.(handleIDer)
	if !ok {
		return engine.IllegalStateError("index was not produced by this session")
	}
	e := wire.NewEncoder()
	e.WriteInt64(h.handleID())
	e.WriteString(newName)
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseRename, e.Bytes())
	return err
}

// clientRunnable defers DeleteIndex's actual drop to a second round trip,
// the same two-phase shape engine.Database.DeleteIndex describes.
type clientRunnable struct {
	sess  *session.ClientSession
	dbID  int64
	idxID int64
}

func (r *clientRunnable) Run(ctx context.Context) error {
	e := wire.NewEncoder()
	e.WriteInt64(r.idxID)
	_, err := call(ctx, r.sess, r.dbID, wire.SelDatabaseDeleteIndex, e.Bytes())
	return err
}

func (db *DatabaseStub) DeleteIndex(ctx context.Context, idx engine.Index) (engine.Runnable, error) {
	h, ok := idx.(handleIDer)
	if !ok {
		return nil, engine.IllegalStateError("index was not produced by this session")
	}
	return &clientRunnable{sess: db.sess, dbID: db.id, idxID: h.handleID()}, nil
}

func (db *DatabaseStub) NewTemporaryIndex(ctx context.Context) (engine.Index, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseNewTemporaryIndex, nil)
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newIndexStub(db.sess, id), nil
}

func (db *DatabaseStub) RegistryByName(ctx context.Context) (engine.View, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseRegistryByName, nil)
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newViewStub(db.sess, id), nil
}

func (db *DatabaseStub) RegistryByID(ctx context.Context) (engine.View, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseRegistryByID, nil)
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newViewStub(db.sess, id), nil
}

func (db *DatabaseStub) NewTransaction(ctx context.Context, durability wire.DurabilityMode) (engine.Transaction, error) {
	e := wire.NewEncoder()
	e.WriteUint8(wire.EncodeDurabilityMode(durability))
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseNewTransaction, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newTransactionStub(db.sess, id), nil
}

func (db *DatabaseStub) BogusTransaction() engine.Transaction {
	payload, err := call(context.Background(), db.sess, db.id, wire.SelDatabaseBogusTransaction, nil)
	if err != nil {
		return nil
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil
	}
	return newTransactionStub(db.sess, id)
}

// CustomWriter/PrepareWriter require in-process custom handler
// registration the remote layer does not support; see
// internal/engine/database.go's doc comment on these two methods.
func (db *DatabaseStub) CustomWriter(ctx context.Context, name string) (io.Writer, error) {
	return nil, engine.UnsupportedOperationError("custom writers are not supported remotely")
}

func (db *DatabaseStub) PrepareWriter(ctx context.Context, name string) (io.Writer, error) {
	return nil, engine.UnsupportedOperationError("prepare writers are not supported remotely")
}

func (db *DatabaseStub) NewSorter(ctx context.Context) (engine.Sorter, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseNewSorter, nil)
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newSorterStub(db.sess, id), nil
}

func (db *DatabaseStub) Preallocate(ctx context.Context, bytesCount int64) error {
	e := wire.NewEncoder()
	e.WriteInt64(bytesCount)
	_, err := call(ctx, db.sess, db.id, wire.SelDatabasePreallocate, e.Bytes())
	return err
}

func (db *DatabaseStub) CapacityLimit(ctx context.Context) (int64, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseCapacityLimit, nil)
	if err != nil {
		return 0, err
	}
	return wire.NewDecoder(payload).ReadInt64()
}

func (db *DatabaseStub) SetCapacityLimit(ctx context.Context, bytesCount int64) error {
	e := wire.NewEncoder()
	e.WriteInt64(bytesCount)
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseSetCapacityLimit, e.Bytes())
	return err
}

func (db *DatabaseStub) BeginSnapshot(ctx context.Context) (engine.Snapshot, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseBeginSnapshot, nil)
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newSnapshotStub(db.sess, id), nil
}

func (db *DatabaseStub) CreateCachePrimer(ctx context.Context) ([]byte, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseCreateCachePrimer, nil)
	if err != nil {
		return nil, err
	}
	return wire.NewDecoder(payload).ReadBytes()
}

func (db *DatabaseStub) ApplyCachePrimer(ctx context.Context, primer []byte) error {
	e := wire.NewEncoder()
	e.WriteBytes(primer)
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseApplyCachePrimer, e.Bytes())
	return err
}

func (db *DatabaseStub) Stats(ctx context.Context) (engine.DatabaseStats, error) {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseStats, nil)
	if err != nil {
		return engine.DatabaseStats{}, err
	}
	d := wire.NewDecoder(payload)
	statsBytes, err := d.ReadBytes()
	if err != nil {
		return engine.DatabaseStats{}, err
	}
	idxStats, err := wire.DecodeIndexStats(statsBytes)
	if err != nil {
		return engine.DatabaseStats{}, err
	}
	checkpointCount, err := d.ReadInt64()
	if err != nil {
		return engine.DatabaseStats{}, err
	}
	return engine.DatabaseStats{IndexStats: idxStats, CheckpointCount: checkpointCount}, nil
}

func (db *DatabaseStub) Flush(ctx context.Context) error {
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseFlush, nil)
	return err
}

func (db *DatabaseStub) Sync(ctx context.Context) error {
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseSync, nil)
	return err
}

func (db *DatabaseStub) Checkpoint(ctx context.Context) error {
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseCheckpoint, nil)
	return err
}

func (db *DatabaseStub) CompactFile(ctx context.Context, targetRatio float64) (bool, error) {
	e := wire.NewEncoder()
	e.WriteUint64(float64bits(targetRatio))
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseCompactFile, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

// Verify registers observer as a remote proxy (see internal/client/observer.go)
// so the server's node-visit/pass/fail events during the walk are pushed
// back to it in real time, then runs the verify itself.
func (db *DatabaseStub) Verify(ctx context.Context, observer engine.Observer) (bool, error) {
	observerID, release, err := registerRemoteObserver(ctx, db.sess, observer)
	if err != nil {
		return false, err
	}
	defer release()

	e := wire.NewEncoder()
	e.WriteInt64(observerID)
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseVerify, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (db *DatabaseStub) IsLeader(ctx context.Context) bool {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseIsLeader, nil)
	if err != nil {
		return false
	}
	ok, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return false
	}
	return ok
}

// UponLeader registers n's Acquired/Lost edges as a reverse-call
// correlation id the server pushes SelLeaderAcquired/SelLeaderLost to
// (internal/server/database.go's handlerDatabaseUponLeader), the same
// push mechanism Verify's observer forwarding uses.
func (db *DatabaseStub) UponLeader(ctx context.Context, n engine.LeaderNotifier) error {
	var correlationID int64
	rev := db.sess.Reverse()
	if rev != nil {
		correlationID = rev.Register(func(ctx context.Context, selector uint32, _ []byte) []byte {
			switch selector {
			case wire.SelLeaderAcquired:
				if n.Acquired != nil {
					n.Acquired()
				}
			case wire.SelLeaderLost:
				if n.Lost != nil {
					n.Lost()
				}
				// Edge-triggered and self-disposing: this registration has
				// served its one Lost edge.
				rev.Release(correlationID)
			}
			return nil
		})
	}

	e := wire.NewEncoder()
	e.WriteInt64(correlationID)
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseUponLeader, e.Bytes())
	return err
}

func (db *DatabaseStub) Failover(ctx context.Context) error {
	_, err := call(ctx, db.sess, db.id, wire.SelDatabaseFailover, nil)
	return err
}

func (db *DatabaseStub) Close(ctx context.Context) error {
	_, err := disposingCall(ctx, db.sess, db.id, wire.SelDatabaseClose, nil)
	return err
}

func (db *DatabaseStub) CloseWithCause(ctx context.Context, cause error) error {
	e := wire.NewEncoder()
	if cause != nil {
		e.WriteString(cause.Error())
	} else {
		e.WriteString("")
	}
	_, err := disposingCall(ctx, db.sess, db.id, wire.SelDatabaseCloseWithCause, e.Bytes())
	return err
}

func (db *DatabaseStub) IsClosed(ctx context.Context) bool {
	payload, err := call(ctx, db.sess, db.id, wire.SelDatabaseIsClosed, nil)
	if err != nil {
		return true
	}
	ok, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return true
	}
	return ok
}

func (db *DatabaseStub) Shutdown(ctx context.Context) error {
	_, err := disposingCall(ctx, db.sess, db.id, wire.SelDatabaseShutdown, nil)
	return err
}
