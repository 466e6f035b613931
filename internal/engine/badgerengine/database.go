package badgerengine

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/logger"
	"github.com/tupldb/remote/internal/wire"
)

// Database wraps a *badger.DB, presenting it through engine.Database.
// Index identity and the name registry live in the same keyspace as
// index data (§ package doc), so opening or renaming an index is a
// single badger transaction rather than a separate catalog store.
type Database struct {
	db              *badger.DB
	mu              sync.RWMutex
	nextTxnID       atomic.Int64
	bogus           *Transaction
	capacityLimit   atomic.Int64
	checkpointCount atomic.Int64
	closed          atomic.Bool
	closeErr        error
}

// Open opens (creating if necessary) a badger database at dir. Matches
// the teacher's pattern of constructing its metadata store around an
// already-open *badger.DB rather than hiding badger.Options behind the
// engine package; callers that need non-default options should open
// their own *badger.DB and use Wrap instead.
func Open(dir string) (*Database, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, engine.IOError("open badger database: " + err.Error())
	}
	return Wrap(db), nil
}

// Wrap adapts an already-open *badger.DB.
func Wrap(db *badger.DB) *Database {
	d := &Database{db: db}
	d.capacityLimit.Store(-1)
	d.bogus = &Transaction{bogus: true, durability: wire.DurabilitySync}
	return d
}

func (db *Database) checkOpen() error {
	if db.closed.Load() {
		if db.closeErr != nil {
			return engine.ClosedDatabaseError(db.closeErr.Error())
		}
		return engine.ClosedDatabaseError("database closed")
	}
	return nil
}

// lookupOrCreateIndex resolves name to an index id, creating the
// registry entry and allocating a fresh id if it does not exist yet.
func (db *Database) lookupOrCreateIndex(name string, temporary bool) (*Index, error) {
	var id int64
	var created bool
	err := db.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(metaNameKey(name))
		if err == nil {
			return item.Value(func(val []byte) error {
				id = decodeInt64(val)
				return nil
			})
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		nextID, err := nextIDLocked(txn)
		if err != nil {
			return err
		}
		id = nextID
		created = true
		if err := txn.Set(metaNameKey(name), encodeInt64(id)); err != nil {
			return err
		}
		return txn.Set(metaIDKey(id), []byte(name))
	})
	if err != nil {
		return nil, engine.IOError(err.Error())
	}
	if created {
		logger.Debugf("badgerengine: created index %q (id %d)", name, id)
	}
	return newIndex(db, id, name, temporary), nil
}

func nextIDLocked(txn *badger.Txn) (int64, error) {
	var next int64 = 1
	item, err := txn.Get(metaNextIDKey)
	if err == nil {
		if verr := item.Value(func(val []byte) error {
			next = decodeInt64(val)
			return nil
		}); verr != nil {
			return 0, verr
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}
	if err := txn.Set(metaNextIDKey, encodeInt64(next+1)); err != nil {
		return 0, err
	}
	return next, nil
}

func (db *Database) Open(ctx context.Context, name string) (engine.Index, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.lookupOrCreateIndex(name, false)
}

func (db *Database) Find(ctx context.Context, name string) (engine.Index, bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, false, err
	}
	var id int64
	var found bool
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaNameKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			id = decodeInt64(val)
			return nil
		})
	})
	if err != nil {
		return nil, false, engine.IOError(err.Error())
	}
	if !found {
		return nil, false, nil
	}
	return newIndex(db, id, name, false), true, nil
}

func (db *Database) IndexByID(ctx context.Context, id int64) (engine.Index, bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, false, err
	}
	var name string
	var found bool
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaIDKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			name = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, false, engine.IOError(err.Error())
	}
	if !found {
		return nil, false, nil
	}
	return newIndex(db, id, name, false), true, nil
}

func (db *Database) Rename(ctx context.Context, idx engine.Index, newName string) error {
	bi, ok := idx.(*Index)
	if !ok {
		return engine.IllegalStateError("foreign index handle")
	}
	return db.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaNameKey(newName)); err == nil {
			return engine.ViewConstraintError("index already exists: " + newName)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(metaNameKey(bi.name)); err != nil {
			return err
		}
		if err := txn.Set(metaNameKey(newName), encodeInt64(bi.id)); err != nil {
			return err
		}
		if err := txn.Set(metaIDKey(bi.id), []byte(newName)); err != nil {
			return err
		}
		bi.mu.Lock()
		bi.name = newName
		bi.mu.Unlock()
		return nil
	})
}

// DeleteIndex prepares idx's removal; the returned Runnable performs the
// (potentially large) prefix delete, matching deleteIndex's deferred
// nature in the external interface.
func (db *Database) DeleteIndex(ctx context.Context, idx engine.Index) (engine.Runnable, error) {
	bi, ok := idx.(*Index)
	if !ok {
		return nil, engine.IllegalStateError("foreign index handle")
	}
	return runnableFunc(func(ctx context.Context) error {
		err := db.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(metaNameKey(bi.name)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
			return txn.Delete(metaIDKey(bi.id))
		})
		if err != nil {
			return engine.IOError(err.Error())
		}
		if err := db.db.DropPrefix(indexDataPrefix(bi.id)); err != nil {
			return engine.IOError(err.Error())
		}
		bi.closed.Store(true)
		return nil
	}), nil
}

func (db *Database) NewTemporaryIndex(ctx context.Context) (engine.Index, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	var id int64
	err := db.db.Update(func(txn *badger.Txn) error {
		next, err := nextIDLocked(txn)
		if err != nil {
			return err
		}
		id = next
		return nil
	})
	if err != nil {
		return nil, engine.IOError(err.Error())
	}
	return newIndex(db, id, "", true), nil
}

func (db *Database) RegistryByName(ctx context.Context) (engine.View, error) {
	return newRegistryView(db, false), nil
}

func (db *Database) RegistryByID(ctx context.Context) (engine.View, error) {
	return newRegistryView(db, true), nil
}

func (db *Database) NewTransaction(ctx context.Context, durability wire.DurabilityMode) (engine.Transaction, error) {
	txn := db.db.NewTransaction(true)
	return &Transaction{id: db.nextTxnID.Add(1), db: db, txn: txn, lockMode: wire.LockModeUpgradable, durability: durability}, nil
}

func (db *Database) BogusTransaction() engine.Transaction { return db.bogus }

func (db *Database) CustomWriter(ctx context.Context, name string) (io.Writer, error) {
	return nil, engine.UnsupportedOperationError("custom writer registration is not supported remotely")
}

func (db *Database) PrepareWriter(ctx context.Context, name string) (io.Writer, error) {
	return nil, engine.UnsupportedOperationError("custom writer registration is not supported remotely")
}

func (db *Database) NewSorter(ctx context.Context) (engine.Sorter, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return newSorter(db), nil
}

func (db *Database) Preallocate(ctx context.Context, bytes int64) error { return nil }

func (db *Database) CapacityLimit(ctx context.Context) (int64, error) {
	return db.capacityLimit.Load(), nil
}

func (db *Database) SetCapacityLimit(ctx context.Context, bytes int64) error {
	db.capacityLimit.Store(bytes)
	return nil
}

func (db *Database) BeginSnapshot(ctx context.Context) (engine.Snapshot, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return newSnapshot(db), nil
}

func (db *Database) CreateCachePrimer(ctx context.Context) ([]byte, error) { return []byte{}, nil }
func (db *Database) ApplyCachePrimer(ctx context.Context, primer []byte) error {
	return nil
}

func (db *Database) Stats(ctx context.Context) (engine.DatabaseStats, error) {
	lsm, vlog := db.db.Size()
	return engine.DatabaseStats{
		IndexStats: wire.IndexStats{
			TotalBytes: lsm + vlog,
		},
		CheckpointCount: db.checkpointCount.Load(),
	}, nil
}

func (db *Database) Flush(ctx context.Context) error { return nil }

func (db *Database) Sync(ctx context.Context) error {
	if err := db.db.Sync(); err != nil {
		return engine.IOError(err.Error())
	}
	return nil
}

func (db *Database) Checkpoint(ctx context.Context) error {
	db.checkpointCount.Add(1)
	return db.Sync(ctx)
}

func (db *Database) CompactFile(ctx context.Context, targetRatio float64) (bool, error) {
	if err := db.db.Flatten(1); err != nil {
		return false, engine.IOError(err.Error())
	}
	return true, nil
}

// Verify walks every registered index (via the meta/name registry) and
// delegates to each Index.Verify in turn, mirroring memengine's
// Database-level Verify that visits every index it knows about.
func (db *Database) Verify(ctx context.Context, observer engine.Observer) (bool, error) {
	var ids []int64
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixMeta, 'i', ':'}
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, decodeInt64(key[len(opts.Prefix):]))
		}
		return nil
	})
	if err != nil {
		return false, engine.IOError(err.Error())
	}
	ok := true
	for _, id := range ids {
		idx, found, err := db.IndexByID(ctx, id)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		passed, err := idx.Verify(ctx, observer)
		if err != nil {
			return false, err
		}
		ok = ok && passed
	}
	return ok, nil
}

func (db *Database) IsLeader(ctx context.Context) bool { return !db.closed.Load() }

func (db *Database) UponLeader(ctx context.Context, n engine.LeaderNotifier) error {
	if n.Acquired != nil {
		n.Acquired()
	}
	return nil
}

func (db *Database) Failover(ctx context.Context) error { return nil }

func (db *Database) Close(ctx context.Context) error {
	return db.CloseWithCause(ctx, nil)
}

func (db *Database) CloseWithCause(ctx context.Context, cause error) error {
	db.closed.Store(true)
	db.closeErr = cause
	if err := db.db.Close(); err != nil {
		return engine.IOError(err.Error())
	}
	return nil
}

func (db *Database) IsClosed(ctx context.Context) bool { return db.closed.Load() }

func (db *Database) Shutdown(ctx context.Context) error {
	if err := db.Checkpoint(ctx); err != nil {
		return err
	}
	return db.Close(ctx)
}

type runnableFunc func(ctx context.Context) error

func (f runnableFunc) Run(ctx context.Context) error { return f(ctx) }
