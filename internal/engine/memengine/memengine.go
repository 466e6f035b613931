// Package memengine is a minimal in-process reference implementation of
// internal/engine's storage interfaces, used by server-side tests and by
// a local (non-badger) run mode. It trades performance and crash
// durability for simplicity: everything lives in Go maps guarded by a
// single mutex per index, there is no write-ahead log, and "durability
// mode" is tracked but has no effect beyond being reported back.
package memengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// Database is the in-memory Database implementation.
type Database struct {
	mu               sync.RWMutex
	indexes          map[string]*Index
	byID             map[int64]*Index
	nextID           atomic.Int64
	nextTxnID        atomic.Int64
	bogus            *Transaction
	closed           atomic.Bool
	closeErr         error
	capacityLimit    int64
	leaderNotifiers  []engine.LeaderNotifier
	checkpointCount  atomic.Int64
}

// New creates an empty in-memory database.
func New() *Database {
	db := &Database{
		indexes:       make(map[string]*Index),
		byID:          make(map[int64]*Index),
		capacityLimit: -1,
	}
	db.bogus = &Transaction{bogus: true, durability: wire.DurabilitySync}
	return db
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

func (db *Database) Open(ctx context.Context, name string) (engine.Index, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if idx, ok := db.indexes[name]; ok {
		return idx, nil
	}
	idx := newIndex(db.nextID.Add(1), name)
	db.indexes[name] = idx
	db.byID[idx.id] = idx
	return idx, nil
}

func (db *Database) Find(ctx context.Context, name string) (engine.Index, bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, false, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	idx, ok := db.indexes[name]
	return idx, ok, nil
}

func (db *Database) IndexByID(ctx context.Context, id int64) (engine.Index, bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, false, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	idx, ok := db.byID[id]
	return idx, ok, nil
}

func (db *Database) Rename(ctx context.Context, idx engine.Index, newName string) error {
	mi, ok := idx.(*Index)
	if !ok {
		return engine.IllegalStateError("foreign index handle")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.indexes[newName]; exists {
		return engine.ViewConstraintError(fmt.Sprintf("index %q already exists", newName))
	}
	delete(db.indexes, mi.name)
	mi.mu.Lock()
	mi.name = newName
	mi.mu.Unlock()
	db.indexes[newName] = mi
	return nil
}

func (db *Database) DeleteIndex(ctx context.Context, idx engine.Index) (engine.Runnable, error) {
	mi, ok := idx.(*Index)
	if !ok {
		return nil, engine.IllegalStateError("foreign index handle")
	}
	return runnableFunc(func(ctx context.Context) error {
		db.mu.Lock()
		delete(db.indexes, mi.name)
		delete(db.byID, mi.id)
		db.mu.Unlock()
		mi.closed.Store(true)
		return nil
	}), nil
}

func (db *Database) NewTemporaryIndex(ctx context.Context) (engine.Index, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	name := fmt.Sprintf("_temp_%d", db.nextID.Load()+1)
	idx := newIndex(db.nextID.Add(1), name)
	idx.temporary = true
	db.indexes[name] = idx
	db.byID[idx.id] = idx
	return idx, nil
}

func (db *Database) RegistryByName(ctx context.Context) (engine.View, error) {
	return db.registryView(false), nil
}

func (db *Database) RegistryByID(ctx context.Context) (engine.View, error) {
	return db.registryView(true), nil
}

func (db *Database) registryView(byID bool) engine.View {
	db.mu.RLock()
	defer db.mu.RUnlock()
	idx := newIndex(0, "_registry")
	for name, mi := range db.indexes {
		if byID {
			idx.putLocked([]byte(fmt.Sprintf("%d", mi.id)), []byte(name))
		} else {
			idx.putLocked([]byte(name), []byte(fmt.Sprintf("%d", mi.id)))
		}
	}
	return idx
}

func (db *Database) NewTransaction(ctx context.Context, durability wire.DurabilityMode) (engine.Transaction, error) {
	return &Transaction{
		id:         db.nextTxnID.Add(1),
		lockMode:   wire.LockModeUpgradable,
		durability: durability,
	}, nil
}

func (db *Database) BogusTransaction() engine.Transaction { return db.bogus }

type runnableFunc func(ctx context.Context) error

func (f runnableFunc) Run(ctx context.Context) error { return f(ctx) }
