package memengine

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/engine"
)

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
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.capacityLimit, nil
}

func (db *Database) SetCapacityLimit(ctx context.Context, bytes int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.capacityLimit = bytes
	return nil
}

func (db *Database) BeginSnapshot(ctx context.Context) (engine.Snapshot, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return newSnapshot(db), nil
}

// CreateCachePrimer/ApplyCachePrimer have nothing to do against an
// always-resident in-memory store; they round-trip an empty primer so
// callers exercising the protocol see consistent (if inert) behavior.
func (db *Database) CreateCachePrimer(ctx context.Context) ([]byte, error) {
	return []byte{}, nil
}

func (db *Database) ApplyCachePrimer(ctx context.Context, primer []byte) error {
	return nil
}

func (db *Database) Stats(ctx context.Context) (engine.DatabaseStats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var stats engine.DatabaseStats
	for _, idx := range db.indexes {
		idx.mu.RLock()
		for _, k := range idx.keys {
			stats.KeyBytes += int64(len(k))
			stats.ValueBytes += int64(len(idx.data[k]))
			stats.EntryCount++
		}
		idx.mu.RUnlock()
	}
	stats.TotalBytes = stats.KeyBytes + stats.ValueBytes
	stats.CheckpointCount = db.checkpointCount.Load()
	return stats, nil
}

func (db *Database) Flush(ctx context.Context) error { return nil }
func (db *Database) Sync(ctx context.Context) error  { return nil }

func (db *Database) Checkpoint(ctx context.Context) error {
	db.checkpointCount.Add(1)
	return nil
}

// CompactFile is a no-op: there is no backing file to compact, so it
// always reports that no compaction was performed.
func (db *Database) CompactFile(ctx context.Context, targetRatio float64) (bool, error) {
	return false, nil
}

func (db *Database) Verify(ctx context.Context, observer engine.Observer) (bool, error) {
	db.mu.RLock()
	indexes := make([]*Index, 0, len(db.indexes))
	for _, idx := range db.indexes {
		indexes = append(indexes, idx)
	}
	db.mu.RUnlock()
	for _, idx := range indexes {
		ok, err := idx.Verify(ctx, observer)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

// IsLeader reports true until the database is closed: the mem engine only
// ever runs standalone, so it is trivially the leader of its own single
// instance.
func (db *Database) IsLeader(ctx context.Context) bool { return !db.closed.Load() }

func (db *Database) UponLeader(ctx context.Context, n engine.LeaderNotifier) error {
	if n.Acquired != nil {
		n.Acquired()
	}
	db.mu.Lock()
	db.leaderNotifiers = append(db.leaderNotifiers, n)
	db.mu.Unlock()
	return nil
}

func (db *Database) Failover(ctx context.Context) error {
	db.mu.Lock()
	notifiers := db.leaderNotifiers
	db.leaderNotifiers = nil
	db.mu.Unlock()
	for _, n := range notifiers {
		if n.Lost != nil {
			n.Lost()
		}
	}
	return nil
}

func (db *Database) Close(ctx context.Context) error {
	return db.CloseWithCause(ctx, nil)
}

func (db *Database) CloseWithCause(ctx context.Context, cause error) error {
	db.closed.Store(true)
	db.closeErr = cause
	return nil
}

func (db *Database) IsClosed(ctx context.Context) bool { return db.closed.Load() }

func (db *Database) Shutdown(ctx context.Context) error {
	if err := db.Flush(ctx); err != nil {
		return err
	}
	if err := db.Checkpoint(ctx); err != nil {
		return err
	}
	return db.Close(ctx)
}
