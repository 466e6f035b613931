package badgerengine

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// Index is a badger-backed View/Index: its entries are every key in the
// underlying *badger.DB sharing the indexDataPrefix(id) prefix (keys.go). name is
// mutable under Database.Rename and is therefore guarded by its own
// mutex rather than being treated as immutable identity (only id is).
type Index struct {
	db        *Database
	id        int64
	mu        sync.Mutex
	name      string
	temporary bool
	closed    atomic.Bool
}

func newIndex(db *Database, id int64, name string, temporary bool) *Index {
	return &Index{db: db, id: id, name: name, temporary: temporary}
}

func (idx *Index) checkOpen() error {
	if idx.closed.Load() {
		return engine.ClosedIndexError("index closed")
	}
	return nil
}

// withTxn runs fn against txn's underlying *badger.Txn if txn is a real,
// non-bogus badgerengine.Transaction (no implicit commit: the caller
// owns that transaction's lifecycle); otherwise it runs fn in a
// one-shot badger transaction that commits (update) or discards (view)
// automatically when fn returns.
func (idx *Index) withTxn(txn engine.Transaction, update bool, fn func(*badger.Txn) error) error {
	if bt, ok := txn.(*Transaction); ok && !bt.bogus {
		return fn(bt.txn)
	}
	if update {
		return idx.db.db.Update(fn)
	}
	return idx.db.db.View(fn)
}

func (idx *Index) Ordering() wire.Ordering { return wire.OrderingAscending }

func (idx *Index) ID() int64          { return idx.id }
func (idx *Index) Name() []byte       { idx.mu.Lock(); defer idx.mu.Unlock(); return []byte(idx.name) }
func (idx *Index) NameString() string { idx.mu.Lock(); defer idx.mu.Unlock(); return idx.name }
func (idx *Index) IsClosed() bool     { return idx.closed.Load() }

func (idx *Index) NewCursor(ctx context.Context, txn engine.Transaction) (engine.Cursor, error) {
	if err := idx.checkOpen(); err != nil {
		return nil, err
	}
	return newCursor(idx, txn), nil
}

func (idx *Index) NewAccessor(ctx context.Context, txn engine.Transaction, key []byte) (engine.ValueAccessor, error) {
	if err := idx.checkOpen(); err != nil {
		return nil, err
	}
	return &accessor{idx: idx, txn: txn, key: append([]byte(nil), key...)}, nil
}

func (idx *Index) NewTransaction(ctx context.Context, durability wire.DurabilityMode) (engine.Transaction, error) {
	return idx.db.NewTransaction(ctx, durability)
}

func (idx *Index) IsEmpty(ctx context.Context, txn engine.Transaction) (bool, error) {
	empty := true
	err := idx.withTxn(txn, false, func(t *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = indexDataPrefix(idx.id)
		it := t.NewIterator(opts)
		defer it.Close()
		it.Rewind()
		empty = !it.Valid()
		return nil
	})
	return empty, wrapErr(err)
}

func (idx *Index) Count(ctx context.Context, txn engine.Transaction, low, high []byte) (int64, error) {
	var count int64
	err := idx.withTxn(txn, false, func(t *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = indexDataPrefix(idx.id)
		opts.PrefetchValues = false
		it := t.NewIterator(opts)
		defer it.Close()
		start := idx.boundKey(low)
		for it.Seek(start); it.ValidForPrefix(opts.Prefix); it.Next() {
			k := userKeyFromDataKey(idx.id, it.Item().KeyCopy(nil))
			if high != nil && bytes.Compare(k, high) >= 0 {
				break
			}
			count++
		}
		return nil
	})
	return count, wrapErr(err)
}

func (idx *Index) boundKey(low []byte) []byte {
	if low == nil {
		return indexDataPrefix(idx.id)
	}
	return indexDataKey(idx.id, low)
}

func (idx *Index) Load(ctx context.Context, txn engine.Transaction, key []byte) (engine.ValueResult, error) {
	var result engine.ValueResult
	err := idx.withTxn(txn, false, func(t *badger.Txn) error {
		item, err := t.Get(indexDataKey(idx.id, key))
		if err == badger.ErrKeyNotFound {
			result = engine.ValueResult{Loaded: true, Data: nil}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			result = engine.ValueResult{Loaded: true, Data: append([]byte(nil), val...)}
			return nil
		})
	})
	return result, wrapErr(err)
}

func (idx *Index) Exists(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	var exists bool
	err := idx.withTxn(txn, false, func(t *badger.Txn) error {
		_, err := t.Get(indexDataKey(idx.id, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, wrapErr(err)
}

func (idx *Index) Store(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	var result engine.ValueResult
	err := idx.withTxn(txn, true, func(t *badger.Txn) error {
		dataKey := indexDataKey(idx.id, key)
		old, err := t.Get(dataKey)
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err == nil {
			if verr := old.Value(func(val []byte) error {
				result = engine.ValueResult{Loaded: true, Data: append([]byte(nil), val...)}
				return nil
			}); verr != nil {
				return verr
			}
		} else {
			result = engine.ValueResult{Loaded: true, Data: nil}
		}
		return t.Set(dataKey, value)
	})
	return result, wrapErr(err)
}

func (idx *Index) Exchange(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	return idx.Store(ctx, txn, key, value)
}

func (idx *Index) Insert(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	var inserted bool
	err := idx.withTxn(txn, true, func(t *badger.Txn) error {
		dataKey := indexDataKey(idx.id, key)
		if _, err := t.Get(dataKey); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := t.Set(dataKey, value); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, wrapErr(err)
}

func (idx *Index) Replace(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	var replaced bool
	err := idx.withTxn(txn, true, func(t *badger.Txn) error {
		dataKey := indexDataKey(idx.id, key)
		if _, err := t.Get(dataKey); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		if err := t.Set(dataKey, value); err != nil {
			return err
		}
		replaced = true
		return nil
	})
	return replaced, wrapErr(err)
}

func (idx *Index) Update(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	if len(value) == 0 {
		return idx.Delete(ctx, txn, key)
	}
	_, err := idx.Store(ctx, txn, key, value)
	return err == nil, err
}

func (idx *Index) UpdateWithOld(ctx context.Context, txn engine.Transaction, key, oldValue, newValue []byte) (bool, error) {
	var updated bool
	err := idx.withTxn(txn, true, func(t *badger.Txn) error {
		dataKey := indexDataKey(idx.id, key)
		item, err := t.Get(dataKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var match bool
		if verr := item.Value(func(val []byte) error {
			match = bytes.Equal(val, oldValue)
			return nil
		}); verr != nil {
			return verr
		}
		if !match {
			return nil
		}
		if err := t.Set(dataKey, newValue); err != nil {
			return err
		}
		updated = true
		return nil
	})
	return updated, wrapErr(err)
}

func (idx *Index) Delete(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	var deleted bool
	err := idx.withTxn(txn, true, func(t *badger.Txn) error {
		dataKey := indexDataKey(idx.id, key)
		if _, err := t.Get(dataKey); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		if err := t.Delete(dataKey); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, wrapErr(err)
}

func (idx *Index) Remove(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	var removed bool
	err := idx.withTxn(txn, true, func(t *badger.Txn) error {
		dataKey := indexDataKey(idx.id, key)
		item, err := t.Get(dataKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var match bool
		if verr := item.Value(func(val []byte) error {
			match = bytes.Equal(val, value)
			return nil
		}); verr != nil {
			return verr
		}
		if !match {
			return nil
		}
		if err := t.Delete(dataKey); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, wrapErr(err)
}

func (idx *Index) Touch(ctx context.Context, txn engine.Transaction, key []byte) error { return nil }

// Badger's own transaction conflict detection subsumes the lock-call
// surface; every lock request reports Acquired, and LockCheck never
// reports a conflict up front (a real conflict surfaces as a commit
// error instead, the same place badger itself detects it).
func (idx *Index) LockShared(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (idx *Index) TryLockShared(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (idx *Index) LockUpgradable(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (idx *Index) TryLockUpgradable(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (idx *Index) LockExclusive(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (idx *Index) TryLockExclusive(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (idx *Index) LockCheck(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}

func (idx *Index) IsUnmodifiable() bool { return false }
func (idx *Index) IsModifyAtomic() bool { return true }

func (idx *Index) AsTable(ctx context.Context, descriptor wire.RowDescriptor) (engine.Table, error) {
	return newTable(idx, descriptor), nil
}

func (idx *Index) Evict(ctx context.Context, txn engine.Transaction, low, high []byte, evictor func(key, value []byte) bool) (int64, error) {
	var removed int64
	err := idx.withTxn(txn, true, func(t *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = indexDataPrefix(idx.id)
		it := t.NewIterator(opts)
		defer it.Close()
		var victims [][]byte
		for it.Seek(idx.boundKey(low)); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			k := userKeyFromDataKey(idx.id, item.KeyCopy(nil))
			if high != nil && bytes.Compare(k, high) >= 0 {
				break
			}
			var v []byte
			if err := item.Value(func(val []byte) error { v = append([]byte(nil), val...); return nil }); err != nil {
				return err
			}
			if evictor(k, v) {
				victims = append(victims, item.KeyCopy(nil))
			}
		}
		for _, v := range victims {
			if err := t.Delete(v); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, wrapErr(err)
}

func (idx *Index) Analyze(ctx context.Context, low, high []byte) (wire.IndexStats, error) {
	var stats wire.IndexStats
	err := idx.db.db.View(func(t *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = indexDataPrefix(idx.id)
		it := t.NewIterator(opts)
		defer it.Close()
		for it.Seek(idx.boundKey(low)); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			k := userKeyFromDataKey(idx.id, item.KeyCopy(nil))
			if high != nil && bytes.Compare(k, high) >= 0 {
				break
			}
			stats.EntryCount++
			stats.KeyBytes += int64(len(k))
			stats.ValueBytes += item.ValueSize()
		}
		stats.TotalBytes = stats.KeyBytes + stats.ValueBytes
		return nil
	})
	return stats, wrapErr(err)
}

// Verify walks every entry under the index's prefix, reporting it
// visited then passed; badger's own checksums already guard against
// on-disk corruption below this layer, so there is no separate
// structural check to fail here.
func (idx *Index) Verify(ctx context.Context, observer engine.Observer) (bool, error) {
	var level int64
	err := idx.db.db.View(func(t *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = indexDataPrefix(idx.id)
		opts.PrefetchValues = false
		it := t.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			if observer != nil {
				if !observer.IndexNodeVisited(ctx, level, 0) {
					return nil
				}
				if !observer.IndexNodePassed(ctx, level, 0, 1, 0) {
					return nil
				}
			}
			level++
		}
		return nil
	})
	return true, wrapErr(err)
}

func (idx *Index) Close(ctx context.Context) error {
	idx.closed.Store(true)
	return nil
}

func (idx *Index) Drop(ctx context.Context) error {
	if err := idx.db.db.DropPrefix(indexDataPrefix(idx.id)); err != nil {
		return wrapErr(err)
	}
	idx.closed.Store(true)
	return nil
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*engine.Error); ok {
		return err
	}
	return engine.IOError(err.Error())
}
