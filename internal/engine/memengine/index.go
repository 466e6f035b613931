package memengine

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// Index is the in-memory View/Index implementation: a sorted slice of
// keys (kept ordered by binary insertion) backing a map lookup, guarded
// by a single RWMutex. There is no B-tree, no node-level locking, and no
// real MVCC; Load/Store etc. serialize through the index mutex and
// ignore the passed transaction entirely, and the lock methods simply
// report Acquired.
type Index struct {
	mu        sync.RWMutex
	id        int64
	name      string
	data      map[string][]byte
	keys      []string // kept sorted ascending
	temporary bool
	closed    atomic.Bool
}

func newIndex(id int64, name string) *Index {
	return &Index{id: id, name: name, data: make(map[string][]byte)}
}

func (idx *Index) checkOpen() error {
	if idx.closed.Load() {
		return engine.ClosedIndexError("index closed: " + idx.name)
	}
	return nil
}

// putLocked inserts or overwrites a key/value pair. Caller must hold mu.
func (idx *Index) putLocked(key, value []byte) {
	k := string(key)
	if _, exists := idx.data[k]; !exists {
		i := sort.SearchStrings(idx.keys, k)
		idx.keys = append(idx.keys, "")
		copy(idx.keys[i+1:], idx.keys[i:])
		idx.keys[i] = k
	}
	idx.data[k] = append([]byte(nil), value...)
}

func (idx *Index) deleteLocked(key []byte) bool {
	k := string(key)
	if _, exists := idx.data[k]; !exists {
		return false
	}
	delete(idx.data, k)
	i := sort.SearchStrings(idx.keys, k)
	idx.keys = append(idx.keys[:i], idx.keys[i+1:]...)
	return true
}

func (idx *Index) Ordering() wire.Ordering { return wire.OrderingAscending }

func (idx *Index) ID() int64          { return idx.id }
func (idx *Index) Name() []byte       { return []byte(idx.name) }
func (idx *Index) NameString() string { return idx.name }
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
	return &accessor{idx: idx, key: append([]byte(nil), key...)}, nil
}

func (idx *Index) NewTransaction(ctx context.Context, durability wire.DurabilityMode) (engine.Transaction, error) {
	return &Transaction{lockMode: wire.LockModeUpgradable, durability: durability}, nil
}

func (idx *Index) IsEmpty(ctx context.Context, txn engine.Transaction) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keys) == 0, nil
}

func (idx *Index) Count(ctx context.Context, txn engine.Transaction, low, high []byte) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	lo, hi := idx.boundsLocked(low, high)
	if hi < lo {
		return 0, nil
	}
	return int64(hi - lo), nil
}

// boundsLocked returns the half-open [lo, hi) index range into idx.keys
// covered by [low, high), nil meaning unbounded on that side.
func (idx *Index) boundsLocked(low, high []byte) (int, int) {
	lo := 0
	if low != nil {
		lo = sort.SearchStrings(idx.keys, string(low))
	}
	hi := len(idx.keys)
	if high != nil {
		hi = sort.SearchStrings(idx.keys, string(high))
	}
	return lo, hi
}

func (idx *Index) Load(ctx context.Context, txn engine.Transaction, key []byte) (engine.ValueResult, error) {
	if err := idx.checkOpen(); err != nil {
		return engine.ValueResult{}, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.data[string(key)]
	if !ok {
		return engine.ValueResult{Loaded: true, Data: nil}, nil
	}
	return engine.ValueResult{Loaded: true, Data: append([]byte(nil), v...)}, nil
}

func (idx *Index) Exists(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.data[string(key)]
	return ok, nil
}

func (idx *Index) Store(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	if err := idx.checkOpen(); err != nil {
		return engine.ValueResult{}, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old, had := idx.data[string(key)]
	idx.putLocked(key, value)
	if !had {
		return engine.ValueResult{Loaded: true, Data: nil}, nil
	}
	return engine.ValueResult{Loaded: true, Data: old}, nil
}

func (idx *Index) Exchange(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	return idx.Store(ctx, txn, key, value)
}

func (idx *Index) Insert(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	if err := idx.checkOpen(); err != nil {
		return false, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.data[string(key)]; exists {
		return false, nil
	}
	idx.putLocked(key, value)
	return true, nil
}

func (idx *Index) Replace(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	if err := idx.checkOpen(); err != nil {
		return false, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.data[string(key)]; !exists {
		return false, nil
	}
	idx.putLocked(key, value)
	return true, nil
}

func (idx *Index) Update(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	if err := idx.checkOpen(); err != nil {
		return false, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(value) == 0 {
		return idx.deleteLocked(key), nil
	}
	idx.putLocked(key, value)
	return true, nil
}

func (idx *Index) UpdateWithOld(ctx context.Context, txn engine.Transaction, key, oldValue, newValue []byte) (bool, error) {
	if err := idx.checkOpen(); err != nil {
		return false, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cur, exists := idx.data[string(key)]
	if !exists || !bytes.Equal(cur, oldValue) {
		return false, nil
	}
	idx.putLocked(key, newValue)
	return true, nil
}

func (idx *Index) Delete(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	if err := idx.checkOpen(); err != nil {
		return false, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.deleteLocked(key), nil
}

func (idx *Index) Remove(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	if err := idx.checkOpen(); err != nil {
		return false, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cur, exists := idx.data[string(key)]
	if !exists || !bytes.Equal(cur, value) {
		return false, nil
	}
	idx.deleteLocked(key)
	return true, nil
}

func (idx *Index) Touch(ctx context.Context, txn engine.Transaction, key []byte) error {
	return nil
}

// The mem engine has no real lock manager: every lock request against an
// unlocked key succeeds immediately as Acquired, reflecting that this
// store is single-process and serializes through idx.mu already.
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
	idx.mu.Lock()
	defer idx.mu.Unlock()
	lo, hi := idx.boundsLocked(low, high)
	var removed int64
	var victims []string
	for _, k := range idx.keys[lo:hi] {
		if evictor([]byte(k), idx.data[k]) {
			victims = append(victims, k)
		}
	}
	for _, k := range victims {
		idx.deleteLocked([]byte(k))
		removed++
	}
	return removed, nil
}

func (idx *Index) Analyze(ctx context.Context, low, high []byte) (wire.IndexStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	lo, hi := idx.boundsLocked(low, high)
	var keyBytes, valueBytes int64
	for _, k := range idx.keys[lo:hi] {
		keyBytes += int64(len(k))
		valueBytes += int64(len(idx.data[k]))
	}
	return wire.IndexStats{
		EntryCount: int64(hi - lo),
		KeyBytes:   keyBytes,
		ValueBytes: valueBytes,
		TotalBytes: keyBytes + valueBytes,
	}, nil
}

// Verify walks every entry in key order, reporting it to observer as
// visited then passed; the mem engine has no structural invariants that
// could actually fail, so it never reports a node as failed.
func (idx *Index) Verify(ctx context.Context, observer engine.Observer) (bool, error) {
	idx.mu.RLock()
	keys := append([]string(nil), idx.keys...)
	idx.mu.RUnlock()
	for i, k := range keys {
		if observer != nil {
			if !observer.IndexNodeVisited(ctx, int64(i), 0) {
				return false, nil
			}
			if !observer.IndexNodePassed(ctx, int64(i), 0, 1, 0) {
				return false, nil
			}
		}
	}
	return true, nil
}

func (idx *Index) Close(ctx context.Context) error {
	idx.closed.Store(true)
	return nil
}

func (idx *Index) Drop(ctx context.Context) error {
	idx.mu.Lock()
	idx.data = make(map[string][]byte)
	idx.keys = nil
	idx.mu.Unlock()
	idx.closed.Store(true)
	return nil
}

// accessor is the NewAccessor key-bound ValueAccessor.
type accessor struct {
	idx *Index
	key []byte
}

func (a *accessor) ValueLength(ctx context.Context) (int64, error) {
	a.idx.mu.RLock()
	defer a.idx.mu.RUnlock()
	return int64(len(a.idx.data[string(a.key)])), nil
}

func (a *accessor) SetValueLength(ctx context.Context, length int64) error {
	a.idx.mu.Lock()
	defer a.idx.mu.Unlock()
	v := a.idx.data[string(a.key)]
	v = resizeValue(v, length)
	a.idx.putLocked(a.key, v)
	return nil
}

func (a *accessor) ValueRead(ctx context.Context, pos int64, buf []byte) (int, error) {
	a.idx.mu.RLock()
	defer a.idx.mu.RUnlock()
	v := a.idx.data[string(a.key)]
	if pos >= int64(len(v)) {
		return 0, nil
	}
	return copy(buf, v[pos:]), nil
}

func (a *accessor) ValueWrite(ctx context.Context, pos int64, data []byte) error {
	a.idx.mu.Lock()
	defer a.idx.mu.Unlock()
	v := a.idx.data[string(a.key)]
	need := pos + int64(len(data))
	if int64(len(v)) < need {
		v = resizeValue(v, need)
	}
	copy(v[pos:], data)
	a.idx.putLocked(a.key, v)
	return nil
}

func (a *accessor) ValueClear(ctx context.Context, pos, length int64) error {
	a.idx.mu.Lock()
	defer a.idx.mu.Unlock()
	v := a.idx.data[string(a.key)]
	end := pos + length
	if end > int64(len(v)) {
		end = int64(len(v))
	}
	for i := pos; i < end; i++ {
		v[i] = 0
	}
	a.idx.putLocked(a.key, v)
	return nil
}

func resizeValue(v []byte, length int64) []byte {
	if int64(len(v)) == length {
		return v
	}
	grown := make([]byte, length)
	copy(grown, v)
	return grown
}
