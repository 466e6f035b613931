package badgerengine

import (
	"context"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// registryView materializes the name<->id mapping held in the meta
// keyspace as a read-only View, the same snapshot-and-serve approach
// memengine.registryView takes: the registry is expected to be small
// enough (one entry per open index) that copying it on every call is
// cheaper than maintaining a live cursor over badger's meta prefix.
type registryView struct {
	keys []string
	data map[string][]byte
}

func newRegistryView(db *Database, byID bool) engine.View {
	rv := &registryView{data: make(map[string][]byte)}
	_ = db.db.View(func(t *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		if byID {
			opts.Prefix = []byte{prefixMeta, 'i', ':'}
		} else {
			opts.Prefix = []byte{prefixMeta, 'n', ':'}
		}
		it := t.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()[len(opts.Prefix):]...)
			if err := item.Value(func(val []byte) error {
				v := append([]byte(nil), val...)
				rv.data[string(key)] = v
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	for k := range rv.data {
		rv.keys = append(rv.keys, k)
	}
	sort.Strings(rv.keys)
	return rv
}

func (rv *registryView) Ordering() wire.Ordering { return wire.OrderingAscending }

func (rv *registryView) NewCursor(ctx context.Context, txn engine.Transaction) (engine.Cursor, error) {
	return nil, engine.UnsupportedOperationError("registry view has no cursor support")
}

func (rv *registryView) NewAccessor(ctx context.Context, txn engine.Transaction, key []byte) (engine.ValueAccessor, error) {
	return nil, engine.UnsupportedOperationError("registry view has no accessor support")
}

func (rv *registryView) NewTransaction(ctx context.Context, durability wire.DurabilityMode) (engine.Transaction, error) {
	return nil, engine.UnsupportedOperationError("registry view is read-only")
}

func (rv *registryView) IsEmpty(ctx context.Context, txn engine.Transaction) (bool, error) {
	return len(rv.keys) == 0, nil
}

func (rv *registryView) Count(ctx context.Context, txn engine.Transaction, low, high []byte) (int64, error) {
	return int64(len(rv.keys)), nil
}

func (rv *registryView) Load(ctx context.Context, txn engine.Transaction, key []byte) (engine.ValueResult, error) {
	v, ok := rv.data[string(key)]
	if !ok {
		return engine.ValueResult{Loaded: true, Data: nil}, nil
	}
	return engine.ValueResult{Loaded: true, Data: v}, nil
}

func (rv *registryView) Exists(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	_, ok := rv.data[string(key)]
	return ok, nil
}

func (rv *registryView) unmodifiable() error {
	return engine.UnsupportedOperationError("the index registry cannot be modified directly")
}

func (rv *registryView) Store(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	return engine.ValueResult{}, rv.unmodifiable()
}
func (rv *registryView) Exchange(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	return engine.ValueResult{}, rv.unmodifiable()
}
func (rv *registryView) Insert(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return false, rv.unmodifiable()
}
func (rv *registryView) Replace(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return false, rv.unmodifiable()
}
func (rv *registryView) Update(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return false, rv.unmodifiable()
}
func (rv *registryView) UpdateWithOld(ctx context.Context, txn engine.Transaction, key, oldValue, newValue []byte) (bool, error) {
	return false, rv.unmodifiable()
}
func (rv *registryView) Delete(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	return false, rv.unmodifiable()
}
func (rv *registryView) Remove(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return false, rv.unmodifiable()
}
func (rv *registryView) Touch(ctx context.Context, txn engine.Transaction, key []byte) error {
	return rv.unmodifiable()
}

func (rv *registryView) LockShared(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (rv *registryView) TryLockShared(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (rv *registryView) LockUpgradable(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (rv *registryView) TryLockUpgradable(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (rv *registryView) LockExclusive(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (rv *registryView) TryLockExclusive(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}
func (rv *registryView) LockCheck(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}

func (rv *registryView) IsUnmodifiable() bool { return true }
func (rv *registryView) IsModifyAtomic() bool { return false }
