package engine

import (
	"context"

	"github.com/tupldb/remote/internal/wire"
)

// View is an ordered byte-key to byte-value mapping. Index adds identity
// and name on top of the same operation set, expressed in Go as struct
// embedding rather than the source's class inheritance (§9 Design notes).
type View interface {
	Ordering() wire.Ordering

	NewCursor(ctx context.Context, txn Transaction) (Cursor, error)
	// NewAccessor returns a key-bound value accessor, distinct from a
	// Cursor: it supports the same valueRead/valueWrite/valueLength
	// surface without a navigable position.
	NewAccessor(ctx context.Context, txn Transaction, key []byte) (ValueAccessor, error)
	NewTransaction(ctx context.Context, durability wire.DurabilityMode) (Transaction, error)

	IsEmpty(ctx context.Context, txn Transaction) (bool, error)
	Count(ctx context.Context, txn Transaction, low, high []byte) (int64, error)

	Load(ctx context.Context, txn Transaction, key []byte) (ValueResult, error)
	Exists(ctx context.Context, txn Transaction, key []byte) (bool, error)
	Store(ctx context.Context, txn Transaction, key, value []byte) (ValueResult, error)
	Exchange(ctx context.Context, txn Transaction, key, value []byte) (ValueResult, error)
	Insert(ctx context.Context, txn Transaction, key, value []byte) (bool, error)
	Replace(ctx context.Context, txn Transaction, key, value []byte) (bool, error)
	Update(ctx context.Context, txn Transaction, key, value []byte) (bool, error)
	UpdateWithOld(ctx context.Context, txn Transaction, key, oldValue, newValue []byte) (bool, error)
	Delete(ctx context.Context, txn Transaction, key []byte) (bool, error)
	Remove(ctx context.Context, txn Transaction, key, value []byte) (bool, error)
	Touch(ctx context.Context, txn Transaction, key []byte) error

	LockShared(ctx context.Context, txn Transaction, key []byte) (wire.LockResult, error)
	TryLockShared(ctx context.Context, txn Transaction, key []byte) (wire.LockResult, error)
	LockUpgradable(ctx context.Context, txn Transaction, key []byte) (wire.LockResult, error)
	TryLockUpgradable(ctx context.Context, txn Transaction, key []byte) (wire.LockResult, error)
	LockExclusive(ctx context.Context, txn Transaction, key []byte) (wire.LockResult, error)
	TryLockExclusive(ctx context.Context, txn Transaction, key []byte) (wire.LockResult, error)
	LockCheck(ctx context.Context, txn Transaction, key []byte) (wire.LockResult, error)

	IsUnmodifiable() bool
	IsModifyAtomic() bool
}

// ValueResult is a value read that may be absent either because the key
// doesn't exist or, per §9's resolved open question, because the cursor
// has autoload disabled and nothing was loaded yet. Loaded distinguishes
// these two "no bytes" cases from each other.
type ValueResult struct {
	Loaded bool
	Data   []byte
}

// ValueAccessor supports streaming value I/O against a fixed key, the
// same chunked operations Cursor exposes against its current position.
type ValueAccessor interface {
	ValueLength(ctx context.Context) (int64, error)
	SetValueLength(ctx context.Context, length int64) error
	ValueRead(ctx context.Context, pos int64, buf []byte) (int, error)
	ValueWrite(ctx context.Context, pos int64, data []byte) error
	ValueClear(ctx context.Context, pos, length int64) error
}

// Index is a View with identity, a name, and a lifecycle of its own.
type Index interface {
	View

	ID() int64
	Name() []byte
	NameString() string

	AsTable(ctx context.Context, descriptor wire.RowDescriptor) (Table, error)

	// Evict removes entries in [low, high) for which evictor returns
	// true, reporting the number removed.
	Evict(ctx context.Context, txn Transaction, low, high []byte, evictor func(key, value []byte) bool) (int64, error)
	Analyze(ctx context.Context, low, high []byte) (wire.IndexStats, error)
	Verify(ctx context.Context, observer Observer) (bool, error)

	Close(ctx context.Context) error
	Drop(ctx context.Context) error
	IsClosed() bool
}
