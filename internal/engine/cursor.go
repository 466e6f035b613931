package engine

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/wire"
)

// FindMode collapses the cursor interface's family of find*/next*/prev*
// variants (findGe, findGt, findLe, findLt, nextLe, nextLt, previousGe,
// previousGt, ...) into one parameterized operation. A direction plus an
// inclusivity flag expresses the same set of positions the source's
// one-method-per-variant surface does, without the method-name
// proliferation a language without default arguments would otherwise
// need.
type FindMode uint8

const (
	FindExact FindMode = iota
	FindGreaterOrEqual
	FindGreaterThan
	FindLessOrEqual
	FindLessThan
	FindNearby // start search from the cursor's current position
)

// Cursor is a mutable position over a View, bound to a Transaction.
type Cursor interface {
	Ordering() wire.Ordering

	// Link returns the cursor's bound transaction and rebinds it,
	// returning the previous link. Passing the bogus transaction detaches
	// the cursor from any real transaction.
	Link(ctx context.Context, txn Transaction) (previous Transaction, err error)

	Key() []byte
	Value(ctx context.Context) (ValueResult, error)
	Autoload() bool
	SetAutoload(autoload bool)

	// CompareKeyTo compares the cursor's current key to key, the same
	// ordering Bytes.Compare would report.
	CompareKeyTo(ctx context.Context, key []byte) (int, error)

	First(ctx context.Context) error
	Last(ctx context.Context) error
	// Skip moves by amount positions (negative moves backward),
	// optionally stopping early if limitKey is reached.
	Skip(ctx context.Context, amount int64, limitKey []byte, inclusive bool) error
	Next(ctx context.Context, limitKey []byte, inclusive bool) error
	Prev(ctx context.Context, limitKey []byte, inclusive bool) error

	// Find repositions the cursor according to mode relative to key.
	Find(ctx context.Context, key []byte, mode FindMode) error
	// Random positions the cursor at an arbitrary key within [low, high).
	Random(ctx context.Context, low, high []byte) error

	Exists(ctx context.Context) (bool, error)
	Lock(ctx context.Context) (wire.LockResult, error)
	Load(ctx context.Context) error
	Store(ctx context.Context, value []byte) error
	Delete(ctx context.Context) error
	// Commit stores value and commits the linked transaction in one step.
	Commit(ctx context.Context, value []byte) error

	Copy() Cursor
	Reset()

	// Register/Unregister opt the cursor into the index's live-position
	// tracking so concurrent structural changes (node splits/merges) can
	// adjust it instead of invalidating it.
	Register(ctx context.Context) error
	Unregister(ctx context.Context) error

	ValueLength(ctx context.Context) (int64, error)
	SetValueLength(ctx context.Context, length int64) error
	// ValueRead reads up to len(buf) bytes from the current value
	// starting at pos, returning the number of bytes actually read.
	ValueRead(ctx context.Context, pos int64, buf []byte) (int, error)
	ValueWrite(ctx context.Context, pos int64, data []byte) error
	ValueClear(ctx context.Context, pos, length int64) error
	NewValueInputStream(ctx context.Context, bufferSize int) (io.ReadCloser, error)
	NewValueOutputStream(ctx context.Context, bufferSize int) (io.WriteCloser, error)
}
