package engine

import (
	"context"

	"github.com/tupldb/remote/internal/wire"
)

// Table is a View interpreted through a row descriptor: rows travel as
// raw binary records in the descriptor's layout rather than as decoded
// objects, the same bypass-the-serializer design the compiled row proxy
// gives the wire layer (§4.11).
type Table interface {
	Descriptor() wire.RowDescriptor

	Load(ctx context.Context, txn Transaction, row []byte) (ValueResult, error)
	Exists(ctx context.Context, txn Transaction, row []byte) (bool, error)
	Store(ctx context.Context, txn Transaction, row []byte) error
	Exchange(ctx context.Context, txn Transaction, row []byte) (ValueResult, error)
	Insert(ctx context.Context, txn Transaction, row []byte) (bool, error)
	Replace(ctx context.Context, txn Transaction, row []byte) (bool, error)
	Update(ctx context.Context, txn Transaction, row []byte) (bool, error)
	Merge(ctx context.Context, txn Transaction, row []byte) (bool, error)
	Delete(ctx context.Context, txn Transaction, row []byte) (bool, error)

	// Query compiles text into a reusable Query handle; callers cache the
	// result per distinct query text rather than recompiling on every
	// scan (DerivedTable / compiled proxy cache, §4.11).
	Query(ctx context.Context, text string) (Query, error)

	NewScanner(ctx context.Context, txn Transaction, query Query, args [][]byte) (Scanner, error)
	NewUpdater(ctx context.Context, txn Transaction, query Query, args [][]byte) (Updater, error)

	// Derive compiles query into a narrowed or reshaped Table whose row
	// type the server determines; the returned descriptor must travel
	// with the table since the client doesn't know the row shape ahead
	// of time (DerivedTable, §3).
	Derive(ctx context.Context, query string, args [][]byte) (Table, wire.RowDescriptor, error)

	DeleteAll(ctx context.Context, txn Transaction, query Query, args [][]byte) (int64, error)
	AnyRows(ctx context.Context, txn Transaction, query Query, args [][]byte) (bool, error)
}

// Query is a compiled predicate and projection against a Table's row
// type.
type Query interface {
	// ArgumentCount reports how many positional arguments this query's
	// predicate expects, validated once at compile time.
	ArgumentCount() int
	// Plan returns the whitelisted plan tree a scanner or updater built
	// from this query would execute, for diagnostics.
	Plan(ctx context.Context, forUpdater bool, args [][]byte) (wire.PlanNode, error)
}

// Scanner is a forward-only cursor over typed rows matching a Query.
type Scanner interface {
	// Row returns the current row's raw binary record, or nil once Step
	// has returned false. A table's NewScanner starts on the first
	// matching row, so Row is valid before any Step; a sorter's FinishScan
	// scanner starts before its first entry, so Row is nil until Step.
	Row() []byte
	// Step advances to the next matching row, reporting false at the end.
	Step(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// Updater is a Scanner that can additionally mutate or delete the current
// row in place. The dirty-column bitmap lets the client send only the
// columns it actually changed, matching the on-wire scheme in §4.11.
type Updater interface {
	Scanner

	// Update applies dirtyColumns (a bitmap, one bit per descriptor
	// column) with dirtyValues holding the corresponding new encoded
	// values, then advances to the next row and returns its raw record.
	Update(ctx context.Context, dirtyColumns []byte, dirtyValues [][]byte) ([]byte, error)
	// Delete removes the current row, then advances and returns the next
	// row's raw record.
	Delete(ctx context.Context) ([]byte, error)
}
