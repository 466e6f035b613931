package engine

import (
	"context"

	"github.com/tupldb/remote/internal/wire"
)

// Transaction is a remote transaction: lock mode, timeout, durability,
// nesting depth, and an optional borked cause. The bogus transaction is
// a per-database singleton sentinel meaning "no transaction"; its
// mutating operations are no-ops and it is never disposed until the
// database itself closes.
type Transaction interface {
	LockMode() wire.LockMode
	SetLockMode(mode wire.LockMode)
	// LockTimeout returns the configured lock wait timeout in
	// nanoseconds; a negative value means "wait indefinitely".
	LockTimeout() int64
	SetLockTimeout(nanos int64)
	DurabilityMode() wire.DurabilityMode
	SetDurabilityMode(mode wire.DurabilityMode)

	// Check verifies the transaction is still usable, returning an
	// InvalidTransactionError carrying the borked cause if not.
	Check(ctx context.Context) error
	IsBogus() bool

	Commit(ctx context.Context) error
	CommitAll(ctx context.Context) error
	Enter(ctx context.Context) error
	Exit(ctx context.Context) error
	Reset(ctx context.Context) error
	ResetWithCause(ctx context.Context, cause error) error
	Rollback(ctx context.Context) error

	LockShared(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)
	TryLockShared(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)
	LockUpgradable(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)
	TryLockUpgradable(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)
	LockExclusive(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)
	TryLockExclusive(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)
	LockCheck(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)

	LastLockedIndex() int64
	LastLockedKey() []byte
	WasAcquired(ctx context.Context, indexID int64, key []byte) (bool, error)

	Unlock(ctx context.Context) error
	UnlockToShared(ctx context.Context) error
	UnlockCombine(ctx context.Context) error

	ID() int64
	// Flush forces this transaction's redo log entries to stable storage
	// without committing.
	Flush(ctx context.Context) error
}
