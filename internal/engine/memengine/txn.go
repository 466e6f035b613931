package memengine

import (
	"context"
	"sync"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// Transaction is a bookkeeping-only transaction: lock mode, timeout, and
// durability are stored and reported back verbatim, nesting depth is
// tracked for Enter/Exit, and commit/rollback do nothing beyond that
// bookkeeping (Commit and CommitAll also clear the borked cause; Rollback
// only resets the depth), since Index mutations already take effect
// immediately under the index's own mutex.
type Transaction struct {
	mu          sync.Mutex
	id          int64
	bogus       bool
	lockMode    wire.LockMode
	lockTimeout int64
	durability  wire.DurabilityMode
	depth       int
	borked      error
	lastIndex   int64
	lastKey     []byte
}

func (t *Transaction) LockMode() wire.LockMode { return t.lockMode }
func (t *Transaction) SetLockMode(mode wire.LockMode) {
	if t.bogus {
		return
	}
	t.lockMode = mode
}

func (t *Transaction) LockTimeout() int64 { return t.lockTimeout }
func (t *Transaction) SetLockTimeout(nanos int64) {
	if t.bogus {
		return
	}
	t.lockTimeout = nanos
}

func (t *Transaction) DurabilityMode() wire.DurabilityMode { return t.durability }
func (t *Transaction) SetDurabilityMode(mode wire.DurabilityMode) {
	if t.bogus {
		return
	}
	t.durability = mode
}

func (t *Transaction) Check(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.borked != nil {
		return engine.InvalidTransactionError(t.borked.Error())
	}
	return nil
}

func (t *Transaction) IsBogus() bool { return t.bogus }

func (t *Transaction) Commit(ctx context.Context) error {
	if t.bogus {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.depth > 0 {
		t.depth--
		return nil
	}
	t.borked = nil
	return nil
}

func (t *Transaction) CommitAll(ctx context.Context) error {
	if t.bogus {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.depth = 0
	t.borked = nil
	return nil
}

func (t *Transaction) Enter(ctx context.Context) error {
	if t.bogus {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.depth++
	return nil
}

func (t *Transaction) Exit(ctx context.Context) error {
	if t.bogus {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.depth > 0 {
		t.depth--
	}
	return nil
}

func (t *Transaction) Reset(ctx context.Context) error {
	return t.ResetWithCause(ctx, nil)
}

func (t *Transaction) ResetWithCause(ctx context.Context, cause error) error {
	if t.bogus {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.depth = 0
	t.borked = cause
	return nil
}

func (t *Transaction) Rollback(ctx context.Context) error {
	if t.bogus {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.depth = 0
	return nil
}

// The mem engine grants every lock immediately (see Index's lock
// methods); the transaction only records which index/key it most
// recently touched for LastLockedIndex/LastLockedKey.
func (t *Transaction) recordLock(indexID int64, key []byte) {
	t.mu.Lock()
	t.lastIndex = indexID
	t.lastKey = key
	t.mu.Unlock()
}

func (t *Transaction) LockShared(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	t.recordLock(indexID, key)
	return wire.LockResultAcquired, nil
}
func (t *Transaction) TryLockShared(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.LockShared(ctx, indexID, key)
}
func (t *Transaction) LockUpgradable(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	t.recordLock(indexID, key)
	return wire.LockResultAcquired, nil
}
func (t *Transaction) TryLockUpgradable(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.LockUpgradable(ctx, indexID, key)
}
func (t *Transaction) LockExclusive(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	t.recordLock(indexID, key)
	return wire.LockResultAcquired, nil
}
func (t *Transaction) TryLockExclusive(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.LockExclusive(ctx, indexID, key)
}
func (t *Transaction) LockCheck(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return wire.LockResultAcquired, nil
}

func (t *Transaction) LastLockedIndex() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastIndex
}

func (t *Transaction) LastLockedKey() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastKey
}

func (t *Transaction) WasAcquired(ctx context.Context, indexID int64, key []byte) (bool, error) {
	return true, nil
}

func (t *Transaction) Unlock(ctx context.Context) error         { return nil }
func (t *Transaction) UnlockToShared(ctx context.Context) error { return nil }
func (t *Transaction) UnlockCombine(ctx context.Context) error  { return nil }

func (t *Transaction) ID() int64 { return t.id }

func (t *Transaction) Flush(ctx context.Context) error { return nil }
