package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

// Transaction is the skeleton for an engine.Transaction.
type Transaction struct {
	txn engine.Transaction
}

func handlerTxnLockMode(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	e := wire.NewEncoder()
	e.WriteUint8(uint8(s.txn.LockMode()))
	return e.Bytes(), nil
}

func handlerTxnSetLockMode(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	mode, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return nil, engine.IllegalStateError("malformed lock mode")
	}
	s.txn.SetLockMode(wire.DecodeLockMode(mode))
	return nil, nil
}

func handlerTxnLockTimeout(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	e := wire.NewEncoder()
	e.WriteInt64(s.txn.LockTimeout())
	return e.Bytes(), nil
}

func handlerTxnSetLockTimeout(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	nanos, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed lock timeout")
	}
	s.txn.SetLockTimeout(nanos)
	return nil, nil
}

func handlerTxnDurabilityMode(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	e := wire.NewEncoder()
	e.WriteUint8(uint8(s.txn.DurabilityMode()))
	return e.Bytes(), nil
}

func handlerTxnSetDurabilityMode(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	mode, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return nil, engine.IllegalStateError("malformed durability mode")
	}
	s.txn.SetDurabilityMode(wire.DecodeDurabilityMode(mode))
	return nil, nil
}

func handlerTxnCheck(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Check(ctx)
}

func handlerTxnIsBogus(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	e := wire.NewEncoder()
	e.WriteBool(s.txn.IsBogus())
	return e.Bytes(), nil
}

func handlerTxnCommit(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Commit(ctx)
}

func handlerTxnCommitAll(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.CommitAll(ctx)
}

func handlerTxnEnter(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Enter(ctx)
}

func handlerTxnExit(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Exit(ctx)
}

func handlerTxnReset(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Reset(ctx)
}

func handlerTxnResetWithCause(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	msg, err := wire.NewDecoder(payload).ReadString()
	if err != nil {
		return nil, engine.IllegalStateError("malformed reset cause")
	}
	var cause error
	if msg != "" {
		cause = engine.IllegalStateError(msg)
	}
	return nil, s.txn.ResetWithCause(ctx, cause)
}

func handlerTxnRollback(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Rollback(ctx)
}

func handlerTxnID(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	e := wire.NewEncoder()
	e.WriteInt64(s.txn.ID())
	return e.Bytes(), nil
}

func handlerTxnFlush(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Flush(ctx)
}

// txnLockOp adapts Transaction's seven index-scoped lock methods to the
// shared request/reply shape (index id + key in, LockResult out).
func txnLockOp(op func(t engine.Transaction, ctx context.Context, indexID int64, key []byte) (wire.LockResult, error)) func(context.Context, any, []byte) ([]byte, error) {
	return func(ctx context.Context, handle any, payload []byte) ([]byte, error) {
		s := handle.(*Transaction)
		d := wire.NewDecoder(payload)
		indexID, err := d.ReadInt64()
		if err != nil {
			return nil, engine.IllegalStateError("malformed index reference")
		}
		key, err := d.ReadBytes()
		if err != nil {
			return nil, engine.IllegalStateError("malformed key")
		}
		result, err := op(s.txn, ctx, indexID, key)
		if err != nil {
			return nil, err
		}
		e := wire.NewEncoder()
		encodeLockResult(e, result)
		return e.Bytes(), nil
	}
}

var handlerTxnLockShared = txnLockOp(func(t engine.Transaction, ctx context.Context, id int64, key []byte) (wire.LockResult, error) {
	return t.LockShared(ctx, id, key)
})
var handlerTxnTryLockShared = txnLockOp(func(t engine.Transaction, ctx context.Context, id int64, key []byte) (wire.LockResult, error) {
	return t.TryLockShared(ctx, id, key)
})
var handlerTxnLockUpgradable = txnLockOp(func(t engine.Transaction, ctx context.Context, id int64, key []byte) (wire.LockResult, error) {
	return t.LockUpgradable(ctx, id, key)
})
var handlerTxnTryLockUpgradable = txnLockOp(func(t engine.Transaction, ctx context.Context, id int64, key []byte) (wire.LockResult, error) {
	return t.TryLockUpgradable(ctx, id, key)
})
var handlerTxnLockExclusive = txnLockOp(func(t engine.Transaction, ctx context.Context, id int64, key []byte) (wire.LockResult, error) {
	return t.LockExclusive(ctx, id, key)
})
var handlerTxnTryLockExclusive = txnLockOp(func(t engine.Transaction, ctx context.Context, id int64, key []byte) (wire.LockResult, error) {
	return t.TryLockExclusive(ctx, id, key)
})
var handlerTxnLockCheck = txnLockOp(func(t engine.Transaction, ctx context.Context, id int64, key []byte) (wire.LockResult, error) {
	return t.LockCheck(ctx, id, key)
})

func handlerTxnLastLockedIndex(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	e := wire.NewEncoder()
	e.WriteInt64(s.txn.LastLockedIndex())
	return e.Bytes(), nil
}

func handlerTxnLastLockedKey(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	e := wire.NewEncoder()
	e.WriteBytes(s.txn.LastLockedKey())
	return e.Bytes(), nil
}

func handlerTxnWasAcquired(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Transaction)
	d := wire.NewDecoder(payload)
	indexID, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed index reference")
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	ok, err := s.txn.WasAcquired(ctx, indexID, key)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerTxnUnlock(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.Unlock(ctx)
}

func handlerTxnUnlockToShared(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.UnlockToShared(ctx)
}

func handlerTxnUnlockCombine(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Transaction).txn.UnlockCombine(ctx)
}

// RegisterTransaction binds the Transaction-kind selector range onto d.
func RegisterTransaction(d *rpc.Dispatcher) {
	d.Register(wire.SelTxnLockMode, handlerTxnLockMode)
	d.Register(wire.SelTxnSetLockMode, handlerTxnSetLockMode)
	d.Register(wire.SelTxnLockTimeout, handlerTxnLockTimeout)
	d.Register(wire.SelTxnSetLockTimeout, handlerTxnSetLockTimeout)
	d.Register(wire.SelTxnDurabilityMode, handlerTxnDurabilityMode)
	d.Register(wire.SelTxnSetDurabilityMode, handlerTxnSetDurabilityMode)
	d.Register(wire.SelTxnCheck, handlerTxnCheck)
	d.Register(wire.SelTxnIsBogus, handlerTxnIsBogus)
	d.Register(wire.SelTxnCommit, handlerTxnCommit)
	d.Register(wire.SelTxnCommitAll, handlerTxnCommitAll)
	d.Register(wire.SelTxnEnter, handlerTxnEnter)
	d.Register(wire.SelTxnExit, handlerTxnExit)
	d.Register(wire.SelTxnReset, handlerTxnReset)
	d.Register(wire.SelTxnResetWithCause, handlerTxnResetWithCause)
	d.Register(wire.SelTxnRollback, handlerTxnRollback)
	d.Register(wire.SelTxnID, handlerTxnID)
	d.Register(wire.SelTxnFlush, handlerTxnFlush)
	d.Register(wire.SelTxnLockShared, handlerTxnLockShared)
	d.Register(wire.SelTxnTryLockShared, handlerTxnTryLockShared)
	d.Register(wire.SelTxnLockUpgradable, handlerTxnLockUpgradable)
	d.Register(wire.SelTxnTryLockUpgradable, handlerTxnTryLockUpgradable)
	d.Register(wire.SelTxnLockExclusive, handlerTxnLockExclusive)
	d.Register(wire.SelTxnTryLockExclusive, handlerTxnTryLockExclusive)
	d.Register(wire.SelTxnLockCheck, handlerTxnLockCheck)
	d.Register(wire.SelTxnLastLockedIndex, handlerTxnLastLockedIndex)
	d.Register(wire.SelTxnLastLockedKey, handlerTxnLastLockedKey)
	d.Register(wire.SelTxnWasAcquired, handlerTxnWasAcquired)
	d.Register(wire.SelTxnUnlock, handlerTxnUnlock)
	d.Register(wire.SelTxnUnlockToShared, handlerTxnUnlockToShared)
	d.Register(wire.SelTxnUnlockCombine, handlerTxnUnlockCombine)
}
