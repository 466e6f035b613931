package client

import (
	"context"

	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// TransactionStub is the client-side proxy for an engine.Transaction.
type TransactionStub struct {
	sess *session.ClientSession
	id   int64
}

func newTransactionStub(sess *session.ClientSession, id int64) *TransactionStub {
	return &TransactionStub{sess: sess, id: id}
}

func (t *TransactionStub) handleID() int64 { return t.id }

func (t *TransactionStub) LockMode() wire.LockMode {
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTxnLockMode, nil)
	if err != nil {
		return wire.LockModeUnknown
	}
	b, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return wire.LockModeUnknown
	}
	return wire.DecodeLockMode(b)
}

func (t *TransactionStub) SetLockMode(mode wire.LockMode) {
	e := wire.NewEncoder()
	e.WriteUint8(wire.EncodeLockMode(mode))
	_, _ = call(context.Background(), t.sess, t.id, wire.SelTxnSetLockMode, e.Bytes())
}

func (t *TransactionStub) LockTimeout() int64 {
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTxnLockTimeout, nil)
	if err != nil {
		return 0
	}
	n, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return 0
	}
	return n
}

func (t *TransactionStub) SetLockTimeout(nanos int64) {
	e := wire.NewEncoder()
	e.WriteInt64(nanos)
	_, _ = call(context.Background(), t.sess, t.id, wire.SelTxnSetLockTimeout, e.Bytes())
}

func (t *TransactionStub) DurabilityMode() wire.DurabilityMode {
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTxnDurabilityMode, nil)
	if err != nil {
		return wire.DurabilityUnknown
	}
	b, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return wire.DurabilityUnknown
	}
	return wire.DecodeDurabilityMode(b)
}

func (t *TransactionStub) SetDurabilityMode(mode wire.DurabilityMode) {
	e := wire.NewEncoder()
	e.WriteUint8(wire.EncodeDurabilityMode(mode))
	_, _ = call(context.Background(), t.sess, t.id, wire.SelTxnSetDurabilityMode, e.Bytes())
}

func (t *TransactionStub) Check(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnCheck, nil)
	return err
}

func (t *TransactionStub) IsBogus() bool {
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTxnIsBogus, nil)
	if err != nil {
		return false
	}
	ok, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return false
	}
	return ok
}

func (t *TransactionStub) Commit(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnCommit, nil)
	return err
}

func (t *TransactionStub) CommitAll(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnCommitAll, nil)
	return err
}

func (t *TransactionStub) Enter(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnEnter, nil)
	return err
}

func (t *TransactionStub) Exit(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnExit, nil)
	return err
}

func (t *TransactionStub) Reset(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnReset, nil)
	return err
}

func (t *TransactionStub) ResetWithCause(ctx context.Context, cause error) error {
	e := wire.NewEncoder()
	if cause != nil {
		e.WriteString(cause.Error())
	} else {
		e.WriteString("")
	}
	_, err := call(ctx, t.sess, t.id, wire.SelTxnResetWithCause, e.Bytes())
	return err
}

func (t *TransactionStub) Rollback(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnRollback, nil)
	return err
}

func (t *TransactionStub) ID() int64 {
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTxnID, nil)
	if err != nil {
		return 0
	}
	n, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return 0
	}
	return n
}

func (t *TransactionStub) Flush(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnFlush, nil)
	return err
}

func (t *TransactionStub) txnLockOp(ctx context.Context, selector uint32, indexID int64, key []byte) (wire.LockResult, error) {
	e := wire.NewEncoder()
	e.WriteInt64(indexID)
	e.WriteBytes(key)
	payload, err := call(ctx, t.sess, t.id, selector, e.Bytes())
	if err != nil {
		return 0, err
	}
	return decodeLockResult(wire.NewDecoder(payload))
}

func (t *TransactionStub) LockShared(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.txnLockOp(ctx, wire.SelTxnLockShared, indexID, key)
}

func (t *TransactionStub) TryLockShared(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.txnLockOp(ctx, wire.SelTxnTryLockShared, indexID, key)
}

func (t *TransactionStub) LockUpgradable(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.txnLockOp(ctx, wire.SelTxnLockUpgradable, indexID, key)
}

func (t *TransactionStub) TryLockUpgradable(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.txnLockOp(ctx, wire.SelTxnTryLockUpgradable, indexID, key)
}

func (t *TransactionStub) LockExclusive(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.txnLockOp(ctx, wire.SelTxnLockExclusive, indexID, key)
}

func (t *TransactionStub) TryLockExclusive(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.txnLockOp(ctx, wire.SelTxnTryLockExclusive, indexID, key)
}

func (t *TransactionStub) LockCheck(ctx context.Context, indexID int64, key []byte) (wire.LockResult, error) {
	return t.txnLockOp(ctx, wire.SelTxnLockCheck, indexID, key)
}

func (t *TransactionStub) LastLockedIndex() int64 {
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTxnLastLockedIndex, nil)
	if err != nil {
		return 0
	}
	n, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return 0
	}
	return n
}

func (t *TransactionStub) LastLockedKey() []byte {
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTxnLastLockedKey, nil)
	if err != nil {
		return nil
	}
	key, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil
	}
	return key
}

func (t *TransactionStub) WasAcquired(ctx context.Context, indexID int64, key []byte) (bool, error) {
	e := wire.NewEncoder()
	e.WriteInt64(indexID)
	e.WriteBytes(key)
	payload, err := call(ctx, t.sess, t.id, wire.SelTxnWasAcquired, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (t *TransactionStub) Unlock(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnUnlock, nil)
	return err
}

func (t *TransactionStub) UnlockToShared(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnUnlockToShared, nil)
	return err
}

func (t *TransactionStub) UnlockCombine(ctx context.Context) error {
	_, err := call(ctx, t.sess, t.id, wire.SelTxnUnlockCombine, nil)
	return err
}
