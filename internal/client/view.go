package client

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// ViewStub is the client-side proxy for an engine.View — a registry view
// or the View half of an IndexStub, addressed through the same handle id
// and selector range either way.
type ViewStub struct {
	sess *session.ClientSession
	id   int64
}

func newViewStub(sess *session.ClientSession, id int64) *ViewStub {
	return &ViewStub{sess: sess, id: id}
}

func (v *ViewStub) handleID() int64 { return v.id }

func (v *ViewStub) Ordering() wire.Ordering {
	payload, err := call(context.Background(), v.sess, v.id, wire.SelViewOrdering, nil)
	if err != nil {
		return wire.OrderingUnspecified
	}
	b, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return wire.OrderingUnspecified
	}
	return wire.DecodeOrdering(b)
}

func (v *ViewStub) NewCursor(ctx context.Context, txn engine.Transaction) (engine.Cursor, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewNewCursor, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newCursorStub(v.sess, id), nil
}

func (v *ViewStub) NewAccessor(ctx context.Context, txn engine.Transaction, key []byte) (engine.ValueAccessor, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewNewAccessor, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newAccessorStub(v.sess, id), nil
}

func (v *ViewStub) NewTransaction(ctx context.Context, durability wire.DurabilityMode) (engine.Transaction, error) {
	e := wire.NewEncoder()
	e.WriteUint8(wire.EncodeDurabilityMode(durability))
	payload, err := call(ctx, v.sess, v.id, wire.SelViewNewTransaction, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newTransactionStub(v.sess, id), nil
}

func (v *ViewStub) IsEmpty(ctx context.Context, txn engine.Transaction) (bool, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewIsEmpty, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (v *ViewStub) Count(ctx context.Context, txn engine.Transaction, low, high []byte) (int64, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(low)
	e.WriteBytes(high)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewCount, e.Bytes())
	if err != nil {
		return 0, err
	}
	return wire.NewDecoder(payload).ReadInt64()
}

func (v *ViewStub) Load(ctx context.Context, txn engine.Transaction, key []byte) (engine.ValueResult, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewLoad, e.Bytes())
	if err != nil {
		return engine.ValueResult{}, err
	}
	return decodeValueResult(wire.NewDecoder(payload))
}

func (v *ViewStub) Exists(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewExists, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (v *ViewStub) Store(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	e.WriteBytes(value)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewStore, e.Bytes())
	if err != nil {
		return engine.ValueResult{}, err
	}
	return decodeValueResult(wire.NewDecoder(payload))
}

func (v *ViewStub) Exchange(ctx context.Context, txn engine.Transaction, key, value []byte) (engine.ValueResult, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	e.WriteBytes(value)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewExchange, e.Bytes())
	if err != nil {
		return engine.ValueResult{}, err
	}
	return decodeValueResult(wire.NewDecoder(payload))
}

// viewBoolOp covers the shared (txn, key, value) -> (bool, error) shape of
// Insert/Replace/Update, mirroring internal/server/view.go's handlers.
func (v *ViewStub) viewBoolOp(ctx context.Context, selector uint32, txn engine.Transaction, key, value []byte) (bool, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	e.WriteBytes(value)
	payload, err := call(ctx, v.sess, v.id, selector, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (v *ViewStub) Insert(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return v.viewBoolOp(ctx, wire.SelViewInsert, txn, key, value)
}

func (v *ViewStub) Replace(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return v.viewBoolOp(ctx, wire.SelViewReplace, txn, key, value)
}

func (v *ViewStub) Update(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return v.viewBoolOp(ctx, wire.SelViewUpdate, txn, key, value)
}

func (v *ViewStub) UpdateWithOld(ctx context.Context, txn engine.Transaction, key, oldValue, newValue []byte) (bool, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	e.WriteBytes(oldValue)
	e.WriteBytes(newValue)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewUpdateWithOld, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (v *ViewStub) Delete(ctx context.Context, txn engine.Transaction, key []byte) (bool, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	payload, err := call(ctx, v.sess, v.id, wire.SelViewDelete, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (v *ViewStub) Remove(ctx context.Context, txn engine.Transaction, key, value []byte) (bool, error) {
	return v.viewBoolOp(ctx, wire.SelViewRemove, txn, key, value)
}

func (v *ViewStub) Touch(ctx context.Context, txn engine.Transaction, key []byte) error {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	_, err := call(ctx, v.sess, v.id, wire.SelViewTouch, e.Bytes())
	return err
}

func (v *ViewStub) viewLockOp(ctx context.Context, selector uint32, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(key)
	payload, err := call(ctx, v.sess, v.id, selector, e.Bytes())
	if err != nil {
		return 0, err
	}
	return decodeLockResult(wire.NewDecoder(payload))
}

func (v *ViewStub) LockShared(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.viewLockOp(ctx, wire.SelViewLockShared, txn, key)
}

func (v *ViewStub) TryLockShared(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.viewLockOp(ctx, wire.SelViewTryLockShared, txn, key)
}

func (v *ViewStub) LockUpgradable(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.viewLockOp(ctx, wire.SelViewLockUpgradable, txn, key)
}

func (v *ViewStub) TryLockUpgradable(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.viewLockOp(ctx, wire.SelViewTryLockUpgradable, txn, key)
}

func (v *ViewStub) LockExclusive(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.viewLockOp(ctx, wire.SelViewLockExclusive, txn, key)
}

func (v *ViewStub) TryLockExclusive(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.viewLockOp(ctx, wire.SelViewTryLockExclusive, txn, key)
}

func (v *ViewStub) LockCheck(ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.viewLockOp(ctx, wire.SelViewLockCheck, txn, key)
}

func (v *ViewStub) IsUnmodifiable() bool {
	payload, err := call(context.Background(), v.sess, v.id, wire.SelViewIsUnmodifiable, nil)
	if err != nil {
		return false
	}
	ok, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return false
	}
	return ok
}

func (v *ViewStub) IsModifyAtomic() bool {
	payload, err := call(context.Background(), v.sess, v.id, wire.SelViewIsModifyAtomic, nil)
	if err != nil {
		return false
	}
	ok, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return false
	}
	return ok
}
