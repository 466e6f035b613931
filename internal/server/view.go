package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

// View is the skeleton for any engine.View — a registry View (name<->id
// lookup) or the View half of an Index, addressed through the same
// selector range either way. bogus is the owning Database's shared
// no-op sentinel transaction, captured once at registration time so a
// call that omits a transaction reference (id 0) runs against the real
// bogus transaction rather than a throwaway one that would never be
// committed.
type View struct {
	view  engine.View
	reg   *registry.Registry
	bogus engine.Transaction
}

func handlerViewNewCursor(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	txn, txnHandleID, err := decodeTxnRefWithID(s.reg, s.bogus, wire.NewDecoder(payload))
	if err != nil {
		return nil, err
	}
	cur, err := s.view.NewCursor(ctx, txn)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindCursor, &Cursor{cur: cur, reg: s.reg, bogus: s.bogus, txnHandleID: txnHandleID})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerViewIsEmpty(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	txn, err := decodeTxnRef(s.reg, s.bogus, wire.NewDecoder(payload))
	if err != nil {
		return nil, err
	}
	empty, err := s.view.IsEmpty(ctx, txn)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(empty)
	return e.Bytes(), nil
}

func handlerViewCount(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	low, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed low bound")
	}
	high, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed high bound")
	}
	count, err := s.view.Count(ctx, txn, nilIfEmpty(low), nilIfEmpty(high))
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteInt64(count)
	return e.Bytes(), nil
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func handlerViewLoad(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	v, err := s.view.Load(ctx, txn, key)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeValueResult(e, v)
	return e.Bytes(), nil
}

func handlerViewExists(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	ok, err := s.view.Exists(ctx, txn, key)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerViewStore(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	value, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	v, err := s.view.Store(ctx, txn, key, value)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeValueResult(e, v)
	return e.Bytes(), nil
}

func handlerViewInsert(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	value, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	ok, err := s.view.Insert(ctx, txn, key, value)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerViewReplace(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	value, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	ok, err := s.view.Replace(ctx, txn, key, value)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerViewUpdate(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	value, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	ok, err := s.view.Update(ctx, txn, key, value)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerViewDelete(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	ok, err := s.view.Delete(ctx, txn, key)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerViewLockExclusive(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	result, err := s.view.LockExclusive(ctx, txn, key)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeLockResult(e, result)
	return e.Bytes(), nil
}

func handlerViewIsUnmodifiable(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	e := wire.NewEncoder()
	e.WriteBool(s.view.IsUnmodifiable())
	return e.Bytes(), nil
}

func handlerViewOrdering(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	e := wire.NewEncoder()
	e.WriteUint8(uint8(s.view.Ordering()))
	return e.Bytes(), nil
}

func handlerViewIsModifyAtomic(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	e := wire.NewEncoder()
	e.WriteBool(s.view.IsModifyAtomic())
	return e.Bytes(), nil
}

func handlerViewNewAccessor(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	acc, err := s.view.NewAccessor(ctx, txn, key)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindAccessor, &Accessor{acc: acc})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerViewNewTransaction(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	mode, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return nil, engine.IllegalStateError("malformed durability mode")
	}
	txn, err := s.view.NewTransaction(ctx, wire.DecodeDurabilityMode(mode))
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindTransaction, &Transaction{txn: txn})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerViewExchange(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	value, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	v, err := s.view.Exchange(ctx, txn, key, value)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeValueResult(e, v)
	return e.Bytes(), nil
}

func handlerViewUpdateWithOld(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	oldValue, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed old value")
	}
	newValue, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed new value")
	}
	ok, err := s.view.UpdateWithOld(ctx, txn, key, oldValue, newValue)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerViewRemove(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	value, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	ok, err := s.view.Remove(ctx, txn, key, value)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerViewTouch(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*View)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	return nil, s.view.Touch(ctx, txn, key)
}

// viewLockOp adapts one of View's seven lock-acquisition methods to the
// shared request/reply shape (txn ref + key in, LockResult out).
func viewLockOp(op func(v *View, ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error)) func(context.Context, any, []byte) ([]byte, error) {
	return func(ctx context.Context, handle any, payload []byte) ([]byte, error) {
		s := handle.(*View)
		d := wire.NewDecoder(payload)
		txn, err := decodeTxnRef(s.reg, s.bogus, d)
		if err != nil {
			return nil, err
		}
		key, err := d.ReadBytes()
		if err != nil {
			return nil, engine.IllegalStateError("malformed key")
		}
		result, err := op(s, ctx, txn, key)
		if err != nil {
			return nil, err
		}
		e := wire.NewEncoder()
		encodeLockResult(e, result)
		return e.Bytes(), nil
	}
}

var handlerViewLockShared = viewLockOp(func(v *View, ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.view.LockShared(ctx, txn, key)
})
var handlerViewTryLockShared = viewLockOp(func(v *View, ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.view.TryLockShared(ctx, txn, key)
})
var handlerViewLockUpgradable = viewLockOp(func(v *View, ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.view.LockUpgradable(ctx, txn, key)
})
var handlerViewTryLockUpgradable = viewLockOp(func(v *View, ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.view.TryLockUpgradable(ctx, txn, key)
})
var handlerViewTryLockExclusive = viewLockOp(func(v *View, ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.view.TryLockExclusive(ctx, txn, key)
})
var handlerViewLockCheck = viewLockOp(func(v *View, ctx context.Context, txn engine.Transaction, key []byte) (wire.LockResult, error) {
	return v.view.LockCheck(ctx, txn, key)
})

// RegisterView binds the View-kind selector range onto rd. Index handles
// embed a View and answer the same selectors through it: viewRegistrar
// hands each View handler the embedded *View when the target is an *Index.
func RegisterView(rd *rpc.Dispatcher) {
	d := viewRegistrar{rd}
	d.Register(wire.SelViewOrdering, handlerViewOrdering)
	d.Register(wire.SelViewNewCursor, handlerViewNewCursor)
	d.Register(wire.SelViewNewAccessor, handlerViewNewAccessor)
	d.Register(wire.SelViewNewTransaction, handlerViewNewTransaction)
	d.Register(wire.SelViewIsEmpty, handlerViewIsEmpty)
	d.Register(wire.SelViewCount, handlerViewCount)
	d.Register(wire.SelViewLoad, handlerViewLoad)
	d.Register(wire.SelViewExists, handlerViewExists)
	d.Register(wire.SelViewStore, handlerViewStore)
	d.Register(wire.SelViewExchange, handlerViewExchange)
	d.Register(wire.SelViewInsert, handlerViewInsert)
	d.Register(wire.SelViewReplace, handlerViewReplace)
	d.Register(wire.SelViewUpdate, handlerViewUpdate)
	d.Register(wire.SelViewUpdateWithOld, handlerViewUpdateWithOld)
	d.Register(wire.SelViewDelete, handlerViewDelete)
	d.Register(wire.SelViewRemove, handlerViewRemove)
	d.Register(wire.SelViewTouch, handlerViewTouch)
	d.Register(wire.SelViewLockShared, handlerViewLockShared)
	d.Register(wire.SelViewTryLockShared, handlerViewTryLockShared)
	d.Register(wire.SelViewLockUpgradable, handlerViewLockUpgradable)
	d.Register(wire.SelViewTryLockUpgradable, handlerViewTryLockUpgradable)
	d.Register(wire.SelViewLockExclusive, handlerViewLockExclusive)
	d.Register(wire.SelViewTryLockExclusive, handlerViewTryLockExclusive)
	d.Register(wire.SelViewLockCheck, handlerViewLockCheck)
	d.Register(wire.SelViewIsUnmodifiable, handlerViewIsUnmodifiable)
	d.Register(wire.SelViewIsModifyAtomic, handlerViewIsModifyAtomic)
}

type viewRegistrar struct{ d *rpc.Dispatcher }

func (r viewRegistrar) Register(selector uint32, h rpc.Handler) {
	r.d.Register(selector, func(ctx context.Context, handle any, payload []byte) ([]byte, error) {
		if idx, ok := handle.(*Index); ok {
			handle = &idx.View
		}
		return h(ctx, handle, payload)
	})
}
