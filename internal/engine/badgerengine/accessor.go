package badgerengine

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tupldb/remote/internal/engine"
)

// accessor is the key-bound ValueAccessor NewAccessor returns. Partial
// reads/writes load the whole value, splice it in memory, and write it
// back: badger stores values as opaque blobs with no sub-value mutation
// API, so there is no cheaper option at this layer.
type accessor struct {
	idx *Index
	txn engine.Transaction
	key []byte
}

func (a *accessor) current(t *badger.Txn) ([]byte, error) {
	item, err := t.Get(indexDataKey(a.idx.id, a.key))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var val []byte
	err = item.Value(func(v []byte) error {
		val = append([]byte(nil), v...)
		return nil
	})
	return val, err
}

func (a *accessor) ValueLength(ctx context.Context) (int64, error) {
	var length int64
	err := a.idx.withTxn(a.txn, false, func(t *badger.Txn) error {
		v, err := a.current(t)
		if err != nil {
			return err
		}
		length = int64(len(v))
		return nil
	})
	return length, wrapErr(err)
}

func (a *accessor) SetValueLength(ctx context.Context, length int64) error {
	return wrapErr(a.idx.withTxn(a.txn, true, func(t *badger.Txn) error {
		v, err := a.current(t)
		if err != nil {
			return err
		}
		v = resizeValue(v, length)
		return t.Set(indexDataKey(a.idx.id, a.key), v)
	}))
}

func (a *accessor) ValueRead(ctx context.Context, pos int64, buf []byte) (int, error) {
	var n int
	err := a.idx.withTxn(a.txn, false, func(t *badger.Txn) error {
		v, err := a.current(t)
		if err != nil {
			return err
		}
		if pos >= int64(len(v)) {
			return nil
		}
		n = copy(buf, v[pos:])
		return nil
	})
	return n, wrapErr(err)
}

func (a *accessor) ValueWrite(ctx context.Context, pos int64, data []byte) error {
	return wrapErr(a.idx.withTxn(a.txn, true, func(t *badger.Txn) error {
		v, err := a.current(t)
		if err != nil {
			return err
		}
		need := pos + int64(len(data))
		if int64(len(v)) < need {
			v = resizeValue(v, need)
		}
		copy(v[pos:], data)
		return t.Set(indexDataKey(a.idx.id, a.key), v)
	}))
}

func (a *accessor) ValueClear(ctx context.Context, pos, length int64) error {
	return wrapErr(a.idx.withTxn(a.txn, true, func(t *badger.Txn) error {
		v, err := a.current(t)
		if err != nil {
			return err
		}
		end := pos + length
		if end > int64(len(v)) {
			end = int64(len(v))
		}
		for i := pos; i < end; i++ {
			v[i] = 0
		}
		return t.Set(indexDataKey(a.idx.id, a.key), v)
	}))
}

func resizeValue(v []byte, length int64) []byte {
	if int64(len(v)) == length {
		return v
	}
	grown := make([]byte, length)
	copy(grown, v)
	return grown
}
