package client

import (
	"context"

	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// AccessorStub is the client-side proxy for an engine.ValueAccessor.
type AccessorStub struct {
	sess *session.ClientSession
	id   int64
}

func newAccessorStub(sess *session.ClientSession, id int64) *AccessorStub {
	return &AccessorStub{sess: sess, id: id}
}

func (a *AccessorStub) handleID() int64 { return a.id }

func (a *AccessorStub) ValueLength(ctx context.Context) (int64, error) {
	payload, err := call(ctx, a.sess, a.id, wire.SelAccessorValueLength, nil)
	if err != nil {
		return 0, err
	}
	return wire.NewDecoder(payload).ReadInt64()
}

func (a *AccessorStub) SetValueLength(ctx context.Context, length int64) error {
	e := wire.NewEncoder()
	e.WriteInt64(length)
	_, err := call(ctx, a.sess, a.id, wire.SelAccessorSetValueLength, e.Bytes())
	return err
}

func (a *AccessorStub) ValueRead(ctx context.Context, pos int64, buf []byte) (int, error) {
	e := wire.NewEncoder()
	e.WriteInt64(pos)
	e.WriteInt32(int32(len(buf)))
	payload, err := call(ctx, a.sess, a.id, wire.SelAccessorValueRead, e.Bytes())
	if err != nil {
		return 0, err
	}
	data, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

func (a *AccessorStub) ValueWrite(ctx context.Context, pos int64, data []byte) error {
	e := wire.NewEncoder()
	e.WriteInt64(pos)
	e.WriteBytes(data)
	_, err := call(ctx, a.sess, a.id, wire.SelAccessorValueWrite, e.Bytes())
	return err
}

func (a *AccessorStub) ValueClear(ctx context.Context, pos, length int64) error {
	e := wire.NewEncoder()
	e.WriteInt64(pos)
	e.WriteInt64(length)
	_, err := call(ctx, a.sess, a.id, wire.SelAccessorValueClear, e.Bytes())
	return err
}
