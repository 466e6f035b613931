package server

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

// Accessor is the skeleton for an engine.ValueAccessor: streaming value
// I/O bound to one fixed key, the same chunked operations a Cursor
// exposes against its current position but without a navigable one.
type Accessor struct {
	acc engine.ValueAccessor
}

func handlerAccessorValueLength(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Accessor)
	n, err := s.acc.ValueLength(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteInt64(n)
	return e.Bytes(), nil
}

func handlerAccessorSetValueLength(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Accessor)
	length, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value length")
	}
	return nil, s.acc.SetValueLength(ctx, length)
}

func handlerAccessorValueRead(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Accessor)
	d := wire.NewDecoder(payload)
	pos, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed position")
	}
	length, err := d.ReadInt32()
	if err != nil {
		return nil, engine.IllegalStateError("malformed read length")
	}
	buf := make([]byte, length)
	n, err := s.acc.ValueRead(ctx, pos, buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(buf[:n])
	return e.Bytes(), nil
}

func handlerAccessorValueWrite(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Accessor)
	d := wire.NewDecoder(payload)
	pos, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed position")
	}
	data, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed data")
	}
	return nil, s.acc.ValueWrite(ctx, pos, data)
}

func handlerAccessorValueClear(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Accessor)
	d := wire.NewDecoder(payload)
	pos, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed position")
	}
	length, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed length")
	}
	return nil, s.acc.ValueClear(ctx, pos, length)
}

// RegisterAccessor binds the Accessor-kind selector range onto d.
func RegisterAccessor(d *rpc.Dispatcher) {
	d.Register(wire.SelAccessorValueLength, handlerAccessorValueLength)
	d.Register(wire.SelAccessorSetValueLength, handlerAccessorSetValueLength)
	d.Register(wire.SelAccessorValueRead, handlerAccessorValueRead)
	d.Register(wire.SelAccessorValueWrite, handlerAccessorValueWrite)
	d.Register(wire.SelAccessorValueClear, handlerAccessorValueClear)
}
