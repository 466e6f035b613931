package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/wire"
)

type fakeIndex struct{ name string }

func TestDispatchRoutesToHandler(t *testing.T) {
	reg := registry.New()
	h := reg.Register(registry.KindIndex, &fakeIndex{name: "orders"})

	d := New(reg, 4)
	d.Register(1, func(ctx context.Context, handle any, payload []byte) ([]byte, error) {
		idx := handle.(*fakeIndex)
		return []byte(idx.name), nil
	})

	reply := d.Handle(context.Background(), wire.RequestFrame{PipeID: uint64(h.ID), Selector: 1})
	require.Equal(t, wire.FrameResult, reply.Kind)
	assert.Equal(t, "orders", string(reply.Payload))
}

func TestDispatchUnknownHandleYieldsException(t *testing.T) {
	reg := registry.New()
	d := New(reg, 4)

	reply := d.Handle(context.Background(), wire.RequestFrame{PipeID: 999, Selector: 1})
	assert.Equal(t, wire.FrameException, reply.Kind)

	werr, err := wire.DecodeError(reply.Payload)
	require.NoError(t, err)
	assert.Equal(t, wire.ErrorKindIllegalState, werr.Kind)
}

func TestDispatchUnknownSelectorYieldsUnsupported(t *testing.T) {
	reg := registry.New()
	h := reg.Register(registry.KindIndex, &fakeIndex{name: "orders"})
	d := New(reg, 4)

	reply := d.Handle(context.Background(), wire.RequestFrame{PipeID: uint64(h.ID), Selector: 77})
	assert.Equal(t, wire.FrameException, reply.Kind)

	werr, err := wire.DecodeError(reply.Payload)
	require.NoError(t, err)
	assert.Equal(t, wire.ErrorKindUnsupportedOperation, werr.Kind)
}

func TestDispatchWireErrorPassthrough(t *testing.T) {
	reg := registry.New()
	h := reg.Register(registry.KindIndex, &fakeIndex{})
	d := New(reg, 4)
	d.Register(2, func(ctx context.Context, handle any, payload []byte) ([]byte, error) {
		return nil, wire.NewLockTimeoutError("timed out", 500, "", nil)
	})

	reply := d.Handle(context.Background(), wire.RequestFrame{PipeID: uint64(h.ID), Selector: 2})
	assert.Equal(t, wire.FrameException, reply.Kind)

	werr, err := wire.DecodeError(reply.Payload)
	require.NoError(t, err)
	assert.Equal(t, wire.ErrorKindLockTimeout, werr.Kind)
	assert.Equal(t, int64(500), werr.Nanos)
}
