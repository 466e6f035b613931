package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tupldb/remote/internal/wire"
)

func echoHandler(ctx context.Context, req wire.RequestFrame) wire.ReplyFrame {
	return wire.ReplyFrame{PipeID: req.PipeID, Kind: wire.FrameResult, Payload: req.Payload}
}

func TestListenerRoundTrip(t *testing.T) {
	ln := NewListener(ServerConfig{
		Addr: "127.0.0.1:0",
		NewHandler: func(c *Conn) RequestHandler {
			return echoHandler
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- ln.Serve(ctx) }()

	// Poll until the listener has bound its address.
	deadline := time.Now().Add(2 * time.Second)
	for ln.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, ln.Addr())

	conn, err := Dial(ctx, ln.Addr().String(), 0, 0, nil)
	require.NoError(t, err)
	defer conn.Close()

	go func() { _ = conn.Serve(ctx) }()

	reply, err := conn.Call(ctx, wire.RequestFrame{PipeID: 1, Selector: 42, Payload: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, wire.FrameResult, reply.Kind)
	assert.Equal(t, []byte("hello"), reply.Payload)
}

func TestPipePoolAcquireRelease(t *testing.T) {
	conn := &Conn{pipes: make(map[uint64]*Pipe)}
	pool := NewPipePool(conn, 2)

	p1 := pool.Acquire(context.Background())
	assert.Equal(t, PipeAcquired, p1.State())

	pool.Release(p1)
	p2 := pool.Acquire(context.Background())
	assert.Same(t, p1, p2, "expected the released pipe to be reused")
	assert.Equal(t, PipeAcquired, p2.State())
}

func TestPipeRecvAfterClose(t *testing.T) {
	conn := &Conn{pipes: make(map[uint64]*Pipe)}
	p := newPipe(1, conn)
	conn.registerPipe(p)

	p.closeLocal(nil)
	_, err := p.Recv()
	assert.Error(t, err)
}
