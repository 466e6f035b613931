package remotedb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tupldb/remote/internal/engine/memengine"
)

func startTestServer(t *testing.T) (addr string, shutdown func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	srv, err := NewServer(memengine.New(), ServerOptions{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	return srv.Addr().String(), func() {
		cancel()
		<-done
	}
}

func TestDialOpensIndexOverRealListener(t *testing.T) {
	addr, shutdown := startTestServer(t)
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, ClientOptions{Addr: addr})
	require.NoError(t, err)
	defer client.Close()

	idx, err := client.Database().Open(ctx, "orders")
	require.NoError(t, err)
	require.NotNil(t, idx)
}
