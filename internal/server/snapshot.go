package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/transport"
	"github.com/tupldb/remote/internal/wire"
)

// Snapshot is the skeleton for an engine.Snapshot.
type Snapshot struct {
	snapshot engine.Snapshot
	reg      *registry.Registry
}

// pipeSink adapts a transport.Pipe into an io.Writer for engine.Snapshot's
// WriteTo, splitting whatever the caller hands it into chunks no larger
// than the wire's chunk length field can carry.
type pipeSink struct {
	pipe *transport.Pipe
}

const maxChunkPayload = 1<<15 - 1

func (s pipeSink) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxChunkPayload {
			n = maxChunkPayload
		}
		if err := s.pipe.Send(append([]byte(nil), p[:n]...)); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func handlerSnapshotLength(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Snapshot)
	e := wire.NewEncoder()
	e.WriteInt64(s.snapshot.Length())
	return e.Bytes(), nil
}

func handlerSnapshotPosition(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Snapshot)
	e := wire.NewEncoder()
	e.WriteInt64(s.snapshot.Position())
	return e.Bytes(), nil
}

func handlerSnapshotIsCompressible(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Snapshot)
	e := wire.NewEncoder()
	e.WriteBool(s.snapshot.IsCompressible())
	return e.Bytes(), nil
}

// handlerSnapshotWriteTo streams the snapshot's bytes onto a pipe the
// client already chose an id for and attached locally, the same
// pre-attach-before-request pattern internal/server/cursor.go uses for
// value streams. The transfer runs on its own goroutine so this handler
// (and the connection's read loop) returns immediately.
func handlerSnapshotWriteTo(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Snapshot)
	pipeID, err := wire.NewDecoder(payload).ReadUint64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed pipe id")
	}
	if s.reg.Conn == nil {
		return nil, engine.UnsupportedOperationError("session has no connection")
	}
	pipe := s.reg.Conn.AttachPipe(pipeID)
	go func() {
		_, werr := s.snapshot.WriteTo(ctx, pipeSink{pipe: pipe})
		if werr != nil {
			_ = pipe.SendException()
		} else {
			_ = pipe.SendFinal()
		}
		_ = pipe.Close()
	}()
	return nil, nil
}

func handlerSnapshotClose(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Snapshot).snapshot.Close(ctx)
}

// RegisterSnapshot binds the Snapshot-kind selector range onto d.
func RegisterSnapshot(d *rpc.Dispatcher) {
	d.Register(wire.SelSnapshotLength, handlerSnapshotLength)
	d.Register(wire.SelSnapshotPosition, handlerSnapshotPosition)
	d.Register(wire.SelSnapshotIsCompressible, handlerSnapshotIsCompressible)
	d.Register(wire.SelSnapshotWriteTo, handlerSnapshotWriteTo)
	d.Register(wire.SelSnapshotClose, handlerSnapshotClose)
}
