package client

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// SnapshotStub is the client-side proxy for an engine.Snapshot.
type SnapshotStub struct {
	sess *session.ClientSession
	id   int64
}

func newSnapshotStub(sess *session.ClientSession, id int64) *SnapshotStub {
	return &SnapshotStub{sess: sess, id: id}
}

func (s *SnapshotStub) handleID() int64 { return s.id }

func (s *SnapshotStub) Length() int64 {
	payload, err := call(context.Background(), s.sess, s.id, wire.SelSnapshotLength, nil)
	if err != nil {
		return 0
	}
	n, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return 0
	}
	return n
}

func (s *SnapshotStub) Position() int64 {
	payload, err := call(context.Background(), s.sess, s.id, wire.SelSnapshotPosition, nil)
	if err != nil {
		return 0
	}
	n, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return 0
	}
	return n
}

func (s *SnapshotStub) IsCompressible() bool {
	payload, err := call(context.Background(), s.sess, s.id, wire.SelSnapshotIsCompressible, nil)
	if err != nil {
		return false
	}
	ok, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return false
	}
	return ok
}

// WriteTo pulls the snapshot's bytes over a dedicated pipe: this side
// picks the pipe id and attaches it before asking the server to start
// writing, then drains chunks into w until the server ends the stream.
func (s *SnapshotStub) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	pipe := s.sess.Pipes().Acquire(ctx)
	e := wire.NewEncoder()
	e.WriteUint64(pipe.ID())
	if _, err := call(ctx, s.sess, s.id, wire.SelSnapshotWriteTo, e.Bytes()); err != nil {
		s.sess.Pipes().Release(pipe)
		return 0, err
	}
	defer s.sess.Pipes().Release(pipe)

	var total int64
	for {
		chunk, err := pipe.Recv()
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
		n, werr := w.Write(chunk)
		total += int64(n)
		if werr != nil {
			return total, werr
		}
	}
}

func (s *SnapshotStub) Close(ctx context.Context) error {
	_, err := disposingCall(ctx, s.sess, s.id, wire.SelSnapshotClose, nil)
	return err
}
