package client

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/transport"
	"github.com/tupldb/remote/internal/wire"
)

// CursorStub is the client-side proxy for an engine.Cursor.
type CursorStub struct {
	sess *session.ClientSession
	id   int64

	// key/autoload cache the last values observed from the server so Key
	// (which engine.Cursor exposes as a synchronous, non-error getter)
	// doesn't need a round trip on every call. key is refreshed by every
	// positioning call; autoload only changes through SetAutoload (or Copy).
	key      []byte
	autoload bool
}

func newCursorStub(sess *session.ClientSession, id int64) *CursorStub {
	c := &CursorStub{sess: sess, id: id, autoload: true}
	c.refreshKey(context.Background())
	return c
}

func (c *CursorStub) handleID() int64 { return c.id }

func (c *CursorStub) refreshKey(ctx context.Context) {
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorKey, nil)
	if err != nil {
		return
	}
	if key, err := wire.NewDecoder(payload).ReadBytes(); err == nil {
		c.key = key
	}
}

func (c *CursorStub) Ordering() wire.Ordering {
	payload, err := call(context.Background(), c.sess, c.id, wire.SelCursorOrdering, nil)
	if err != nil {
		return wire.OrderingUnspecified
	}
	b, err := wire.NewDecoder(payload).ReadUint8()
	if err != nil {
		return wire.OrderingUnspecified
	}
	return wire.DecodeOrdering(b)
}

func (c *CursorStub) Link(ctx context.Context, txn engine.Transaction) (engine.Transaction, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorLink, e.Bytes())
	if err != nil {
		return nil, err
	}
	prevID, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	if prevID == 0 {
		return nil, nil
	}
	return newTransactionStub(c.sess, prevID), nil
}

func (c *CursorStub) Key() []byte { return c.key }

func (c *CursorStub) Value(ctx context.Context) (engine.ValueResult, error) {
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorValue, nil)
	if err != nil {
		return engine.ValueResult{}, err
	}
	return decodeValueResult(wire.NewDecoder(payload))
}

func (c *CursorStub) Autoload() bool { return c.autoload }

func (c *CursorStub) SetAutoload(autoload bool) {
	c.autoload = autoload
	e := wire.NewEncoder()
	e.WriteBool(autoload)
	_, _ = call(context.Background(), c.sess, c.id, wire.SelCursorSetAutoload, e.Bytes())
}

func (c *CursorStub) CompareKeyTo(ctx context.Context, key []byte) (int, error) {
	e := wire.NewEncoder()
	e.WriteBytes(key)
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorCompareKeyTo, e.Bytes())
	if err != nil {
		return 0, err
	}
	n, err := wire.NewDecoder(payload).ReadInt32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *CursorStub) First(ctx context.Context) error {
	_, err := call(ctx, c.sess, c.id, wire.SelCursorFirst, nil)
	c.refreshKey(ctx)
	return err
}

func (c *CursorStub) Last(ctx context.Context) error {
	_, err := call(ctx, c.sess, c.id, wire.SelCursorLast, nil)
	c.refreshKey(ctx)
	return err
}

func encodeLimitKey(e *wire.Encoder, limitKey []byte, inclusive bool) {
	e.WriteBytes(limitKey)
	e.WriteBool(inclusive)
}

func (c *CursorStub) Skip(ctx context.Context, amount int64, limitKey []byte, inclusive bool) error {
	e := wire.NewEncoder()
	e.WriteInt64(amount)
	encodeLimitKey(e, limitKey, inclusive)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorSkip, e.Bytes())
	c.refreshKey(ctx)
	return err
}

func (c *CursorStub) Next(ctx context.Context, limitKey []byte, inclusive bool) error {
	e := wire.NewEncoder()
	encodeLimitKey(e, limitKey, inclusive)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorNext, e.Bytes())
	c.refreshKey(ctx)
	return err
}

func (c *CursorStub) Prev(ctx context.Context, limitKey []byte, inclusive bool) error {
	e := wire.NewEncoder()
	encodeLimitKey(e, limitKey, inclusive)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorPrev, e.Bytes())
	c.refreshKey(ctx)
	return err
}

func (c *CursorStub) Find(ctx context.Context, key []byte, mode engine.FindMode) error {
	e := wire.NewEncoder()
	e.WriteBytes(key)
	e.WriteUint8(uint8(mode))
	_, err := call(ctx, c.sess, c.id, wire.SelCursorFind, e.Bytes())
	c.refreshKey(ctx)
	return err
}

func (c *CursorStub) Random(ctx context.Context, low, high []byte) error {
	e := wire.NewEncoder()
	e.WriteBytes(low)
	e.WriteBytes(high)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorRandom, e.Bytes())
	c.refreshKey(ctx)
	return err
}

func (c *CursorStub) Exists(ctx context.Context) (bool, error) {
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorExists, nil)
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (c *CursorStub) Lock(ctx context.Context) (wire.LockResult, error) {
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorLock, nil)
	if err != nil {
		return 0, err
	}
	return decodeLockResult(wire.NewDecoder(payload))
}

func (c *CursorStub) Load(ctx context.Context) error {
	_, err := call(ctx, c.sess, c.id, wire.SelCursorLoad, nil)
	return err
}

func (c *CursorStub) Store(ctx context.Context, value []byte) error {
	e := wire.NewEncoder()
	e.WriteBytes(value)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorStore, e.Bytes())
	return err
}

func (c *CursorStub) Delete(ctx context.Context) error {
	_, err := call(ctx, c.sess, c.id, wire.SelCursorDelete, nil)
	return err
}

func (c *CursorStub) Commit(ctx context.Context, value []byte) error {
	e := wire.NewEncoder()
	e.WriteBytes(value)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorCommit, e.Bytes())
	return err
}

func (c *CursorStub) Copy() engine.Cursor {
	payload, err := call(context.Background(), c.sess, c.id, wire.SelCursorCopy, nil)
	if err != nil {
		return nil
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil
	}
	copied := newCursorStub(c.sess, id)
	copied.key = append([]byte(nil), c.key...)
	copied.autoload = c.autoload
	return copied
}

func (c *CursorStub) Reset() {
	_, _ = call(context.Background(), c.sess, c.id, wire.SelCursorReset, nil)
	c.key = nil
}

func (c *CursorStub) Register(ctx context.Context) error {
	_, err := call(ctx, c.sess, c.id, wire.SelCursorRegister, nil)
	return err
}

func (c *CursorStub) Unregister(ctx context.Context) error {
	_, err := call(ctx, c.sess, c.id, wire.SelCursorUnregister, nil)
	return err
}

func (c *CursorStub) ValueLength(ctx context.Context) (int64, error) {
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorValueLength, nil)
	if err != nil {
		return 0, err
	}
	return wire.NewDecoder(payload).ReadInt64()
}

func (c *CursorStub) SetValueLength(ctx context.Context, length int64) error {
	e := wire.NewEncoder()
	e.WriteInt64(length)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorSetValueLength, e.Bytes())
	return err
}

func (c *CursorStub) ValueRead(ctx context.Context, pos int64, buf []byte) (int, error) {
	e := wire.NewEncoder()
	e.WriteInt64(pos)
	e.WriteInt32(int32(len(buf)))
	payload, err := call(ctx, c.sess, c.id, wire.SelCursorValueRead, e.Bytes())
	if err != nil {
		return 0, err
	}
	data, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

func (c *CursorStub) ValueWrite(ctx context.Context, pos int64, data []byte) error {
	e := wire.NewEncoder()
	e.WriteInt64(pos)
	e.WriteBytes(data)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorValueWrite, e.Bytes())
	return err
}

func (c *CursorStub) ValueClear(ctx context.Context, pos, length int64) error {
	e := wire.NewEncoder()
	e.WriteInt64(pos)
	e.WriteInt64(length)
	_, err := call(ctx, c.sess, c.id, wire.SelCursorValueClear, e.Bytes())
	return err
}

// NewValueInputStream opens a server->client pipe carrying the cursor's
// value in chunks. The pipe id is chosen on this side and attached
// before the open request is even sent, so the server's streaming
// goroutine never has anywhere to write a chunk the client hasn't
// already registered.
func (c *CursorStub) NewValueInputStream(ctx context.Context, bufferSize int) (io.ReadCloser, error) {
	pipe := c.sess.Pipes().Acquire(ctx)
	e := wire.NewEncoder()
	e.WriteInt32(int32(bufferSize))
	e.WriteUint64(pipe.ID())
	if _, err := call(ctx, c.sess, c.id, wire.SelCursorNewValueInputStream, e.Bytes()); err != nil {
		c.sess.Pipes().Release(pipe)
		return nil, err
	}
	return &pipeReader{sess: c.sess, pipe: pipe}, nil
}

// NewValueOutputStream opens a client->server pipe the caller writes the
// cursor's new value into, chunk by chunk, ending with Close.
func (c *CursorStub) NewValueOutputStream(ctx context.Context, bufferSize int) (io.WriteCloser, error) {
	pipe := c.sess.Pipes().Acquire(ctx)
	e := wire.NewEncoder()
	e.WriteInt32(int32(bufferSize))
	e.WriteUint64(pipe.ID())
	if _, err := call(ctx, c.sess, c.id, wire.SelCursorNewValueOutputStream, e.Bytes()); err != nil {
		c.sess.Pipes().Release(pipe)
		return nil, err
	}
	return &pipeWriter{sess: c.sess, pipe: pipe}, nil
}

// pipeReader adapts a transport.Pipe's chunked Recv into a plain
// io.Reader, buffering whatever part of a chunk the caller's slice
// couldn't hold yet.
type pipeReader struct {
	sess *session.ClientSession
	pipe *transport.Pipe
	buf  []byte
}

func (r *pipeReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.pipe.Recv()
		if err != nil {
			return 0, err
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *pipeReader) Close() error {
	r.sess.Pipes().Release(r.pipe)
	return nil
}

// pipeWriter adapts a transport.Pipe into an io.WriteCloser: every Write
// becomes one chunk, Close sends the terminal chunk and releases the
// pipe back to the session's pool.
type pipeWriter struct {
	sess *session.ClientSession
	pipe *transport.Pipe
}

// maxPipeChunk bounds a single Send so its length always fits the wire's
// 15-bit chunk length field (the header's high bit is the end flag),
// regardless of how large a buffer the caller passes to Write.
const maxPipeChunk = 1<<15 - 1

func (w *pipeWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxPipeChunk {
			n = maxPipeChunk
		}
		if err := w.pipe.Send(append([]byte(nil), p[:n]...)); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func (w *pipeWriter) Close() error {
	err := w.pipe.SendFinal()
	w.sess.Pipes().Release(w.pipe)
	return err
}
