package server

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/transport"
	"github.com/tupldb/remote/internal/wire"
)

// Cursor is the skeleton for an engine.Cursor. txnHandleID tracks which
// registered Transaction handle the cursor is currently linked to, since
// engine.Cursor.Link returns the previous transaction by value and the
// registry has no reverse lookup from value to handle id.
type Cursor struct {
	cur         engine.Cursor
	reg         *registry.Registry
	bogus       engine.Transaction
	txnHandleID int64
}

func decodeFindMode(b uint8) engine.FindMode { return engine.FindMode(b) }

func handlerCursorOrdering(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	e := wire.NewEncoder()
	e.WriteUint8(uint8(s.cur.Ordering()))
	return e.Bytes(), nil
}

func handlerCursorKey(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	e := wire.NewEncoder()
	e.WriteBytes(s.cur.Key())
	return e.Bytes(), nil
}

func handlerCursorValue(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	v, err := s.cur.Value(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeValueResult(e, v)
	return e.Bytes(), nil
}

func handlerCursorAutoload(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	e := wire.NewEncoder()
	e.WriteBool(s.cur.Autoload())
	return e.Bytes(), nil
}

func handlerCursorSetAutoload(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	autoload, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return nil, engine.IllegalStateError("malformed autoload flag")
	}
	s.cur.SetAutoload(autoload)
	return nil, nil
}

func handlerCursorCompareKeyTo(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	key, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	cmp, err := s.cur.CompareKeyTo(ctx, key)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteInt32(int32(cmp))
	return e.Bytes(), nil
}

func handlerCursorFirst(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Cursor).cur.First(ctx)
}

func handlerCursorLast(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Cursor).cur.Last(ctx)
}

func decodeLimitKey(d *wire.Decoder) (key []byte, inclusive bool, err error) {
	key, err = d.ReadBytes()
	if err != nil {
		return nil, false, engine.IllegalStateError("malformed limit key")
	}
	inclusive, err = d.ReadBool()
	if err != nil {
		return nil, false, engine.IllegalStateError("malformed inclusive flag")
	}
	return nilIfEmpty(key), inclusive, nil
}

func handlerCursorSkip(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	amount, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed skip amount")
	}
	limitKey, inclusive, err := decodeLimitKey(d)
	if err != nil {
		return nil, err
	}
	return nil, s.cur.Skip(ctx, amount, limitKey, inclusive)
}

func handlerCursorNext(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	limitKey, inclusive, err := decodeLimitKey(wire.NewDecoder(payload))
	if err != nil {
		return nil, err
	}
	return nil, s.cur.Next(ctx, limitKey, inclusive)
}

func handlerCursorPrev(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	limitKey, inclusive, err := decodeLimitKey(wire.NewDecoder(payload))
	if err != nil {
		return nil, err
	}
	return nil, s.cur.Prev(ctx, limitKey, inclusive)
}

func handlerCursorFind(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	key, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed key")
	}
	mode, err := d.ReadUint8()
	if err != nil {
		return nil, engine.IllegalStateError("malformed find mode")
	}
	return nil, s.cur.Find(ctx, key, decodeFindMode(mode))
}

func handlerCursorRandom(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	low, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed low bound")
	}
	high, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed high bound")
	}
	return nil, s.cur.Random(ctx, nilIfEmpty(low), nilIfEmpty(high))
}

func handlerCursorExists(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	ok, err := s.cur.Exists(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerCursorLock(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	result, err := s.cur.Lock(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeLockResult(e, result)
	return e.Bytes(), nil
}

func handlerCursorLoad(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Cursor).cur.Load(ctx)
}

func handlerCursorStore(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	value, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	return nil, s.cur.Store(ctx, value)
}

func handlerCursorDelete(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Cursor).cur.Delete(ctx)
}

func handlerCursorCommit(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	value, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value")
	}
	return nil, s.cur.Commit(ctx, value)
}

func handlerCursorCopy(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	copied := s.cur.Copy()
	h := s.reg.Register(registry.KindCursor, &Cursor{cur: copied, reg: s.reg, bogus: s.bogus, txnHandleID: s.txnHandleID})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerCursorReset(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	handle.(*Cursor).cur.Reset()
	return nil, nil
}

func handlerCursorLink(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	txn, txnHandleID, err := decodeTxnRefWithID(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	previous, err := s.cur.Link(ctx, txn)
	if err != nil {
		return nil, err
	}
	previousHandleID := s.txnHandleID
	s.txnHandleID = txnHandleID
	_ = previous
	e := wire.NewEncoder()
	e.WriteInt64(previousHandleID)
	return e.Bytes(), nil
}

func handlerCursorRegister(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Cursor).cur.Register(ctx)
}

func handlerCursorUnregister(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, handle.(*Cursor).cur.Unregister(ctx)
}

func handlerCursorValueLength(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	n, err := s.cur.ValueLength(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteInt64(n)
	return e.Bytes(), nil
}

func handlerCursorSetValueLength(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	length, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed value length")
	}
	return nil, s.cur.SetValueLength(ctx, length)
}

func handlerCursorValueRead(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
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
	n, err := s.cur.ValueRead(ctx, pos, buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(buf[:n])
	return e.Bytes(), nil
}

func handlerCursorValueWrite(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	pos, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed position")
	}
	data, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed data")
	}
	return nil, s.cur.ValueWrite(ctx, pos, data)
}

func handlerCursorValueClear(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	pos, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed position")
	}
	length, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed length")
	}
	return nil, s.cur.ValueClear(ctx, pos, length)
}

// streamValueIn pumps rc's bytes onto pipe as a sequence of chunks, the
// §4.9 value-input-stream framing: one chunk per read of rc, each at most
// bufferSize bytes (capped at maxChunkPayload), followed by a Final chunk,
// or an IsException chunk if rc ends in error instead of EOF. rc and the
// pipe are both closed before this returns.
func streamValueIn(pipe *transport.Pipe, rc io.ReadCloser, bufferSize int) {
	defer rc.Close()
	defer pipe.Close()
	if bufferSize <= 0 || bufferSize > maxChunkPayload {
		bufferSize = maxChunkPayload
	}
	buf := make([]byte, bufferSize)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if werr := pipe.Send(chunk); werr != nil {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				_ = pipe.SendFinal()
			} else {
				_ = pipe.SendException()
			}
			return
		}
	}
}

// drainValueOut reads chunks off pipe, writing their bytes into wc until
// the peer closes the stream. The pipe and wc are both closed before this
// returns.
func drainValueOut(pipe *transport.Pipe, wc io.WriteCloser) error {
	defer wc.Close()
	defer pipe.Close()
	for {
		buf, err := pipe.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(buf) == 0 {
			return nil
		}
		if _, err := wc.Write(buf); err != nil {
			return err
		}
	}
}

// handlerCursorNewValueInputStream answers a client's NewValueInputStream
// call: the client reads the cursor's value, so bytes flow server->client
// over a pipe. The client picks the pipe id and attaches to it before
// ever sending this request (internal/client/cursor.go), so the id
// carried in payload is already a live, receiving Pipe on the client's
// side by the time this handler can possibly write the first chunk —
// streaming can start on its own goroutine immediately with no risk of a
// chunk arriving at an id the client hasn't registered yet.
func handlerCursorNewValueInputStream(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	bufferSize, err := d.ReadInt32()
	if err != nil {
		return nil, engine.IllegalStateError("malformed buffer size")
	}
	pipeID, err := d.ReadUint64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed pipe id")
	}
	rc, err := s.cur.NewValueInputStream(ctx, int(bufferSize))
	if err != nil {
		return nil, err
	}
	if s.reg.Conn == nil {
		rc.Close()
		return nil, engine.UnsupportedOperationError("session has no connection")
	}

	pipe := s.reg.Conn.AttachPipe(pipeID)
	go streamValueIn(pipe, rc, int(bufferSize))
	return nil, nil
}

// handlerCursorNewValueOutputStream answers a client's
// NewValueOutputStream call: the client writes the cursor's value, so
// bytes flow client->server over a pipe the client likewise chose and
// pre-attached the id for. Draining runs on its own goroutine so this
// handler (and the connection's single read loop) isn't blocked for the
// whole transfer.
func handlerCursorNewValueOutputStream(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Cursor)
	d := wire.NewDecoder(payload)
	bufferSize, err := d.ReadInt32()
	if err != nil {
		return nil, engine.IllegalStateError("malformed buffer size")
	}
	pipeID, err := d.ReadUint64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed pipe id")
	}
	wc, err := s.cur.NewValueOutputStream(ctx, int(bufferSize))
	if err != nil {
		return nil, err
	}
	if s.reg.Conn == nil {
		wc.Close()
		return nil, engine.UnsupportedOperationError("session has no connection")
	}

	pipe := s.reg.Conn.AttachPipe(pipeID)
	go func() { _ = drainValueOut(pipe, wc) }()
	return nil, nil
}

// RegisterCursor binds the Cursor-kind selector range onto d.
func RegisterCursor(d *rpc.Dispatcher) {
	d.Register(wire.SelCursorOrdering, handlerCursorOrdering)
	d.Register(wire.SelCursorKey, handlerCursorKey)
	d.Register(wire.SelCursorLink, handlerCursorLink)
	d.Register(wire.SelCursorRegister, handlerCursorRegister)
	d.Register(wire.SelCursorUnregister, handlerCursorUnregister)
	d.Register(wire.SelCursorValue, handlerCursorValue)
	d.Register(wire.SelCursorAutoload, handlerCursorAutoload)
	d.Register(wire.SelCursorSetAutoload, handlerCursorSetAutoload)
	d.Register(wire.SelCursorCompareKeyTo, handlerCursorCompareKeyTo)
	d.Register(wire.SelCursorFirst, handlerCursorFirst)
	d.Register(wire.SelCursorLast, handlerCursorLast)
	d.Register(wire.SelCursorSkip, handlerCursorSkip)
	d.Register(wire.SelCursorNext, handlerCursorNext)
	d.Register(wire.SelCursorPrev, handlerCursorPrev)
	d.Register(wire.SelCursorFind, handlerCursorFind)
	d.Register(wire.SelCursorRandom, handlerCursorRandom)
	d.Register(wire.SelCursorExists, handlerCursorExists)
	d.Register(wire.SelCursorLock, handlerCursorLock)
	d.Register(wire.SelCursorLoad, handlerCursorLoad)
	d.Register(wire.SelCursorStore, handlerCursorStore)
	d.Register(wire.SelCursorDelete, handlerCursorDelete)
	d.Register(wire.SelCursorCommit, handlerCursorCommit)
	d.Register(wire.SelCursorCopy, handlerCursorCopy)
	d.Register(wire.SelCursorReset, handlerCursorReset)
	d.Register(wire.SelCursorValueLength, handlerCursorValueLength)
	d.Register(wire.SelCursorSetValueLength, handlerCursorSetValueLength)
	d.Register(wire.SelCursorValueRead, handlerCursorValueRead)
	d.Register(wire.SelCursorValueWrite, handlerCursorValueWrite)
	d.Register(wire.SelCursorValueClear, handlerCursorValueClear)
	d.Register(wire.SelCursorNewValueInputStream, handlerCursorNewValueInputStream)
	d.Register(wire.SelCursorNewValueOutputStream, handlerCursorNewValueOutputStream)
}
