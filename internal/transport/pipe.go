// Package transport multiplexes many logical data pipes over a single TCP
// connection, on top of the length-prefixed framing in internal/wire. A
// pipe carries the bulk payloads that don't fit a single request/reply
// frame: value streams, cursor/query scans, sorter batches, snapshot bytes.
package transport

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// PipeState tracks a Pipe through its lifecycle. A pipe is Acquired the
// moment a caller reserves a PipeID, moves to InUse once bytes start
// flowing, and ends either Recycled (returned to the pool for reuse by a
// later caller) or Closed (torn down for good, e.g. after a stall or a
// protocol error).
type PipeState int32

const (
	PipeAcquired PipeState = iota
	PipeInUse
	PipeRecycled
	PipeClosed
)

func (s PipeState) String() string {
	switch s {
	case PipeAcquired:
		return "acquired"
	case PipeInUse:
		return "in_use"
	case PipeRecycled:
		return "recycled"
	case PipeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Pipe is one logical, ordered byte stream multiplexed over a Conn. Reads
// and writes are chunked per internal/wire.ChunkHeader; a Pipe itself only
// tracks identity, state, and the channel the Conn's read loop uses to
// hand it incoming chunks.
type Pipe struct {
	id    uint64
	conn  *Conn
	state atomic.Int32

	incoming chan []byte
	closeErr atomic.Value // error
	once     sync.Once
}

// ID returns the pipe's identity, stable for its whole lifetime including
// across a Recycle (the pool reuses the struct, not the id).
func (p *Pipe) ID() uint64 { return p.id }

// State returns the pipe's current lifecycle state.
func (p *Pipe) State() PipeState { return PipeState(p.state.Load()) }

func newPipe(id uint64, conn *Conn) *Pipe {
	p := &Pipe{id: id, conn: conn, incoming: make(chan []byte, 8)}
	p.state.Store(int32(PipeAcquired))
	return p
}

// markInUse transitions Acquired -> InUse on first write or read.
func (p *Pipe) markInUse() {
	p.state.CompareAndSwap(int32(PipeAcquired), int32(PipeInUse))
}

// deliver hands one incoming chunk payload to the pipe's reader. Called
// only from the owning Conn's demux loop.
func (p *Pipe) deliver(payload []byte) {
	select {
	case p.incoming <- payload:
	default:
		// A stalled reader that doesn't keep up gets the pipe closed
		// rather than letting the demux loop block indefinitely on one
		// slow consumer.
		p.closeLocal(fmt.Errorf("transport: pipe %d receive buffer full", p.id))
	}
}

// Recv blocks for the next chunk written by the peer. It returns io.EOF
// once the peer ends the stream cleanly (a Final chunk, or the
// connection closing without a reported error), or the peer's reported
// error if it ended the stream with one (an IsException chunk, or the
// underlying connection failing).
func (p *Pipe) Recv() ([]byte, error) {
	p.markInUse()
	payload, ok := <-p.incoming
	if !ok {
		if err, _ := p.closeErr.Load().(error); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return payload, nil
}

// Send writes one chunk to the peer over the owning connection.
func (p *Pipe) Send(payload []byte) error {
	p.markInUse()
	return p.conn.sendPipeChunk(p.id, payload)
}

// SendFinal writes the terminal chunk, telling the peer this pipe's
// stream has ended (or, for a value-output-stream pipe, requesting close).
func (p *Pipe) SendFinal() error {
	p.markInUse()
	return p.conn.sendPipeFinal(p.id)
}

// SendException tells the peer the source feeding this pipe failed.
func (p *Pipe) SendException() error {
	p.markInUse()
	return p.conn.sendPipeException(p.id)
}

// closeLocal tears the pipe down without notifying the peer (used when the
// underlying connection itself is gone, or the consumer stalled).
func (p *Pipe) closeLocal(err error) {
	p.once.Do(func() {
		if err != nil {
			p.closeErr.Store(err)
		}
		p.state.Store(int32(PipeClosed))
		close(p.incoming)
	})
}

// Close tears the pipe down for good: never eligible for recycling again.
func (p *Pipe) Close() error {
	p.closeLocal(nil)
	return p.conn.releasePipe(p.id)
}

// recycle returns the pipe to its pool's free list for reuse with a new
// identity's worth of traffic, provided it wasn't already torn down.
func (p *Pipe) recycle() bool {
	return p.state.CompareAndSwap(int32(PipeInUse), int32(PipeRecycled)) ||
		p.state.CompareAndSwap(int32(PipeAcquired), int32(PipeRecycled))
}
