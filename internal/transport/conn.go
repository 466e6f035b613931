package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/tupldb/remote/internal/logger"
	"github.com/tupldb/remote/internal/wire"
)

// RequestHandler processes one decoded request frame and produces a
// reply. It is supplied by internal/rpc; transport itself knows nothing
// about capability selectors or handle identities.
type RequestHandler func(ctx context.Context, req wire.RequestFrame) wire.ReplyFrame

// Conn wraps one net.Conn and multiplexes capability request/reply
// traffic together with any number of bulk-data Pipes over it, mirroring
// the way the teacher's NFS connection demuxes RPC replies from
// backchannel callbacks on a single socket (pkg/adapter/nfs/connection.go).
type Conn struct {
	netConn net.Conn
	writeMu sync.Mutex

	pipesMu sync.Mutex
	pipes   map[uint64]*Pipe

	handler RequestHandler
	pending sync.Map // pipeID(uint64) -> chan wire.ReplyFrame, for in-flight calls awaiting a reply

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an already-handshaken net.Conn. handler may be nil on a
// pure client connection that never accepts inbound calls.
func NewConn(nc net.Conn, handler RequestHandler) *Conn {
	return &Conn{
		netConn: nc,
		pipes:   make(map[uint64]*Pipe),
		handler: handler,
	}
}

// RemoteAddr exposes the underlying peer address for logging.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// Close shuts down the connection and closes every pipe still open on it.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.netConn.Close()
		c.pipesMu.Lock()
		pipes := make([]*Pipe, 0, len(c.pipes))
		for _, p := range c.pipes {
			pipes = append(pipes, p)
		}
		c.pipes = map[uint64]*Pipe{}
		c.pipesMu.Unlock()
		for _, p := range pipes {
			p.closeLocal(fmt.Errorf("transport: connection closed"))
		}
	})
	return c.closeErr
}

// Serve runs the read loop until the connection closes or ctx is
// cancelled. Inbound request envelopes are dispatched to handler on their
// own goroutine so one slow call can't stall pipe traffic on the same
// connection.
func (c *Conn) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	for {
		env, err := readEnvelope(c.netConn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("transport: read envelope: %w", err)
		}

		switch env.kind {
		case envelopeRequest:
			if c.handler == nil {
				continue
			}
			req := env.request
			go func() {
				reply := c.handler(ctx, req)
				if req.NoReply {
					return
				}
				if err := c.writeEnvelope(envelope{kind: envelopeReply, reply: reply}); err != nil {
					logger.Warnf("transport: write reply failed: %v", err)
				}
			}()
		case envelopeReply:
			if ch, ok := c.pending.LoadAndDelete(env.reply.PipeID); ok {
				ch.(chan wire.ReplyFrame) <- env.reply
			}
		case envelopePipeData:
			c.pipesMu.Lock()
			p := c.pipes[env.pipeID]
			c.pipesMu.Unlock()
			if p != nil {
				switch {
				case env.chunk.IsException:
					p.closeLocal(fmt.Errorf("transport: pipe %d: remote reported an error", env.pipeID))
				case env.chunk.Final:
					p.closeLocal(nil)
				default:
					p.deliver(env.payload)
				}
			}
		case envelopePipeClose:
			c.pipesMu.Lock()
			p := c.pipes[env.pipeID]
			delete(c.pipes, env.pipeID)
			c.pipesMu.Unlock()
			if p != nil {
				p.closeLocal(fmt.Errorf("transport: pipe closed by peer"))
			}
		}
	}
}

func (c *Conn) writeEnvelope(env envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeEnvelope(c.netConn, env)
}

// Call sends a request and blocks for its reply. The caller's pipeID is
// used as the correlation key for the pending-reply map, matching the
// request/reply pairing used for ordinary (non-streaming) capability
// calls; it has nothing to do with a transport Pipe.
func (c *Conn) Call(ctx context.Context, req wire.RequestFrame) (wire.ReplyFrame, error) {
	if req.NoReply {
		return wire.ReplyFrame{}, c.writeEnvelope(envelope{kind: envelopeRequest, request: req})
	}

	replyCh := make(chan wire.ReplyFrame, 1)
	c.pending.Store(req.PipeID, replyCh)
	defer c.pending.Delete(req.PipeID)

	if err := c.writeEnvelope(envelope{kind: envelopeRequest, request: req}); err != nil {
		return wire.ReplyFrame{}, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return wire.ReplyFrame{}, ctx.Err()
	}
}

// AttachPipe creates a Pipe under an id the peer already allocated (via
// its own PipePool) and announced back to this side — e.g. a client
// attaching to the pipe id a server chose and returned in a stream-open
// reply. Using the same numeric id on both ends is what lets a single
// envelopePipeData frame find the right Pipe object on whichever side
// receives it.
func (c *Conn) AttachPipe(id uint64) *Pipe {
	p := newPipe(id, c)
	c.registerPipe(p)
	return p
}

// registerPipe adds p to the connection's pipe table under its own id.
func (c *Conn) registerPipe(p *Pipe) {
	c.pipesMu.Lock()
	c.pipes[p.id] = p
	c.pipesMu.Unlock()
}

// reindexPipe moves p to a new id, used when the pool re-arms a recycled
// pipe for a fresh caller.
func (c *Conn) reindexPipe(p *Pipe, newID uint64) {
	c.pipesMu.Lock()
	delete(c.pipes, p.id)
	p.id = newID
	c.pipes[newID] = p
	c.pipesMu.Unlock()
}

// releasePipe removes p from the connection's table and tells the peer
// the pipe is closed.
func (c *Conn) releasePipe(id uint64) error {
	c.pipesMu.Lock()
	delete(c.pipes, id)
	c.pipesMu.Unlock()
	return c.writeEnvelope(envelope{kind: envelopePipeClose, pipeID: id})
}

// sendPipeChunk writes one data chunk for pipe id.
func (c *Conn) sendPipeChunk(id uint64, payload []byte) error {
	return c.writeEnvelope(envelope{
		kind:    envelopePipeData,
		pipeID:  id,
		payload: payload,
		chunk:   wire.ChunkHeader{Length: uint16(len(payload))},
	})
}

// sendPipeFinal writes the terminal chunk for pipe id, signaling
// end-of-stream (or, on a value-output-stream pipe, the request to close).
func (c *Conn) sendPipeFinal(id uint64) error {
	return c.writeEnvelope(envelope{
		kind:   envelopePipeData,
		pipeID: id,
		chunk:  wire.ChunkHeader{Final: true},
	})
}

// sendPipeException tells the peer the source feeding this pipe failed,
// so Recv on the other end returns an error rather than a clean EOF.
func (c *Conn) sendPipeException(id uint64) error {
	return c.writeEnvelope(envelope{
		kind:   envelopePipeData,
		pipeID: id,
		chunk:  wire.ChunkHeader{IsException: true},
	})
}
