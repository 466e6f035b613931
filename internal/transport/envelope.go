package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tupldb/remote/internal/wire"
)

// envelopeKind discriminates what travels inside one length-prefixed frame
// on the wire: a capability call, its reply, or a chunk belonging to a
// pipe previously opened by a call's arguments. All three share one
// length-prefixed envelope so a single read loop can demux them onto
// either the request dispatcher or the right Pipe.
type envelopeKind uint8

const (
	envelopeRequest envelopeKind = iota
	envelopeReply
	envelopePipeData
	envelopePipeClose
)

// envelope is the decoded form of one frame read off the connection.
type envelope struct {
	kind    envelopeKind
	pipeID  uint64
	request wire.RequestFrame
	reply   wire.ReplyFrame
	chunk   wire.ChunkHeader
	payload []byte
}

// writeEnvelope serializes env as: [4-byte length][1-byte kind][body].
func writeEnvelope(w io.Writer, env envelope) error {
	e := wire.NewEncoder()
	switch env.kind {
	case envelopeRequest:
		e.WriteUint64(env.request.PipeID)
		e.WriteUint32(env.request.Selector)
		var flags uint8
		if env.request.Batched {
			flags |= 1
		}
		if env.request.NoReply {
			flags |= 2
		}
		e.WriteUint8(flags)
		e.WriteBytes(env.request.Payload)
	case envelopeReply:
		e.WriteUint64(env.reply.PipeID)
		e.WriteUint8(uint8(env.reply.Kind))
		e.WriteBytes(env.reply.Payload)
	case envelopePipeData:
		e.WriteUint64(env.pipeID)
		var chunkFlags uint16
		if env.chunk.IsException {
			chunkFlags = 0xFFFF
		} else {
			chunkFlags = env.chunk.Length
			if env.chunk.Final {
				chunkFlags |= 1 << 15
			}
		}
		e.WriteUint32(uint32(chunkFlags))
		e.WriteBytes(env.payload)
	case envelopePipeClose:
		e.WriteUint64(env.pipeID)
	default:
		return fmt.Errorf("transport: unknown envelope kind %d", env.kind)
	}

	body := e.Bytes()
	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(body)+1))
	hdr[4] = uint8(env.kind)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readEnvelope reads and parses one frame from r.
func readEnvelope(r io.Reader) (envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return envelope{}, fmt.Errorf("transport: empty envelope")
	}
	if n > wire.MaxFrameSize {
		return envelope{}, fmt.Errorf("transport: envelope too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return envelope{}, err
	}
	kind := envelopeKind(body[0])
	d := wire.NewDecoder(body[1:])

	switch kind {
	case envelopeRequest:
		pipeID, err := d.ReadUint64()
		if err != nil {
			return envelope{}, err
		}
		selector, err := d.ReadUint32()
		if err != nil {
			return envelope{}, err
		}
		flags, err := d.ReadUint8()
		if err != nil {
			return envelope{}, err
		}
		payload, err := d.ReadBytes()
		if err != nil {
			return envelope{}, err
		}
		return envelope{
			kind: kind,
			request: wire.RequestFrame{
				PipeID: pipeID, Selector: selector,
				Batched: flags&1 != 0, NoReply: flags&2 != 0,
				Payload: append([]byte(nil), payload...),
			},
		}, nil
	case envelopeReply:
		pipeID, err := d.ReadUint64()
		if err != nil {
			return envelope{}, err
		}
		replyKind, err := d.ReadUint8()
		if err != nil {
			return envelope{}, err
		}
		payload, err := d.ReadBytes()
		if err != nil {
			return envelope{}, err
		}
		return envelope{
			kind: kind,
			reply: wire.ReplyFrame{
				PipeID: pipeID, Kind: wire.FrameKind(replyKind),
				Payload: append([]byte(nil), payload...),
			},
		}, nil
	case envelopePipeData:
		pipeID, err := d.ReadUint64()
		if err != nil {
			return envelope{}, err
		}
		rawFlags, err := d.ReadUint32()
		if err != nil {
			return envelope{}, err
		}
		payload, err := d.ReadBytes()
		if err != nil {
			return envelope{}, err
		}
		var ch wire.ChunkHeader
		if rawFlags == 0xFFFF {
			ch.IsException = true
		} else {
			ch.Length = uint16(rawFlags &^ (1 << 15))
			ch.Final = rawFlags&(1<<15) != 0
		}
		return envelope{kind: kind, pipeID: pipeID, chunk: ch, payload: append([]byte(nil), payload...)}, nil
	case envelopePipeClose:
		pipeID, err := d.ReadUint64()
		if err != nil {
			return envelope{}, err
		}
		return envelope{kind: kind, pipeID: pipeID}, nil
	default:
		return envelope{}, fmt.Errorf("transport: unknown envelope kind %d", kind)
	}
}
