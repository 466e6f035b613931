package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single request/reply frame. Larger payloads (row
// scans, value streams, snapshot bytes, sort batches) travel over a
// streaming pipe instead of a single frame; see ChunkHeader below.
const MaxFrameSize = 1 << 24 // 16MiB

// FrameKind discriminates a reply frame's payload.
type FrameKind uint8

const (
	FrameResult    FrameKind = 0
	FrameException FrameKind = 1
)

// RequestFrame is one client->server call: which logical pipe it targets,
// which capability operation it selects, and its marshaled arguments.
// Batched requests are written without waiting for a reply; NoReply
// requests additionally tell the server not to write one.
type RequestFrame struct {
	PipeID   uint64
	Selector uint32
	Batched  bool
	NoReply  bool
	Payload  []byte
}

// ReplyFrame is one server->client response: either a typed result or a
// serialized exception (see internal/wire/errs.go).
type ReplyFrame struct {
	PipeID  uint64
	Kind    FrameKind
	Payload []byte
}

// WriteRequest writes a length-prefixed request frame:
//
//	[4-byte length][8-byte pipe id][4-byte selector][1-byte flags][payload]
//
// flags bit0 = batched, bit1 = no-reply. The leading length mirrors the
// teacher's RPC record-marking header (internal/adapter/nfs/connection.go)
// but without the "more fragments follow" bit: a frame here is never split,
// bulk transfer uses a pipe instead.
func WriteRequest(w io.Writer, f RequestFrame) error {
	body := make([]byte, 0, 13+len(f.Payload))
	var hdr [13]byte
	binary.BigEndian.PutUint64(hdr[0:8], f.PipeID)
	binary.BigEndian.PutUint32(hdr[8:12], f.Selector)
	var flags byte
	if f.Batched {
		flags |= 1
	}
	if f.NoReply {
		flags |= 2
	}
	hdr[12] = flags
	body = append(body, hdr[:]...)
	body = append(body, f.Payload...)

	if len(body) > MaxFrameSize {
		return fmt.Errorf("wire: request frame too large: %d bytes", len(body))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write request length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write request body: %w", err)
	}
	return nil
}

// ReadRequest reads one request frame. io.EOF is returned unwrapped so
// callers can distinguish a clean disconnect from a framing error.
func ReadRequest(r io.Reader) (RequestFrame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return RequestFrame{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return RequestFrame{}, fmt.Errorf("wire: request frame too large: %d bytes", n)
	}
	if n < 13 {
		return RequestFrame{}, fmt.Errorf("wire: request frame too short: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return RequestFrame{}, fmt.Errorf("read request body: %w", err)
	}
	flags := body[12]
	return RequestFrame{
		PipeID:   binary.BigEndian.Uint64(body[0:8]),
		Selector: binary.BigEndian.Uint32(body[8:12]),
		Batched:  flags&1 != 0,
		NoReply:  flags&2 != 0,
		Payload:  body[13:],
	}, nil
}

// WriteReply writes a length-prefixed reply frame:
//
//	[4-byte length][8-byte pipe id][1-byte kind][payload]
func WriteReply(w io.Writer, f ReplyFrame) error {
	body := make([]byte, 0, 9+len(f.Payload))
	var hdr [9]byte
	binary.BigEndian.PutUint64(hdr[0:8], f.PipeID)
	hdr[8] = byte(f.Kind)
	body = append(body, hdr[:]...)
	body = append(body, f.Payload...)

	if len(body) > MaxFrameSize {
		return fmt.Errorf("wire: reply frame too large: %d bytes", len(body))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write reply length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write reply body: %w", err)
	}
	return nil
}

// ReadReply reads one reply frame.
func ReadReply(r io.Reader) (ReplyFrame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return ReplyFrame{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return ReplyFrame{}, fmt.Errorf("wire: reply frame too large: %d bytes", n)
	}
	if n < 9 {
		return ReplyFrame{}, fmt.Errorf("wire: reply frame too short: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return ReplyFrame{}, fmt.Errorf("read reply body: %w", err)
	}
	return ReplyFrame{
		PipeID:  binary.BigEndian.Uint64(body[0:8]),
		Kind:    FrameKind(body[8]),
		Payload: body[9:],
	}, nil
}

// chunkEndFlag marks the high bit of a 16-bit chunk header.
const chunkEndFlag = 1 << 15

// chunkMaxLength is the largest length a chunk header can carry (15 bits).
const chunkMaxLength = chunkEndFlag - 1

// chunkExceptionSentinel is the reserved all-ones header value meaning
// "what follows is a serialized exception, not a data chunk" on a
// valueInputStream. It aliases the (end=true, length=0x7FFF) combination,
// which a real data chunk never needs since 0x7FFF bytes would simply be
// split into two chunks.
const chunkExceptionSentinel = 0xFFFF

// ChunkHeader frames one chunk of a value input/output stream (§4.9).
// On valueInputStream, Final means end-of-value and IsException means the
// bytes that follow are a serialized exception instead of value data. On
// valueOutputStream the same Final bit means "close the pipe", and a chunk
// with Length == 0 and Final == false is a flush-ack request carrying no
// data.
type ChunkHeader struct {
	Length      uint16
	Final       bool
	IsException bool
}

// WriteChunkHeader writes the 2-byte chunk header.
func WriteChunkHeader(w io.Writer, h ChunkHeader) error {
	var raw uint16
	if h.IsException {
		raw = chunkExceptionSentinel
	} else {
		if h.Length > chunkMaxLength {
			return fmt.Errorf("wire: chunk length %d exceeds %d", h.Length, chunkMaxLength)
		}
		raw = h.Length
		if h.Final {
			raw |= chunkEndFlag
		}
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], raw)
	_, err := w.Write(b[:])
	return err
}

// ReadChunkHeader reads and decodes a 2-byte chunk header.
func ReadChunkHeader(r io.Reader) (ChunkHeader, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ChunkHeader{}, err
	}
	raw := binary.BigEndian.Uint16(b[:])
	if raw == chunkExceptionSentinel {
		return ChunkHeader{IsException: true}, nil
	}
	return ChunkHeader{
		Length: raw &^ chunkEndFlag,
		Final:  raw&chunkEndFlag != 0,
	}, nil
}
