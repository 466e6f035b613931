// Package wire implements the binary encoding used between the client stubs
// and server skeletons: primitive value codecs, the typed enum/exception/
// stats/query-plan codecs, and the length-prefixed frame and chunk formats
// that carry them. It follows the teacher's hand-rolled, no-reflection
// encode/decode style (see internal/protocol/xdr in the reference tree)
// rather than a generic reflection-based serializer.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encoder accumulates a request or reply payload in big-endian wire format.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated payload.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return e.buf.Len() }

func (e *Encoder) WriteUint8(v uint8) { e.buf.WriteByte(v) }

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }

func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

// WriteBytes writes a length-prefixed byte slice: uint32 length + data.
func (e *Encoder) WriteBytes(data []byte) {
	e.WriteUint32(uint32(len(data)))
	e.buf.Write(data)
}

// WriteString writes a length-prefixed UTF-8 string.
func (e *Encoder) WriteString(s string) {
	e.WriteBytes([]byte(s))
}

// Decoder reads primitive values off a byte slice in big-endian wire format.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps data for sequential decoding.
func NewDecoder(data []byte) *Decoder { return &Decoder{data: data} }

// Remaining reports how many bytes are left to read.
func (d *Decoder) Remaining() int { return len(d.data) - d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return fmt.Errorf("wire: short buffer: need %d bytes, have %d", n, d.Remaining())
	}
	return nil
}

func (d *Decoder) ReadUint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.data[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) ReadBool() (bool, error) {
	v, err := d.ReadUint8()
	return v != 0, err
}

func (d *Decoder) ReadUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Decoder) ReadUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.data[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadBytes reads a length-prefixed byte slice. The returned slice aliases
// the decoder's backing array; callers that retain it past the lifetime of
// the source buffer must copy.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	v := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return v, nil
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
