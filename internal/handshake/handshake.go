// Package handshake implements the fixed-size header exchanged at the
// start of every connection, before any request/reply framing begins. It
// is deliberately not an XDR/RPC message: a fixed-width header lets either
// side validate and reject a connection in a single read, without first
// having to trust a length field from an unauthenticated peer.
package handshake

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed wire size of a Header.
const HeaderSize = 44

// magicNumber identifies this protocol on the wire. A peer that doesn't
// send this value is talking some other protocol (or garbage) and the
// connection is rejected before any further bytes are trusted.
const magicNumber uint64 = 2825672906279293275

// groupID identifies the protocol revision group. A future incompatible
// revision would change this so old and new peers fail the handshake
// cleanly instead of misinterpreting each other's frames.
const groupID uint64 = 5156919750013540996

// reservedSize is the width of the header's reserved-for-future-use region.
// It must be all zero bytes on both send and receive.
const reservedSize = 12

// Header is the 44-byte handshake message, little-endian throughout:
//
//	[8-byte magic][8-byte group id][12 reserved zero bytes][8-byte token A][8-byte token B]
//
// The client sends a Header first, carrying up to two acceptable tokens
// (a primary and a rotating secondary, to support token rotation without
// downtime). The server accepts the connection if the magic and group id
// match and at least one of its own configured tokens equals one of the
// client's token slots — or if the server has no configured tokens at
// all, in which case it accepts unconditionally. On acceptance the server
// echoes the header back unchanged. On rejection it echoes the header
// with GroupID zeroed, which a client recognizes as a refusal without
// needing a separate status byte.
type Header struct {
	Magic    uint64
	GroupID  uint64
	TokenA   uint64
	TokenB   uint64
}

// NewHeader builds a Header with the fixed magic/group id and the given
// token slots (zero value for an unused slot).
func NewHeader(tokenA, tokenB uint64) Header {
	return Header{Magic: magicNumber, GroupID: groupID, TokenA: tokenA, TokenB: tokenB}
}

// Valid reports whether h carries the expected magic and group id. It does
// not check tokens; token acceptance is a separate, policy-driven step
// (see Accept).
func (h Header) Valid() bool {
	return h.Magic == magicNumber && h.GroupID == groupID
}

// rejected returns a copy of h with GroupID zeroed, used to signal refusal
// while still returning a structurally valid 44-byte header.
func (h Header) rejected() Header {
	h.GroupID = 0
	return h
}

// Write serializes h to w in the fixed 44-byte little-endian layout.
func Write(w io.Writer, h Header) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], h.GroupID)
	// bytes [16:28] are the reserved zero region, already zero-valued.
	binary.LittleEndian.PutUint64(buf[28:36], h.TokenA)
	binary.LittleEndian.PutUint64(buf[36:44], h.TokenB)
	_, err := w.Write(buf[:])
	return err
}

// Read reads and parses a fixed 44-byte Header from r.
func Read(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	for _, b := range buf[16:28] {
		if b != 0 {
			return Header{}, fmt.Errorf("handshake: reserved region not zero")
		}
	}
	return Header{
		Magic:   binary.LittleEndian.Uint64(buf[0:8]),
		GroupID: binary.LittleEndian.Uint64(buf[8:16]),
		TokenA:  binary.LittleEndian.Uint64(buf[28:36]),
		TokenB:  binary.LittleEndian.Uint64(buf[36:44]),
	}, nil
}

// TokenSet is the set of tokens a server accepts. An empty set means the
// server runs unauthenticated and accepts any client handshake whose
// magic/group id are valid.
type TokenSet []uint64

// accepts reports whether token is a member of the set, or whether the
// set is empty (unauthenticated mode).
func (ts TokenSet) accepts(token uint64) bool {
	if len(ts) == 0 {
		return true
	}
	for _, t := range ts {
		if t == token {
			return true
		}
	}
	return false
}

// ClientHandshake performs the client side of the exchange: send our
// header, read the server's echo, and determine acceptance. Rejection is
// signaled by the server zeroing GroupID on its reply.
func ClientHandshake(rw io.ReadWriter, tokenA, tokenB uint64) error {
	req := NewHeader(tokenA, tokenB)
	if err := Write(rw, req); err != nil {
		return fmt.Errorf("handshake: write request: %w", err)
	}
	reply, err := Read(rw)
	if err != nil {
		return fmt.Errorf("handshake: read reply: %w", err)
	}
	if reply.Magic != magicNumber || reply.GroupID != groupID {
		return fmt.Errorf("handshake: rejected by peer")
	}
	return nil
}

// ServerHandshake performs the server side: read the client's header,
// validate magic/group id and tokens, and write back an acceptance or
// rejection echo. accepted reports the outcome; a non-nil error indicates
// a transport or framing failure rather than a policy rejection.
func ServerHandshake(rw io.ReadWriter, accepted TokenSet) (bool, error) {
	req, err := Read(rw)
	if err != nil {
		return false, fmt.Errorf("handshake: read request: %w", err)
	}
	if !req.Valid() {
		_ = Write(rw, req.rejected())
		return false, nil
	}
	ok := accepted.accepts(req.TokenA) || accepted.accepts(req.TokenB)
	if !ok {
		_ = Write(rw, req.rejected())
		return false, nil
	}
	if err := Write(rw, req); err != nil {
		return false, fmt.Errorf("handshake: write reply: %w", err)
	}
	return true, nil
}
