package handshake

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(42, 7)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h))
	assert.Equal(t, HeaderSize, buf.Len())

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, got.Valid())
}

func TestReadRejectsNonZeroReserved(t *testing.T) {
	h := NewHeader(1, 2)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, h))
	raw := buf.Bytes()
	raw[20] = 0xFF // inside the reserved region

	_, err := Read(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestTokenSetAcceptsEmptyIsUnauthenticated(t *testing.T) {
	var ts TokenSet
	assert.True(t, ts.accepts(0))
	assert.True(t, ts.accepts(12345))
}

func TestTokenSetAcceptsKnownToken(t *testing.T) {
	ts := TokenSet{10, 20}
	assert.True(t, ts.accepts(10))
	assert.True(t, ts.accepts(20))
	assert.False(t, ts.accepts(30))
}

func TestHandshakeAcceptsMatchingToken(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	done := make(chan error, 1)
	go func() {
		done <- ClientHandshake(clientConn, 99, 0)
	}()

	accepted, err := ServerHandshake(serverConn, TokenSet{99})
	require.NoError(t, err)
	assert.True(t, accepted)
	require.NoError(t, <-done)
}

func TestHandshakeRejectsUnknownToken(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	done := make(chan error, 1)
	go func() {
		done <- ClientHandshake(clientConn, 1, 2)
	}()

	accepted, err := ServerHandshake(serverConn, TokenSet{99})
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Error(t, <-done)
}

func TestHandshakeUnauthenticatedServerAcceptsAny(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	done := make(chan error, 1)
	go func() {
		done <- ClientHandshake(clientConn, 0, 0)
	}()

	accepted, err := ServerHandshake(serverConn, nil)
	require.NoError(t, err)
	assert.True(t, accepted)
	require.NoError(t, <-done)
}
