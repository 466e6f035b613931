package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "reconnected", StateReconnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
}

func TestNewSessionIDIsUniqueUUID(t *testing.T) {
	a := newSessionID()
	b := newSessionID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestReconnectBackoffBounds(t *testing.T) {
	b := newReconnectBackoff()
	assert.NotNil(t, b)
	d := b.NextBackOff()
	assert.LessOrEqual(t, d, 30*time.Second)
}
