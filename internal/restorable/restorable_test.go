package restorable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectSwapsHandleOnSuccess(t *testing.T) {
	calls := 0
	reopen := func(ctx context.Context, c Capture) (int64, error) {
		calls++
		return 42, nil
	}
	ref := NewRef(1, Capture{OriginHandleID: 7, Operation: "findIndex"}, reopen)

	tracker := NewTracker(nil)
	tracker.Track(ref)
	tracker.OnReconnected(context.Background())

	id, err := ref.HandleID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 1, calls)
}

var errTransient = errors.New("transient io failure")

func TestReconnectRetriesOnTransientFailure(t *testing.T) {
	attempt := 0
	reopen := func(ctx context.Context, c Capture) (int64, error) {
		attempt++
		if attempt == 1 {
			return 0, errTransient
		}
		return 99, nil
	}
	ref := NewRef(1, Capture{}, reopen)
	tracker := NewTracker(func(err error) bool { return errors.Is(err, errTransient) })
	tracker.Track(ref)

	tracker.OnReconnected(context.Background())
	assert.False(t, ref.Broken())
	id, err := ref.HandleID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id, "transient failure should leave the old handle id in place")

	tracker.OnReconnected(context.Background())
	id, err = ref.HandleID()
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
}

func TestReconnectBreaksOnDurableFailure(t *testing.T) {
	reopen := func(ctx context.Context, c Capture) (int64, error) {
		return 0, errors.New("index no longer exists")
	}
	ref := NewRef(1, Capture{}, reopen)
	tracker := NewTracker(func(err error) bool { return false })
	tracker.Track(ref)

	tracker.OnReconnected(context.Background())
	assert.True(t, ref.Broken())
	_, err := ref.HandleID()
	assert.Error(t, err)
}

func TestUntrackStopsReconnectAttempts(t *testing.T) {
	calls := 0
	reopen := func(ctx context.Context, c Capture) (int64, error) {
		calls++
		return 1, nil
	}
	ref := NewRef(1, Capture{}, reopen)
	tracker := NewTracker(nil)
	tracker.Track(ref)
	tracker.Untrack(ref)

	tracker.OnReconnected(context.Background())
	assert.Equal(t, 0, calls)
}
