package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tupldb/remote/internal/engine/memengine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

func newTestSession(t *testing.T) (*rpc.Dispatcher, *registry.Registry, int64) {
	t.Helper()
	db := memengine.New()
	d, reg, root := NewSession(db, 4)
	return d, reg, root.ID
}

func call(t *testing.T, d *rpc.Dispatcher, pipeID int64, selector uint32, payload []byte) []byte {
	t.Helper()
	reply := d.Handle(context.Background(), wire.RequestFrame{
		PipeID: uint64(pipeID), Selector: selector, Payload: payload,
	})
	require.Equal(t, wire.FrameResult, reply.Kind, "expected result frame, got exception: %s", decodeExceptionMessage(reply))
	return reply.Payload
}

func callExpectException(t *testing.T, d *rpc.Dispatcher, pipeID int64, selector uint32, payload []byte) *wire.WireError {
	t.Helper()
	reply := d.Handle(context.Background(), wire.RequestFrame{
		PipeID: uint64(pipeID), Selector: selector, Payload: payload,
	})
	require.Equal(t, wire.FrameException, reply.Kind)
	werr, err := wire.DecodeError(reply.Payload)
	require.NoError(t, err)
	return werr
}

func decodeExceptionMessage(reply wire.ReplyFrame) string {
	if reply.Kind != wire.FrameException {
		return ""
	}
	werr, err := wire.DecodeError(reply.Payload)
	if err != nil {
		return err.Error()
	}
	return werr.Message
}

func encodeTxnRef(id int64) []byte {
	e := wire.NewEncoder()
	e.WriteInt64(id)
	return e.Bytes()
}

func TestDatabaseOpenIndexRoundTrip(t *testing.T) {
	d, _, root := newTestSession(t)

	nameEnc := wire.NewEncoder()
	nameEnc.WriteString("orders")
	reply := call(t, d, root, wire.SelDatabaseOpen, nameEnc.Bytes())
	idxID, err := wire.NewDecoder(reply).ReadInt64()
	require.NoError(t, err)
	assert.NotZero(t, idxID)

	idReply := call(t, d, idxID, wire.SelIndexID, nil)
	_, err = wire.NewDecoder(idReply).ReadInt64()
	require.NoError(t, err)
}

func TestViewStoreLoadThroughBogusTransaction(t *testing.T) {
	d, _, root := newTestSession(t)

	nameEnc := wire.NewEncoder()
	nameEnc.WriteString("widgets")
	reply := call(t, d, root, wire.SelDatabaseOpen, nameEnc.Bytes())
	idxID, err := wire.NewDecoder(reply).ReadInt64()
	require.NoError(t, err)

	store := wire.NewEncoder()
	store.WriteInt64(0) // bogus transaction
	store.WriteBytes([]byte("k1"))
	store.WriteBytes([]byte("v1"))
	call(t, d, idxID, wire.SelViewStore, store.Bytes())

	load := wire.NewEncoder()
	load.WriteInt64(0)
	load.WriteBytes([]byte("k1"))
	loadReply := call(t, d, idxID, wire.SelViewLoad, load.Bytes())
	ld := wire.NewDecoder(loadReply)
	loaded, err := ld.ReadBool()
	require.NoError(t, err)
	assert.True(t, loaded)
	value, err := ld.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)
}

func TestTransactionCommitPersistsWrites(t *testing.T) {
	d, _, root := newTestSession(t)

	nameEnc := wire.NewEncoder()
	nameEnc.WriteString("accounts")
	reply := call(t, d, root, wire.SelDatabaseOpen, nameEnc.Bytes())
	idxID, err := wire.NewDecoder(reply).ReadInt64()
	require.NoError(t, err)

	mode := wire.NewEncoder()
	mode.WriteUint8(uint8(wire.DurabilitySync))
	txnReply := call(t, d, root, wire.SelDatabaseNewTransaction, mode.Bytes())
	txnID, err := wire.NewDecoder(txnReply).ReadInt64()
	require.NoError(t, err)

	store := wire.NewEncoder()
	store.WriteInt64(txnID)
	store.WriteBytes([]byte("bal"))
	store.WriteBytes([]byte("100"))
	call(t, d, idxID, wire.SelViewStore, store.Bytes())

	existsBeforeCommit := wire.NewEncoder()
	existsBeforeCommit.WriteInt64(0)
	existsBeforeCommit.WriteBytes([]byte("bal"))
	existsReply := call(t, d, idxID, wire.SelViewExists, existsBeforeCommit.Bytes())
	exists, err := wire.NewDecoder(existsReply).ReadBool()
	require.NoError(t, err)
	assert.False(t, exists, "write must not be visible outside its transaction before commit")

	call(t, d, txnID, wire.SelTxnCommit, nil)

	existsAfterCommit := wire.NewEncoder()
	existsAfterCommit.WriteInt64(0)
	existsAfterCommit.WriteBytes([]byte("bal"))
	existsReply2 := call(t, d, idxID, wire.SelViewExists, existsAfterCommit.Bytes())
	exists2, err := wire.NewDecoder(existsReply2).ReadBool()
	require.NoError(t, err)
	assert.True(t, exists2)
}

func TestCursorScanAscending(t *testing.T) {
	d, _, root := newTestSession(t)

	nameEnc := wire.NewEncoder()
	nameEnc.WriteString("scan")
	reply := call(t, d, root, wire.SelDatabaseOpen, nameEnc.Bytes())
	idxID, err := wire.NewDecoder(reply).ReadInt64()
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		store := wire.NewEncoder()
		store.WriteInt64(0)
		store.WriteBytes([]byte(k))
		store.WriteBytes([]byte(k + k))
		call(t, d, idxID, wire.SelViewStore, store.Bytes())
	}

	curReply := call(t, d, idxID, wire.SelViewNewCursor, encodeTxnRef(0))
	curID, err := wire.NewDecoder(curReply).ReadInt64()
	require.NoError(t, err)

	call(t, d, curID, wire.SelCursorFirst, nil)
	var keys []string
	for {
		keyReply := call(t, d, curID, wire.SelCursorKey, nil)
		key, err := wire.NewDecoder(keyReply).ReadBytes()
		require.NoError(t, err)
		if len(key) == 0 {
			break
		}
		keys = append(keys, string(key))
		call(t, d, curID, wire.SelCursorNext, wire.NewEncoder().Bytes())
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestDatabaseVerifyWithoutObserver(t *testing.T) {
	d, _, root := newTestSession(t)

	observerRef := wire.NewEncoder()
	observerRef.WriteInt64(0)
	reply := call(t, d, root, wire.SelDatabaseVerify, observerRef.Bytes())
	ok, err := wire.NewDecoder(reply).ReadBool()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDatabaseStatsRoundTrip(t *testing.T) {
	d, _, root := newTestSession(t)
	reply := call(t, d, root, wire.SelDatabaseStats, nil)
	dec := wire.NewDecoder(reply)
	statsBytes, err := dec.ReadBytes()
	require.NoError(t, err)
	_, err = dec.ReadInt64()
	require.NoError(t, err)
	stats, err := wire.DecodeIndexStats(statsBytes)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.EntryCount, int64(0))
}

func TestUnknownHandleYieldsException(t *testing.T) {
	d, _, _ := newTestSession(t)
	werr := callExpectException(t, d, 99999, wire.SelDatabaseStats, nil)
	assert.Equal(t, wire.ErrorKindIllegalState, werr.Kind)
}
