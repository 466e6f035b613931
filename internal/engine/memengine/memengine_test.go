package memengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

func TestDatabaseOpenFindRename(t *testing.T) {
	ctx := context.Background()
	db := New()

	idx, err := db.Open(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets", idx.NameString())

	same, err := db.Open(ctx, "widgets")
	require.NoError(t, err)
	assert.Same(t, idx, same)

	found, ok, err := db.Find(ctx, "widgets")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, idx, found)

	require.NoError(t, db.Rename(ctx, idx, "gadgets"))
	_, ok, err = db.Find(ctx, "widgets")
	require.NoError(t, err)
	assert.False(t, ok)

	found, ok, err = db.Find(ctx, "gadgets")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, idx, found)
}

func TestIndexStoreLoadInsertReplace(t *testing.T) {
	ctx := context.Background()
	db := New()
	idx, err := db.Open(ctx, "kv")
	require.NoError(t, err)

	ok, err := idx.Insert(ctx, nil, []byte("a"), []byte("1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.Insert(ctx, nil, []byte("a"), []byte("2"))
	require.NoError(t, err)
	assert.False(t, ok, "insert must not overwrite an existing key")

	v, err := idx.Load(ctx, nil, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v.Data)

	ok, err = idx.Replace(ctx, nil, []byte("a"), []byte("2"))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = idx.Load(ctx, nil, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v.Data)

	ok, err = idx.Replace(ctx, nil, []byte("missing"), []byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorAscendingDescendingScan(t *testing.T) {
	ctx := context.Background()
	db := New()
	idx, err := db.Open(ctx, "scan")
	require.NoError(t, err)

	for _, k := range []string{"b", "d", "a", "c"} {
		_, err := idx.Insert(ctx, nil, []byte(k), []byte(k))
		require.NoError(t, err)
	}

	cur, err := idx.NewCursor(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, cur.First(ctx))
	var forward []string
	for cur.Key() != nil {
		forward = append(forward, string(cur.Key()))
		require.NoError(t, cur.Next(ctx, nil, false))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, forward)

	require.NoError(t, cur.Last(ctx))
	var backward []string
	for cur.Key() != nil {
		backward = append(backward, string(cur.Key()))
		require.NoError(t, cur.Prev(ctx, nil, false))
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, backward)
}

func TestCursorFindModes(t *testing.T) {
	ctx := context.Background()
	db := New()
	idx, err := db.Open(ctx, "find")
	require.NoError(t, err)
	for _, k := range []string{"10", "20", "30"} {
		_, err := idx.Insert(ctx, nil, []byte(k), []byte(k))
		require.NoError(t, err)
	}
	cur, err := idx.NewCursor(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, cur.Find(ctx, []byte("20"), engine.FindExact))
	assert.Equal(t, "20", string(cur.Key()))

	require.NoError(t, cur.Find(ctx, []byte("15"), engine.FindGreaterOrEqual))
	assert.Equal(t, "20", string(cur.Key()))

	require.NoError(t, cur.Find(ctx, []byte("20"), engine.FindGreaterThan))
	assert.Equal(t, "30", string(cur.Key()))

	require.NoError(t, cur.Find(ctx, []byte("25"), engine.FindLessOrEqual))
	assert.Equal(t, "20", string(cur.Key()))

	require.NoError(t, cur.Find(ctx, []byte("20"), engine.FindLessThan))
	assert.Equal(t, "10", string(cur.Key()))

	require.NoError(t, cur.Find(ctx, []byte("99"), engine.FindGreaterOrEqual))
	assert.Nil(t, cur.Key())
}

func TestCursorValueStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := New()
	idx, err := db.Open(ctx, "stream")
	require.NoError(t, err)

	payload := make([]byte, 200*1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = idx.Insert(ctx, nil, []byte("blob"), nil)
	require.NoError(t, err)

	cur, err := idx.NewCursor(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, cur.Find(ctx, []byte("blob"), engine.FindExact))

	out, err := cur.NewValueOutputStream(ctx, 4096)
	require.NoError(t, err)
	buf := make([]byte, 4096)
	for off := 0; off < len(payload); off += len(buf) {
		n := copy(buf, payload[off:])
		_, err := out.Write(buf[:n])
		require.NoError(t, err)
	}
	require.NoError(t, out.Close())

	in, err := cur.NewValueInputStream(ctx, 4096)
	require.NoError(t, err)
	got := make([]byte, 0, len(payload))
	readBuf := make([]byte, 4096)
	for {
		n, err := in.Read(readBuf)
		got = append(got, readBuf[:n]...)
		if err != nil {
			break
		}
	}
	require.NoError(t, in.Close())
	assert.Equal(t, payload, got)
}

func TestTransactionLockModeAndTimeout(t *testing.T) {
	ctx := context.Background()
	db := New()
	txn, err := db.NewTransaction(ctx, wire.DurabilitySync)
	require.NoError(t, err)

	txn.SetLockMode(wire.LockModeRepeatableRead)
	assert.Equal(t, wire.LockModeRepeatableRead, txn.LockMode())

	txn.SetLockTimeout(5_000_000_000)
	assert.EqualValues(t, 5_000_000_000, txn.LockTimeout())

	require.NoError(t, txn.Enter(ctx))
	require.NoError(t, txn.Exit(ctx))
	require.NoError(t, txn.Commit(ctx))
}

func TestBogusTransactionIgnoresMutation(t *testing.T) {
	db := New()
	bogus := db.BogusTransaction()
	assert.True(t, bogus.IsBogus())

	bogus.SetLockMode(wire.LockModeUnsafe)
	assert.NotEqual(t, wire.LockModeUnsafe, bogus.LockMode())
}

func TestIndexVerifyVisitsEveryEntry(t *testing.T) {
	ctx := context.Background()
	db := New()
	idx, err := db.Open(ctx, "verify")
	require.NoError(t, err)

	const n = 10_000
	for i := 0; i < n; i++ {
		key := []byte{byte(i >> 24), byte(i >> 16), byte(i >> 8), byte(i)}
		_, err := idx.Insert(ctx, nil, key, key)
		require.NoError(t, err)
	}

	obs := &countingObserver{}
	ok, err := idx.Verify(ctx, obs)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, n, obs.passed)
}

type countingObserver struct {
	visited, passed, failed int
}

func (o *countingObserver) IndexNodeVisited(ctx context.Context, id int64, level int32) bool {
	o.visited++
	return true
}

func (o *countingObserver) IndexNodePassed(ctx context.Context, id int64, level int32, entryCount, freeBytes int64) bool {
	o.passed++
	return true
}

func (o *countingObserver) IndexNodeFailed(ctx context.Context, id int64, level int32, message string) bool {
	o.failed++
	return true
}

func TestTableRowRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := New()
	idx, err := db.Open(ctx, "rows")
	require.NoError(t, err)

	descriptor := wire.RowDescriptor{
		TableName: "rows",
		Columns: []wire.ColumnDescriptor{
			{Name: "id", Type: wire.ColumnTypeInt64, PrimaryKey: true},
			{Name: "name", Type: wire.ColumnTypeString},
		},
	}
	tbl, err := idx.AsTable(ctx, descriptor)
	require.NoError(t, err)

	row := encodeTestRow(t, 1, "alice")
	ok, err := tbl.Insert(ctx, nil, row)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := tbl.Load(ctx, nil, encodeTestRow(t, 1, ""))
	require.NoError(t, err)
	assert.True(t, loaded.Loaded)

	scanner, err := tbl.NewScanner(ctx, nil, NewFullScanQuery(), nil)
	require.NoError(t, err)
	defer scanner.Close(ctx)
	assert.NotNil(t, scanner.Row())
}

func encodeTestRow(t *testing.T, id int64, name string) []byte {
	t.Helper()
	e := wire.NewEncoder()
	idBytes := wire.NewEncoder()
	idBytes.WriteInt64(id)
	e.WriteBytes(idBytes.Bytes())
	e.WriteBytes([]byte(name))
	return e.Bytes()
}

func TestSorterFinishProducesSortedIndex(t *testing.T) {
	ctx := context.Background()
	db := New()
	s, err := db.NewSorter(ctx)
	require.NoError(t, err)

	for _, k := range []string{"z", "a", "m"} {
		require.NoError(t, s.Add(ctx, []byte(k), []byte(k)))
	}

	idx, err := s.Finish(ctx)
	require.NoError(t, err)
	cur, err := idx.NewCursor(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, cur.First(ctx))
	var got []string
	for cur.Key() != nil {
		got = append(got, string(cur.Key()))
		require.NoError(t, cur.Next(ctx, nil, false))
	}
	assert.Equal(t, []string{"a", "m", "z"}, got)
}

func TestDatabaseSnapshotCapturesAllIndexes(t *testing.T) {
	ctx := context.Background()
	db := New()
	idx, err := db.Open(ctx, "snap")
	require.NoError(t, err)
	_, err = idx.Insert(ctx, nil, []byte("k"), []byte("v"))
	require.NoError(t, err)

	snap, err := db.BeginSnapshot(ctx)
	require.NoError(t, err)
	assert.Greater(t, snap.Length(), int64(0))
	assert.False(t, snap.IsCompressible())
}

func TestDatabaseClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	db := New()
	require.NoError(t, db.Close(ctx))
	assert.True(t, db.IsClosed(ctx))

	_, err := db.Open(ctx, "anything")
	require.Error(t, err)
	var engErr *engine.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, wire.ErrorKindClosedDatabase, engErr.Kind)
}
