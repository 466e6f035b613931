package badgerengine

import (
	"bytes"
	"context"
	"io"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// cursor holds its own long-lived read transaction for navigation
// (First/Last/Next/Prev/Find all re-seek a fresh iterator against it),
// separate from the Transaction a mutating Store/Delete call runs
// against. This mirrors badger's own guidance that iterators are cheap
// to create and should be scoped tightly, rather than keeping one
// iterator positioned indefinitely.
type cursor struct {
	idx      *Index
	txn      engine.Transaction
	mu       sync.Mutex
	readTxn  *badger.Txn
	key      []byte
	autoload bool
}

func newCursor(idx *Index, txn engine.Transaction) *cursor {
	return &cursor{idx: idx, txn: txn, readTxn: idx.db.db.NewTransaction(false), autoload: true}
}

func (c *cursor) Ordering() wire.Ordering { return c.idx.Ordering() }

func (c *cursor) Link(ctx context.Context, txn engine.Transaction) (engine.Transaction, error) {
	prev := c.txn
	c.txn = txn
	return prev, nil
}

func (c *cursor) Key() []byte { return c.key }

func (c *cursor) Value(ctx context.Context) (engine.ValueResult, error) {
	if c.key == nil {
		return engine.ValueResult{Loaded: true, Data: nil}, nil
	}
	if !c.autoload {
		return engine.ValueResult{Loaded: false}, nil
	}
	return c.idx.Load(ctx, c.txn, c.key)
}

func (c *cursor) Autoload() bool        { return c.autoload }
func (c *cursor) SetAutoload(auto bool) { c.autoload = auto }

func (c *cursor) CompareKeyTo(ctx context.Context, key []byte) (int, error) {
	return bytes.Compare(c.key, key), nil
}

func (c *cursor) seek(prefix []byte, seekKey []byte, reverse bool) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = reverse
	opts.PrefetchValues = false
	it := c.readTxn.NewIterator(opts)
	defer it.Close()
	if seekKey != nil {
		it.Seek(seekKey)
	} else {
		it.Rewind()
	}
	if !it.ValidForPrefix(prefix) {
		return nil
	}
	return userKeyFromDataKey(c.idx.id, it.Item().KeyCopy(nil))
}

func (c *cursor) First(ctx context.Context) error {
	c.key = c.seek(indexDataPrefix(c.idx.id), nil, false)
	return nil
}

func (c *cursor) Last(ctx context.Context) error {
	c.key = c.seek(indexDataPrefix(c.idx.id), nil, true)
	return nil
}

func (c *cursor) Skip(ctx context.Context, amount int64, limitKey []byte, inclusive bool) error {
	if amount == 0 {
		return nil
	}
	if amount > 0 {
		for i := int64(0); i < amount && c.key != nil; i++ {
			if err := c.Next(ctx, limitKey, inclusive); err != nil {
				return err
			}
		}
		return nil
	}
	for i := int64(0); i > amount && c.key != nil; i-- {
		if err := c.Prev(ctx, limitKey, inclusive); err != nil {
			return err
		}
	}
	return nil
}

func (c *cursor) Next(ctx context.Context, limitKey []byte, inclusive bool) error {
	if c.key == nil {
		return nil
	}
	prefix := indexDataPrefix(c.idx.id)
	next := c.seek(prefix, nextGreater(indexDataKey(c.idx.id, c.key)), false)
	if next != nil && limitKey != nil && !withinLimit(next, limitKey, inclusive, true) {
		next = nil
	}
	c.key = next
	return nil
}

func (c *cursor) Prev(ctx context.Context, limitKey []byte, inclusive bool) error {
	if c.key == nil {
		return nil
	}
	prefix := indexDataPrefix(c.idx.id)
	prev := c.reverseSeekBefore(prefix, indexDataKey(c.idx.id, c.key))
	if prev != nil && limitKey != nil && !withinLimit(prev, limitKey, inclusive, false) {
		prev = nil
	}
	c.key = prev
	return nil
}

// reverseSeekBefore returns the greatest user key strictly less than
// the given full data key, using a reverse iterator seeked just before
// it (badger's reverse Seek semantics find the first key <= seekKey, so
// seeking to dataKey itself would return it again).
func (c *cursor) reverseSeekBefore(prefix, dataKey []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	opts.PrefetchValues = false
	it := c.readTxn.NewIterator(opts)
	defer it.Close()
	it.Seek(dataKey)
	for it.ValidForPrefix(prefix) {
		k := it.Item().KeyCopy(nil)
		if bytes.Compare(k, dataKey) < 0 {
			return userKeyFromDataKey(c.idx.id, k)
		}
		it.Next()
	}
	return nil
}

func nextGreater(key []byte) []byte {
	return append(append([]byte(nil), key...), 0)
}

func withinLimit(candidate, limit []byte, inclusive, ascending bool) bool {
	cmp := bytes.Compare(candidate, limit)
	if ascending {
		if inclusive {
			return cmp <= 0
		}
		return cmp < 0
	}
	if inclusive {
		return cmp >= 0
	}
	return cmp > 0
}

func (c *cursor) Find(ctx context.Context, key []byte, mode engine.FindMode) error {
	prefix := indexDataPrefix(c.idx.id)
	dataKey := indexDataKey(c.idx.id, key)
	switch mode {
	case engine.FindExact:
		ok, err := c.idx.Exists(ctx, c.txn, key)
		if err != nil {
			return err
		}
		if ok {
			c.key = append([]byte(nil), key...)
		} else {
			c.key = nil
		}
	case engine.FindGreaterOrEqual:
		c.key = c.seek(prefix, dataKey, false)
	case engine.FindGreaterThan:
		c.key = c.seek(prefix, nextGreater(dataKey), false)
	case engine.FindLessOrEqual:
		c.key = c.reverseSeekAtOrBefore(prefix, dataKey)
	case engine.FindLessThan:
		c.key = c.reverseSeekBefore(prefix, dataKey)
	case engine.FindNearby:
		c.key = c.seek(prefix, dataKey, false)
	}
	return nil
}

func (c *cursor) reverseSeekAtOrBefore(prefix, dataKey []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	opts.PrefetchValues = false
	it := c.readTxn.NewIterator(opts)
	defer it.Close()
	it.Seek(dataKey)
	if !it.ValidForPrefix(prefix) {
		return nil
	}
	return userKeyFromDataKey(c.idx.id, it.Item().KeyCopy(nil))
}

func (c *cursor) Random(ctx context.Context, low, high []byte) error {
	prefix := indexDataPrefix(c.idx.id)
	start := prefix
	if low != nil {
		start = indexDataKey(c.idx.id, low)
	}
	c.key = c.seek(prefix, start, false)
	if c.key != nil && high != nil && bytes.Compare(c.key, high) >= 0 {
		c.key = nil
	}
	return nil
}

func (c *cursor) Exists(ctx context.Context) (bool, error) {
	if c.key == nil {
		return false, nil
	}
	return c.idx.Exists(ctx, c.txn, c.key)
}

func (c *cursor) Lock(ctx context.Context) (wire.LockResult, error) {
	if c.key == nil {
		return wire.LockResultIllegal, nil
	}
	return c.idx.LockExclusive(ctx, c.txn, c.key)
}

func (c *cursor) Load(ctx context.Context) error { return nil }

func (c *cursor) Store(ctx context.Context, value []byte) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	_, err := c.idx.Store(ctx, c.txn, c.key, value)
	return err
}

func (c *cursor) Delete(ctx context.Context) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	_, err := c.idx.Delete(ctx, c.txn, c.key)
	return err
}

func (c *cursor) Commit(ctx context.Context, value []byte) error {
	if err := c.Store(ctx, value); err != nil {
		return err
	}
	if c.txn != nil {
		return c.txn.Commit(ctx)
	}
	return nil
}

func (c *cursor) Copy() engine.Cursor {
	dup := &cursor{idx: c.idx, txn: c.txn, readTxn: c.idx.db.db.NewTransaction(false), key: c.key, autoload: c.autoload}
	return dup
}

func (c *cursor) Reset() {
	c.key = nil
	c.mu.Lock()
	c.readTxn.Discard()
	c.readTxn = c.idx.db.db.NewTransaction(false)
	c.mu.Unlock()
}

func (c *cursor) Register(ctx context.Context) error   { return nil }
func (c *cursor) Unregister(ctx context.Context) error { return nil }

func (c *cursor) ValueLength(ctx context.Context) (int64, error) {
	if c.key == nil {
		return 0, nil
	}
	return (&accessor{idx: c.idx, txn: c.txn, key: c.key}).ValueLength(ctx)
}

func (c *cursor) SetValueLength(ctx context.Context, length int64) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	return (&accessor{idx: c.idx, txn: c.txn, key: c.key}).SetValueLength(ctx, length)
}

func (c *cursor) ValueRead(ctx context.Context, pos int64, buf []byte) (int, error) {
	if c.key == nil {
		return 0, nil
	}
	return (&accessor{idx: c.idx, txn: c.txn, key: c.key}).ValueRead(ctx, pos, buf)
}

func (c *cursor) ValueWrite(ctx context.Context, pos int64, data []byte) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	return (&accessor{idx: c.idx, txn: c.txn, key: c.key}).ValueWrite(ctx, pos, data)
}

func (c *cursor) ValueClear(ctx context.Context, pos, length int64) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	return (&accessor{idx: c.idx, txn: c.txn, key: c.key}).ValueClear(ctx, pos, length)
}

func (c *cursor) NewValueInputStream(ctx context.Context, bufferSize int) (io.ReadCloser, error) {
	if c.key == nil {
		return nil, engine.IllegalStateError("cursor not positioned")
	}
	return &valueInputStream{ctx: ctx, a: &accessor{idx: c.idx, txn: c.txn, key: append([]byte(nil), c.key...)}}, nil
}

func (c *cursor) NewValueOutputStream(ctx context.Context, bufferSize int) (io.WriteCloser, error) {
	if c.key == nil {
		return nil, engine.IllegalStateError("cursor not positioned")
	}
	return &valueOutputStream{ctx: ctx, a: &accessor{idx: c.idx, txn: c.txn, key: append([]byte(nil), c.key...)}}, nil
}

type valueInputStream struct {
	ctx context.Context
	a   *accessor
	pos int64
}

func (s *valueInputStream) Read(p []byte) (int, error) {
	n, err := s.a.ValueRead(s.ctx, s.pos, p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	s.pos += int64(n)
	return n, nil
}

func (s *valueInputStream) Close() error { return nil }

type valueOutputStream struct {
	ctx context.Context
	a   *accessor
	pos int64
}

func (s *valueOutputStream) Write(p []byte) (int, error) {
	if err := s.a.ValueWrite(s.ctx, s.pos, p); err != nil {
		return 0, err
	}
	s.pos += int64(len(p))
	return len(p), nil
}

func (s *valueOutputStream) Close() error { return nil }
