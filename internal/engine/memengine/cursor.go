package memengine

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// cursor is a position within Index.keys, re-resolved by value on every
// navigation call since the mem engine keeps no persistent node
// pointers. A position past the end or before the start is represented
// by key == nil, matching the exhausted-cursor convention described for
// the real engine's cursor.
type cursor struct {
	idx      *Index
	txn      engine.Transaction
	key      []byte
	autoload bool
}

func newCursor(idx *Index, txn engine.Transaction) *cursor {
	return &cursor{idx: idx, txn: txn, autoload: true}
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

func (c *cursor) Autoload() bool         { return c.autoload }
func (c *cursor) SetAutoload(auto bool)  { c.autoload = auto }

func (c *cursor) CompareKeyTo(ctx context.Context, key []byte) (int, error) {
	return bytes.Compare(c.key, key), nil
}

func (c *cursor) First(ctx context.Context) error {
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()
	if len(c.idx.keys) == 0 {
		c.key = nil
		return nil
	}
	c.key = []byte(c.idx.keys[0])
	return nil
}

func (c *cursor) Last(ctx context.Context) error {
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()
	if len(c.idx.keys) == 0 {
		c.key = nil
		return nil
	}
	c.key = []byte(c.idx.keys[len(c.idx.keys)-1])
	return nil
}

func (c *cursor) Skip(ctx context.Context, amount int64, limitKey []byte, inclusive bool) error {
	if amount == 0 {
		return nil
	}
	if amount > 0 {
		for i := int64(0); i < amount; i++ {
			if err := c.Next(ctx, limitKey, inclusive); err != nil {
				return err
			}
			if c.key == nil {
				return nil
			}
		}
		return nil
	}
	for i := int64(0); i > amount; i-- {
		if err := c.Prev(ctx, limitKey, inclusive); err != nil {
			return err
		}
		if c.key == nil {
			return nil
		}
	}
	return nil
}

func (c *cursor) Next(ctx context.Context, limitKey []byte, inclusive bool) error {
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()
	if c.key == nil {
		c.key = nil
		return nil
	}
	i := sort.SearchStrings(c.idx.keys, string(c.key))
	i++
	if i >= len(c.idx.keys) {
		c.key = nil
		return nil
	}
	next := c.idx.keys[i]
	if limitKey != nil && !withinLimit(next, limitKey, inclusive, true) {
		c.key = nil
		return nil
	}
	c.key = []byte(next)
	return nil
}

func (c *cursor) Prev(ctx context.Context, limitKey []byte, inclusive bool) error {
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()
	if c.key == nil {
		c.key = nil
		return nil
	}
	i := sort.SearchStrings(c.idx.keys, string(c.key))
	i--
	if i < 0 {
		c.key = nil
		return nil
	}
	prev := c.idx.keys[i]
	if limitKey != nil && !withinLimit(prev, limitKey, inclusive, false) {
		c.key = nil
		return nil
	}
	c.key = []byte(prev)
	return nil
}

// withinLimit reports whether candidate is still on the permitted side of
// limit for a forward (ascending=true) or backward scan.
func withinLimit(candidate string, limit []byte, inclusive, ascending bool) bool {
	cmp := bytes.Compare([]byte(candidate), limit)
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
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()
	keys := c.idx.keys
	i := sort.SearchStrings(keys, string(key))
	switch mode {
	case engine.FindExact:
		if i < len(keys) && keys[i] == string(key) {
			c.key = []byte(keys[i])
		} else {
			c.key = nil
		}
	case engine.FindGreaterOrEqual:
		if i < len(keys) {
			c.key = []byte(keys[i])
		} else {
			c.key = nil
		}
	case engine.FindGreaterThan:
		if i < len(keys) && keys[i] == string(key) {
			i++
		}
		if i < len(keys) {
			c.key = []byte(keys[i])
		} else {
			c.key = nil
		}
	case engine.FindLessOrEqual:
		if i < len(keys) && keys[i] == string(key) {
			c.key = []byte(keys[i])
		} else if i > 0 {
			c.key = []byte(keys[i-1])
		} else {
			c.key = nil
		}
	case engine.FindLessThan:
		if i > 0 {
			c.key = []byte(keys[i-1])
		} else {
			c.key = nil
		}
	case engine.FindNearby:
		if i < len(keys) {
			c.key = []byte(keys[i])
		} else {
			c.key = nil
		}
	}
	return nil
}

func (c *cursor) Random(ctx context.Context, low, high []byte) error {
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()
	lo, hi := c.idx.boundsLocked(low, high)
	if hi <= lo {
		c.key = nil
		return nil
	}
	c.key = []byte(c.idx.keys[lo])
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

func (c *cursor) Load(ctx context.Context) error {
	return nil
}

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
	dup := *c
	return &dup
}

func (c *cursor) Reset() { c.key = nil }

func (c *cursor) Register(ctx context.Context) error   { return nil }
func (c *cursor) Unregister(ctx context.Context) error { return nil }

func (c *cursor) ValueLength(ctx context.Context) (int64, error) {
	if c.key == nil {
		return 0, nil
	}
	a := &accessor{idx: c.idx, key: c.key}
	return a.ValueLength(ctx)
}

func (c *cursor) SetValueLength(ctx context.Context, length int64) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	a := &accessor{idx: c.idx, key: c.key}
	return a.SetValueLength(ctx, length)
}

func (c *cursor) ValueRead(ctx context.Context, pos int64, buf []byte) (int, error) {
	if c.key == nil {
		return 0, nil
	}
	a := &accessor{idx: c.idx, key: c.key}
	return a.ValueRead(ctx, pos, buf)
}

func (c *cursor) ValueWrite(ctx context.Context, pos int64, data []byte) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	a := &accessor{idx: c.idx, key: c.key}
	return a.ValueWrite(ctx, pos, data)
}

func (c *cursor) ValueClear(ctx context.Context, pos, length int64) error {
	if c.key == nil {
		return engine.IllegalStateError("cursor not positioned")
	}
	a := &accessor{idx: c.idx, key: c.key}
	return a.ValueClear(ctx, pos, length)
}

func (c *cursor) NewValueInputStream(ctx context.Context, bufferSize int) (io.ReadCloser, error) {
	if c.key == nil {
		return nil, engine.IllegalStateError("cursor not positioned")
	}
	return &valueInputStream{ctx: ctx, a: &accessor{idx: c.idx, key: append([]byte(nil), c.key...)}}, nil
}

func (c *cursor) NewValueOutputStream(ctx context.Context, bufferSize int) (io.WriteCloser, error) {
	if c.key == nil {
		return nil, engine.IllegalStateError("cursor not positioned")
	}
	return &valueOutputStream{ctx: ctx, a: &accessor{idx: c.idx, key: append([]byte(nil), c.key...)}}, nil
}

// valueInputStream adapts ValueAccessor.ValueRead to io.Reader, tracking
// position across Read calls the way the wire layer's chunked value
// stream framing expects (§4.6).
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
