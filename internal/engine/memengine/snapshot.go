package memengine

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/wire"
)

// snapshot serializes every index's key/value pairs into a flat byte
// stream: table-name-prefixed sections, each entry length-prefixed. It
// is not compressible and its length is only known once fully
// materialized, which happens eagerly at BeginSnapshot time since the
// mem engine keeps everything resident anyway.
type snapshot struct {
	data []byte
	pos  int64
}

func newSnapshot(db *Database) *snapshot {
	e := wire.NewEncoder()
	db.mu.RLock()
	for name, idx := range db.indexes {
		idx.mu.RLock()
		e.WriteString(name)
		e.WriteUint32(uint32(len(idx.keys)))
		for _, k := range idx.keys {
			e.WriteBytes([]byte(k))
			e.WriteBytes(idx.data[k])
		}
		idx.mu.RUnlock()
	}
	db.mu.RUnlock()
	return &snapshot{data: e.Bytes()}
}

func (s *snapshot) Length() int64        { return int64(len(s.data)) }
func (s *snapshot) Position() int64      { return s.pos }
func (s *snapshot) IsCompressible() bool { return false }

func (s *snapshot) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	n, err := w.Write(s.data[s.pos:])
	s.pos += int64(n)
	return int64(n), err
}

func (s *snapshot) Close(ctx context.Context) error { return nil }
