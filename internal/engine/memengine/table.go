package memengine

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/wire"
)

// table interprets an Index's raw key/value bytes as rows shaped by a
// RowDescriptor: primary-key columns are encoded (in descriptor order)
// into the index key, the remaining columns into the index value. This
// mirrors the real engine's binary row format closely enough for
// reference purposes without needing a real column-store layout.
type table struct {
	idx        *Index
	descriptor wire.RowDescriptor
}

func newTable(idx *Index, descriptor wire.RowDescriptor) *table {
	return &table{idx: idx, descriptor: descriptor}
}

func (t *table) Descriptor() wire.RowDescriptor { return t.descriptor }

// splitRow separates a full encoded row (all columns, descriptor order,
// each length-prefixed) into its primary-key-derived index key and the
// remaining-column index value.
func (t *table) splitRow(row []byte) (key, value []byte, err error) {
	d := wire.NewDecoder(row)
	ke := wire.NewEncoder()
	ve := wire.NewEncoder()
	for _, col := range t.descriptor.Columns {
		b, derr := d.ReadBytes()
		if derr != nil {
			return nil, nil, engine.IllegalStateError("malformed row for column " + col.Name)
		}
		if col.PrimaryKey {
			ke.WriteBytes(b)
		} else {
			ve.WriteBytes(b)
		}
	}
	return ke.Bytes(), ve.Bytes(), nil
}

// joinRow reassembles a full row from its split key/value form, for
// callers that need the whole record back (Scanner.Row).
func (t *table) joinRow(key, value []byte) []byte {
	kd := wire.NewDecoder(key)
	vd := wire.NewDecoder(value)
	re := wire.NewEncoder()
	for _, col := range t.descriptor.Columns {
		var b []byte
		if col.PrimaryKey {
			b, _ = kd.ReadBytes()
		} else {
			b, _ = vd.ReadBytes()
		}
		re.WriteBytes(b)
	}
	return re.Bytes()
}

func (t *table) Load(ctx context.Context, txn engine.Transaction, row []byte) (engine.ValueResult, error) {
	key, _, err := t.splitRow(row)
	if err != nil {
		return engine.ValueResult{}, err
	}
	return t.idx.Load(ctx, txn, key)
}

func (t *table) Exists(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	key, _, err := t.splitRow(row)
	if err != nil {
		return false, err
	}
	return t.idx.Exists(ctx, txn, key)
}

func (t *table) Store(ctx context.Context, txn engine.Transaction, row []byte) error {
	key, value, err := t.splitRow(row)
	if err != nil {
		return err
	}
	_, err = t.idx.Store(ctx, txn, key, value)
	return err
}

func (t *table) Exchange(ctx context.Context, txn engine.Transaction, row []byte) (engine.ValueResult, error) {
	key, value, err := t.splitRow(row)
	if err != nil {
		return engine.ValueResult{}, err
	}
	return t.idx.Exchange(ctx, txn, key, value)
}

func (t *table) Insert(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	key, value, err := t.splitRow(row)
	if err != nil {
		return false, err
	}
	return t.idx.Insert(ctx, txn, key, value)
}

func (t *table) Replace(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	key, value, err := t.splitRow(row)
	if err != nil {
		return false, err
	}
	return t.idx.Replace(ctx, txn, key, value)
}

func (t *table) Update(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	key, value, err := t.splitRow(row)
	if err != nil {
		return false, err
	}
	return t.idx.Update(ctx, txn, key, value)
}

// Merge is treated as an upsert: the mem engine has no partial-column
// merge semantics beyond what Update already provides.
func (t *table) Merge(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.Update(ctx, txn, row)
}

func (t *table) Delete(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	key, _, err := t.splitRow(row)
	if err != nil {
		return false, err
	}
	return t.idx.Delete(ctx, txn, key)
}

// Query ignores text and always returns the trivial full-scan query: the
// mem engine has no predicate compiler.
func (t *table) Query(ctx context.Context, text string) (engine.Query, error) {
	return NewFullScanQuery(), nil
}

func (t *table) NewScanner(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (engine.Scanner, error) {
	c := newCursor(t.idx, txn)
	if err := c.First(ctx); err != nil {
		return nil, err
	}
	return &tableScanner{t: t, cursor: c}, nil
}

func (t *table) NewUpdater(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (engine.Updater, error) {
	c := newCursor(t.idx, txn)
	if err := c.First(ctx); err != nil {
		return nil, err
	}
	return &tableUpdater{tableScanner: tableScanner{t: t, cursor: c}}, nil
}

// Derive is not meaningfully implementable without a real query
// compiler; the mem engine reports it unsupported rather than fake a
// narrowed table.
func (t *table) Derive(ctx context.Context, query string, args [][]byte) (engine.Table, wire.RowDescriptor, error) {
	return nil, wire.RowDescriptor{}, engine.UnsupportedOperationError("derived tables require a query compiler")
}

func (t *table) DeleteAll(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (int64, error) {
	scanner, err := t.NewScanner(ctx, txn, query, args)
	if err != nil {
		return 0, err
	}
	defer scanner.Close(ctx)
	var count int64
	for {
		if scanner.Row() != nil {
			key, _, err := t.splitRow(scanner.Row())
			if err != nil {
				return count, err
			}
			if _, err := t.idx.Delete(ctx, txn, key); err != nil {
				return count, err
			}
			count++
		}
		more, err := scanner.Step(ctx)
		if err != nil {
			return count, err
		}
		if !more {
			break
		}
	}
	return count, nil
}

func (t *table) AnyRows(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (bool, error) {
	scanner, err := t.NewScanner(ctx, txn, query, args)
	if err != nil {
		return false, err
	}
	defer scanner.Close(ctx)
	return scanner.Row() != nil, nil
}

// fullScanQuery is the only Query the mem engine produces: an
// unfiltered, unparameterized scan over the whole table.
type fullScanQuery struct{}

func (fullScanQuery) ArgumentCount() int { return 0 }

func (fullScanQuery) Plan(ctx context.Context, forUpdater bool, args [][]byte) (wire.PlanNode, error) {
	return wire.PlanNode{Kind: wire.PlanFullScan, Detail: "full table scan"}, nil
}

// NewFullScanQuery returns the trivial unfiltered Query implementation
// used when a caller has no predicate to compile against.
func NewFullScanQuery() engine.Query { return fullScanQuery{} }

type tableScanner struct {
	t      *table
	cursor *cursor
}

func (s *tableScanner) Row() []byte {
	if s.cursor.Key() == nil {
		return nil
	}
	value, err := s.cursor.idx.Load(context.Background(), s.cursor.txn, s.cursor.Key())
	if err != nil {
		return nil
	}
	return s.t.joinRow(s.cursor.Key(), value.Data)
}

func (s *tableScanner) Step(ctx context.Context) (bool, error) {
	if err := s.cursor.Next(ctx, nil, false); err != nil {
		return false, err
	}
	return s.cursor.Key() != nil, nil
}

func (s *tableScanner) Close(ctx context.Context) error { return nil }

type tableUpdater struct {
	tableScanner
}

func (u *tableUpdater) Update(ctx context.Context, dirtyColumns []byte, dirtyValues [][]byte) ([]byte, error) {
	if u.cursor.Key() == nil {
		return nil, engine.IllegalStateError("updater not positioned")
	}
	current, err := u.cursor.idx.Load(ctx, u.cursor.txn, u.cursor.Key())
	if err != nil {
		return nil, err
	}
	row := u.t.joinRow(u.cursor.Key(), current.Data)
	row = applyDirtyColumns(u.t.descriptor, row, dirtyColumns, dirtyValues)
	if err := u.t.Store(ctx, u.cursor.txn, row); err != nil {
		return nil, err
	}
	if _, err := u.Step(ctx); err != nil {
		return nil, err
	}
	return u.Row(), nil
}

func (u *tableUpdater) Delete(ctx context.Context) ([]byte, error) {
	if u.cursor.Key() == nil {
		return nil, engine.IllegalStateError("updater not positioned")
	}
	if err := u.cursor.Delete(ctx); err != nil {
		return nil, err
	}
	if _, err := u.Step(ctx); err != nil {
		return nil, err
	}
	return u.Row(), nil
}

// applyDirtyColumns rebuilds row, replacing each column whose bit is set
// in dirtyColumns with the corresponding entry from dirtyValues.
func applyDirtyColumns(descriptor wire.RowDescriptor, row []byte, dirtyColumns []byte, dirtyValues [][]byte) []byte {
	d := wire.NewDecoder(row)
	e := wire.NewEncoder()
	dirtyIdx := 0
	for i, col := range descriptor.Columns {
		b, _ := d.ReadBytes()
		if bitSet(dirtyColumns, i) {
			b = dirtyValues[dirtyIdx]
			dirtyIdx++
		}
		_ = col
		e.WriteBytes(b)
	}
	return e.Bytes()
}

func bitSet(bitmap []byte, i int) bool {
	byteIdx, bitIdx := i/8, i%8
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<uint(bitIdx)) != 0
}
