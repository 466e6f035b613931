package client

import (
	"context"
	"sync"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// TableStub is the client-side proxy for an engine.Table. It keeps a
// small cache of compiled QueryStubs keyed by query text, the same
// compiled-proxy-per-descriptor idea the table/query protocol describes:
// a query string is compiled once and its handle reused across scans.
type TableStub struct {
	sess       *session.ClientSession
	id         int64
	descriptor wire.RowDescriptor

	mu      sync.Mutex
	queries map[string]*QueryStub
}

func newTableStub(sess *session.ClientSession, id int64) *TableStub {
	return &TableStub{sess: sess, id: id, queries: make(map[string]*QueryStub)}
}

func (t *TableStub) handleID() int64 { return t.id }

func (t *TableStub) Descriptor() wire.RowDescriptor {
	if t.descriptor.Columns != nil {
		return t.descriptor
	}
	payload, err := call(context.Background(), t.sess, t.id, wire.SelTableDescriptor, nil)
	if err != nil {
		return wire.RowDescriptor{}
	}
	raw, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return wire.RowDescriptor{}
	}
	d, err := wire.DecodeDescriptor(raw)
	if err != nil {
		return wire.RowDescriptor{}
	}
	t.descriptor = d
	return d
}

func (t *TableStub) Load(ctx context.Context, txn engine.Transaction, row []byte) (engine.ValueResult, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(row)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableLoad, e.Bytes())
	if err != nil {
		return engine.ValueResult{}, err
	}
	return decodeValueResult(wire.NewDecoder(payload))
}

func (t *TableStub) Exists(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(row)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableExists, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (t *TableStub) Store(ctx context.Context, txn engine.Transaction, row []byte) error {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(row)
	_, err := call(ctx, t.sess, t.id, wire.SelTableStore, e.Bytes())
	return err
}

func (t *TableStub) Exchange(ctx context.Context, txn engine.Transaction, row []byte) (engine.ValueResult, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(row)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableExchange, e.Bytes())
	if err != nil {
		return engine.ValueResult{}, err
	}
	return decodeValueResult(wire.NewDecoder(payload))
}

func (t *TableStub) tableBoolOp(ctx context.Context, selector uint32, txn engine.Transaction, row []byte) (bool, error) {
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteBytes(row)
	payload, err := call(ctx, t.sess, t.id, selector, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (t *TableStub) Insert(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.tableBoolOp(ctx, wire.SelTableInsert, txn, row)
}

func (t *TableStub) Replace(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.tableBoolOp(ctx, wire.SelTableReplace, txn, row)
}

func (t *TableStub) Update(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.tableBoolOp(ctx, wire.SelTableUpdate, txn, row)
}

func (t *TableStub) Merge(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.tableBoolOp(ctx, wire.SelTableMerge, txn, row)
}

func (t *TableStub) Delete(ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.tableBoolOp(ctx, wire.SelTableDelete, txn, row)
}

// query compiles text once per TableStub and caches the resulting handle,
// since every call site that needs a Query (NewScanner, NewUpdater,
// DeleteAll, AnyRows) otherwise recompiles identical text.
func (t *TableStub) query(ctx context.Context, text string) (*QueryStub, error) {
	t.mu.Lock()
	if q, ok := t.queries[text]; ok {
		t.mu.Unlock()
		return q, nil
	}
	t.mu.Unlock()

	e := wire.NewEncoder()
	e.WriteString(text)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableQuery, e.Bytes())
	if err != nil {
		return nil, err
	}
	d := wire.NewDecoder(payload)
	id, err := d.ReadInt64()
	if err != nil {
		return nil, err
	}
	argCount, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	q := &QueryStub{sess: t.sess, id: id, argumentCount: int(argCount)}

	t.mu.Lock()
	if existing, ok := t.queries[text]; ok {
		q = existing
	} else {
		t.queries[text] = q
	}
	t.mu.Unlock()
	return q, nil
}

func (t *TableStub) resolveQuery(query engine.Query) (*QueryStub, error) {
	q, ok := query.(*QueryStub)
	if !ok {
		return nil, engine.IllegalStateError("query was not produced by this table")
	}
	return q, nil
}

func (t *TableStub) NewScanner(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (engine.Scanner, error) {
	q, err := t.resolveQuery(query)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteInt64(q.id)
	encodeQueryArgs(e, args)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableNewScanner, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newScannerStub(t.sess, id), nil
}

func (t *TableStub) NewUpdater(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (engine.Updater, error) {
	q, err := t.resolveQuery(query)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteInt64(q.id)
	encodeQueryArgs(e, args)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableNewUpdater, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newUpdaterStub(t.sess, id), nil
}

func (t *TableStub) Derive(ctx context.Context, query string, args [][]byte) (engine.Table, wire.RowDescriptor, error) {
	e := wire.NewEncoder()
	e.WriteString(query)
	encodeQueryArgs(e, args)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableDerive, e.Bytes())
	if err != nil {
		return nil, wire.RowDescriptor{}, err
	}
	d := wire.NewDecoder(payload)
	id, err := d.ReadInt64()
	if err != nil {
		return nil, wire.RowDescriptor{}, err
	}
	descBytes, err := d.ReadBytes()
	if err != nil {
		return nil, wire.RowDescriptor{}, err
	}
	descriptor, err := wire.DecodeDescriptor(descBytes)
	if err != nil {
		return nil, wire.RowDescriptor{}, err
	}
	derived := newTableStub(t.sess, id)
	derived.descriptor = descriptor
	return derived, descriptor, nil
}

func (t *TableStub) DeleteAll(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (int64, error) {
	q, err := t.resolveQuery(query)
	if err != nil {
		return 0, err
	}
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteInt64(q.id)
	encodeQueryArgs(e, args)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableDeleteAll, e.Bytes())
	if err != nil {
		return 0, err
	}
	return wire.NewDecoder(payload).ReadInt64()
}

func (t *TableStub) AnyRows(ctx context.Context, txn engine.Transaction, query engine.Query, args [][]byte) (bool, error) {
	q, err := t.resolveQuery(query)
	if err != nil {
		return false, err
	}
	e := wire.NewEncoder()
	encodeTxnRef(e, txn)
	e.WriteInt64(q.id)
	encodeQueryArgs(e, args)
	payload, err := call(ctx, t.sess, t.id, wire.SelTableAnyRows, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

// Query compiles text against this table, the client-facing equivalent
// of TableStub.query but exported for callers that want a Query handle
// directly (e.g. to inspect ArgumentCount/Plan before scanning).
func (t *TableStub) Query(ctx context.Context, text string) (engine.Query, error) {
	return t.query(ctx, text)
}

// QueryStub is the client-side proxy for an engine.Query.
type QueryStub struct {
	sess          *session.ClientSession
	id            int64
	argumentCount int
}

func (q *QueryStub) handleID() int64 { return q.id }

func (q *QueryStub) ArgumentCount() int { return q.argumentCount }

func (q *QueryStub) Plan(ctx context.Context, forUpdater bool, args [][]byte) (wire.PlanNode, error) {
	e := wire.NewEncoder()
	e.WriteBool(forUpdater)
	encodeQueryArgs(e, args)
	payload, err := call(ctx, q.sess, q.id, wire.SelQueryPlan, e.Bytes())
	if err != nil {
		return wire.PlanNode{}, err
	}
	planBytes, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return wire.PlanNode{}, err
	}
	return wire.DecodePlan(planBytes)
}

// ScannerStub is the client-side proxy for an engine.Scanner.
type ScannerStub struct {
	sess *session.ClientSession
	id   int64
	row  []byte
}

func newScannerStub(sess *session.ClientSession, id int64) *ScannerStub {
	s := &ScannerStub{sess: sess, id: id}
	s.refreshRow(context.Background())
	return s
}

func (s *ScannerStub) handleID() int64 { return s.id }

func (s *ScannerStub) refreshRow(ctx context.Context) {
	payload, err := call(ctx, s.sess, s.id, wire.SelScannerRow, nil)
	if err != nil {
		return
	}
	if row, err := wire.NewDecoder(payload).ReadBytes(); err == nil {
		s.row = row
	}
}

func (s *ScannerStub) Row() []byte { return s.row }

func (s *ScannerStub) Step(ctx context.Context) (bool, error) {
	payload, err := call(ctx, s.sess, s.id, wire.SelScannerStep, nil)
	if err != nil {
		return false, err
	}
	more, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return false, err
	}
	s.refreshRow(ctx)
	return more, nil
}

func (s *ScannerStub) Close(ctx context.Context) error {
	_, err := disposingCall(ctx, s.sess, s.id, wire.SelScannerClose, nil)
	return err
}

// UpdaterStub is the client-side proxy for an engine.Updater, embedding
// ScannerStub the same way internal/server/table.go's Updater skeleton
// embeds its Scanner.
type UpdaterStub struct {
	ScannerStub
}

func newUpdaterStub(sess *session.ClientSession, id int64) *UpdaterStub {
	return &UpdaterStub{ScannerStub: *newScannerStub(sess, id)}
}

func encodeDirtyValues(e *wire.Encoder, dirtyValues [][]byte) {
	e.WriteUint32(uint32(len(dirtyValues)))
	for _, v := range dirtyValues {
		e.WriteBytes(v)
	}
}

func (u *UpdaterStub) Update(ctx context.Context, dirtyColumns []byte, dirtyValues [][]byte) ([]byte, error) {
	e := wire.NewEncoder()
	e.WriteBytes(dirtyColumns)
	encodeDirtyValues(e, dirtyValues)
	payload, err := call(ctx, u.sess, u.id, wire.SelUpdaterUpdate, e.Bytes())
	if err != nil {
		return nil, err
	}
	row, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil, err
	}
	u.row = row
	return row, nil
}

func (u *UpdaterStub) Delete(ctx context.Context) ([]byte, error) {
	payload, err := call(ctx, u.sess, u.id, wire.SelUpdaterDelete, nil)
	if err != nil {
		return nil, err
	}
	row, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil, err
	}
	u.row = row
	return row, nil
}
