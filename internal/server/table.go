package server

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/rpc"
	"github.com/tupldb/remote/internal/wire"
)

// Table is the skeleton for an engine.Table.
type Table struct {
	table engine.Table
	reg   *registry.Registry
	bogus engine.Transaction
}

func handlerTableDescriptor(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	e := wire.NewEncoder()
	e.WriteBytes(wire.EncodeDescriptor(s.table.Descriptor()))
	return e.Bytes(), nil
}

func handlerTableLoad(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	row, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed row")
	}
	v, err := s.table.Load(ctx, txn, row)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeValueResult(e, v)
	return e.Bytes(), nil
}

func handlerTableExists(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	row, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed row")
	}
	ok, err := s.table.Exists(ctx, txn, row)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerTableStore(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	row, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed row")
	}
	return nil, s.table.Store(ctx, txn, row)
}

func handlerTableExchange(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	row, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed row")
	}
	v, err := s.table.Exchange(ctx, txn, row)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	encodeValueResult(e, v)
	return e.Bytes(), nil
}

// tableBoolOp adapts one of Table's five row mutation methods that accept
// (txn, row) and return (bool, error) to the shared handler shape.
func tableBoolOp(op func(t engine.Table, ctx context.Context, txn engine.Transaction, row []byte) (bool, error)) func(context.Context, any, []byte) ([]byte, error) {
	return func(ctx context.Context, handle any, payload []byte) ([]byte, error) {
		s := handle.(*Table)
		d := wire.NewDecoder(payload)
		txn, err := decodeTxnRef(s.reg, s.bogus, d)
		if err != nil {
			return nil, err
		}
		row, err := d.ReadBytes()
		if err != nil {
			return nil, engine.IllegalStateError("malformed row")
		}
		ok, err := op(s.table, ctx, txn, row)
		if err != nil {
			return nil, err
		}
		e := wire.NewEncoder()
		e.WriteBool(ok)
		return e.Bytes(), nil
	}
}

var handlerTableInsert = tableBoolOp(func(t engine.Table, ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.Insert(ctx, txn, row)
})
var handlerTableReplace = tableBoolOp(func(t engine.Table, ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.Replace(ctx, txn, row)
})
var handlerTableUpdate = tableBoolOp(func(t engine.Table, ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.Update(ctx, txn, row)
})
var handlerTableMerge = tableBoolOp(func(t engine.Table, ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.Merge(ctx, txn, row)
})
var handlerTableDelete = tableBoolOp(func(t engine.Table, ctx context.Context, txn engine.Transaction, row []byte) (bool, error) {
	return t.Delete(ctx, txn, row)
})

func decodeQueryArgs(d *wire.Decoder) ([][]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, engine.IllegalStateError("malformed argument count")
	}
	args := make([][]byte, n)
	for i := range args {
		if args[i], err = d.ReadBytes(); err != nil {
			return nil, engine.IllegalStateError("malformed argument")
		}
	}
	return args, nil
}

func resolveQuery(reg *registry.Registry, d *wire.Decoder) (engine.Query, error) {
	id, err := d.ReadInt64()
	if err != nil {
		return nil, engine.IllegalStateError("malformed query reference")
	}
	h, err := reg.MustLookup(id)
	if err != nil {
		return nil, engine.IllegalStateError(err.Error())
	}
	skel, ok := h.Value.(*Query)
	if !ok {
		return nil, engine.IllegalStateError("handle is not a query")
	}
	return skel.query, nil
}

func handlerTableNewScanner(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	query, err := resolveQuery(s.reg, d)
	if err != nil {
		return nil, err
	}
	args, err := decodeQueryArgs(d)
	if err != nil {
		return nil, err
	}
	scanner, err := s.table.NewScanner(ctx, txn, query, args)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindScanner, &Scanner{scanner: scanner})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerTableNewUpdater(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	query, err := resolveQuery(s.reg, d)
	if err != nil {
		return nil, err
	}
	args, err := decodeQueryArgs(d)
	if err != nil {
		return nil, err
	}
	updater, err := s.table.NewUpdater(ctx, txn, query, args)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindUpdater, &Updater{Scanner: Scanner{scanner: updater}, updater: updater})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	return e.Bytes(), nil
}

func handlerTableQuery(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	text, err := d.ReadString()
	if err != nil {
		return nil, engine.IllegalStateError("malformed query text")
	}
	query, err := s.table.Query(ctx, text)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindQuery, &Query{query: query})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	e.WriteInt32(int32(query.ArgumentCount()))
	return e.Bytes(), nil
}

func handlerTableDerive(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	query, err := d.ReadString()
	if err != nil {
		return nil, engine.IllegalStateError("malformed query text")
	}
	args, err := decodeQueryArgs(d)
	if err != nil {
		return nil, err
	}
	derived, descriptor, err := s.table.Derive(ctx, query, args)
	if err != nil {
		return nil, err
	}
	h := s.reg.Register(registry.KindTable, &Table{table: derived, reg: s.reg, bogus: s.bogus})
	e := wire.NewEncoder()
	e.WriteInt64(h.ID)
	e.WriteBytes(wire.EncodeDescriptor(descriptor))
	return e.Bytes(), nil
}

func handlerTableDeleteAll(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	query, err := resolveQuery(s.reg, d)
	if err != nil {
		return nil, err
	}
	args, err := decodeQueryArgs(d)
	if err != nil {
		return nil, err
	}
	n, err := s.table.DeleteAll(ctx, txn, query, args)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteInt64(n)
	return e.Bytes(), nil
}

func handlerTableAnyRows(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Table)
	d := wire.NewDecoder(payload)
	txn, err := decodeTxnRef(s.reg, s.bogus, d)
	if err != nil {
		return nil, err
	}
	query, err := resolveQuery(s.reg, d)
	if err != nil {
		return nil, err
	}
	args, err := decodeQueryArgs(d)
	if err != nil {
		return nil, err
	}
	ok, err := s.table.AnyRows(ctx, txn, query, args)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

// RegisterTable binds the Table-kind selector range onto d.
func RegisterTable(d *rpc.Dispatcher) {
	d.Register(wire.SelTableDescriptor, handlerTableDescriptor)
	d.Register(wire.SelTableLoad, handlerTableLoad)
	d.Register(wire.SelTableExists, handlerTableExists)
	d.Register(wire.SelTableStore, handlerTableStore)
	d.Register(wire.SelTableExchange, handlerTableExchange)
	d.Register(wire.SelTableInsert, handlerTableInsert)
	d.Register(wire.SelTableReplace, handlerTableReplace)
	d.Register(wire.SelTableUpdate, handlerTableUpdate)
	d.Register(wire.SelTableMerge, handlerTableMerge)
	d.Register(wire.SelTableDelete, handlerTableDelete)
	d.Register(wire.SelTableNewScanner, handlerTableNewScanner)
	d.Register(wire.SelTableNewUpdater, handlerTableNewUpdater)
	d.Register(wire.SelTableDerive, handlerTableDerive)
	d.Register(wire.SelTableDeleteAll, handlerTableDeleteAll)
	d.Register(wire.SelTableAnyRows, handlerTableAnyRows)
	d.Register(wire.SelTableQuery, handlerTableQuery)
}

// Query is the skeleton for an engine.Query.
type Query struct {
	query engine.Query
}

func handlerQueryArgumentCount(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Query)
	e := wire.NewEncoder()
	e.WriteInt32(int32(s.query.ArgumentCount()))
	return e.Bytes(), nil
}

func handlerQueryPlan(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Query)
	d := wire.NewDecoder(payload)
	forUpdater, err := d.ReadBool()
	if err != nil {
		return nil, engine.IllegalStateError("malformed updater flag")
	}
	args, err := decodeQueryArgs(d)
	if err != nil {
		return nil, err
	}
	plan, err := s.query.Plan(ctx, forUpdater, args)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(wire.EncodePlan(plan))
	return e.Bytes(), nil
}

// RegisterQuery binds the Query-kind selector range onto d.
func RegisterQuery(d *rpc.Dispatcher) {
	d.Register(wire.SelQueryArgumentCount, handlerQueryArgumentCount)
	d.Register(wire.SelQueryPlan, handlerQueryPlan)
}

// Scanner is the skeleton for an engine.Scanner.
type Scanner struct {
	scanner engine.Scanner
}

// asScanner resolves the Scanner skeleton behind handle, which is either a
// *Scanner or an *Updater embedding one.
func asScanner(handle any) *Scanner {
	if u, ok := handle.(*Updater); ok {
		return &u.Scanner
	}
	return handle.(*Scanner)
}

func handlerScannerRow(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := asScanner(handle)
	e := wire.NewEncoder()
	e.WriteBytes(s.scanner.Row())
	return e.Bytes(), nil
}

func handlerScannerStep(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := asScanner(handle)
	ok, err := s.scanner.Step(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBool(ok)
	return e.Bytes(), nil
}

func handlerScannerClose(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	return nil, asScanner(handle).scanner.Close(ctx)
}

// RegisterScanner binds the Scanner-kind selector range onto d. Updater
// handles answer the same selectors through their embedded Scanner.
func RegisterScanner(d *rpc.Dispatcher) {
	d.Register(wire.SelScannerRow, handlerScannerRow)
	d.Register(wire.SelScannerStep, handlerScannerStep)
	d.Register(wire.SelScannerClose, handlerScannerClose)
}

// Updater is the skeleton for an engine.Updater: a Scanner plus in-place
// row mutation.
type Updater struct {
	Scanner
	updater engine.Updater
}

func handlerUpdaterUpdate(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Updater)
	d := wire.NewDecoder(payload)
	dirtyColumns, err := d.ReadBytes()
	if err != nil {
		return nil, engine.IllegalStateError("malformed dirty column bitmap")
	}
	n, err := d.ReadUint32()
	if err != nil {
		return nil, engine.IllegalStateError("malformed dirty value count")
	}
	dirtyValues := make([][]byte, n)
	for i := range dirtyValues {
		if dirtyValues[i], err = d.ReadBytes(); err != nil {
			return nil, engine.IllegalStateError("malformed dirty value")
		}
	}
	row, err := s.updater.Update(ctx, dirtyColumns, dirtyValues)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(row)
	return e.Bytes(), nil
}

func handlerUpdaterDelete(ctx context.Context, handle any, payload []byte) ([]byte, error) {
	s := handle.(*Updater)
	row, err := s.updater.Delete(ctx)
	if err != nil {
		return nil, err
	}
	e := wire.NewEncoder()
	e.WriteBytes(row)
	return e.Bytes(), nil
}

// RegisterUpdater binds the Updater-kind selector range onto d.
func RegisterUpdater(d *rpc.Dispatcher) {
	d.Register(wire.SelUpdaterUpdate, handlerUpdaterUpdate)
	d.Register(wire.SelUpdaterDelete, handlerUpdaterDelete)
}
