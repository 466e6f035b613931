package client

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// IndexStub is the client-side proxy for an engine.Index. It embeds
// ViewStub so it answers the View selector range through the same
// handle id, the same embedding internal/server/index.go's Index
// skeleton uses.
type IndexStub struct {
	ViewStub
}

func newIndexStub(sess *session.ClientSession, id int64) *IndexStub {
	return &IndexStub{ViewStub: ViewStub{sess: sess, id: id}}
}

func (x *IndexStub) ID() int64 {
	payload, err := call(context.Background(), x.sess, x.id, wire.SelIndexID, nil)
	if err != nil {
		return 0
	}
	n, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return 0
	}
	return n
}

func (x *IndexStub) Name() []byte {
	payload, err := call(context.Background(), x.sess, x.id, wire.SelIndexName, nil)
	if err != nil {
		return nil
	}
	name, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return nil
	}
	return name
}

func (x *IndexStub) NameString() string {
	return string(x.Name())
}

func (x *IndexStub) AsTable(ctx context.Context, descriptor wire.RowDescriptor) (engine.Table, error) {
	payload, err := call(ctx, x.sess, x.id, wire.SelIndexAsTable, wire.EncodeDescriptor(descriptor))
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newTableStub(x.sess, id), nil
}

// Evict sends a value-length threshold recovered by probing evictor with a
// nil key and zero-filled values (evictorThreshold), since the evictor closure itself cannot
// cross the wire (see internal/server/index.go's handlerIndexEvict): any
// entry whose value is longer than that threshold is evicted.
func (x *IndexStub) Evict(ctx context.Context, txn engine.Transaction, low, high []byte, evictor func(key, value []byte) bool) (int64, error) {
	maxValueLength := evictorThreshold(evictor)
	e := wire.NewEncoder()
	e.WriteBytes(low)
	e.WriteBytes(high)
	e.WriteInt64(maxValueLength)
	encodeTxnRef(e, txn)
	payload, err := call(ctx, x.sess, x.id, wire.SelIndexEvict, e.Bytes())
	if err != nil {
		return 0, err
	}
	return wire.NewDecoder(payload).ReadInt64()
}

// evictorThreshold probes evictor with values of increasing length to
// recover the length threshold it implements, since the server only
// understands a single int64 cutoff rather than an arbitrary predicate.
func evictorThreshold(evictor func(key, value []byte) bool) int64 {
	if evictor == nil {
		return -1
	}
	lo, hi := int64(0), int64(1<<20)
	if !evictor(nil, make([]byte, hi)) {
		return hi
	}
	for lo < hi {
		mid := lo + (hi-lo)/2
		if evictor(nil, make([]byte, mid)) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo - 1
}

func (x *IndexStub) Analyze(ctx context.Context, low, high []byte) (wire.IndexStats, error) {
	e := wire.NewEncoder()
	e.WriteBytes(low)
	e.WriteBytes(high)
	payload, err := call(ctx, x.sess, x.id, wire.SelIndexAnalyze, e.Bytes())
	if err != nil {
		return wire.IndexStats{}, err
	}
	statsBytes, err := wire.NewDecoder(payload).ReadBytes()
	if err != nil {
		return wire.IndexStats{}, err
	}
	return wire.DecodeIndexStats(statsBytes)
}

func (x *IndexStub) Verify(ctx context.Context, observer engine.Observer) (bool, error) {
	observerID, release, err := registerRemoteObserver(ctx, x.sess, observer)
	if err != nil {
		return false, err
	}
	defer release()

	e := wire.NewEncoder()
	e.WriteInt64(observerID)
	payload, err := call(ctx, x.sess, x.id, wire.SelIndexVerify, e.Bytes())
	if err != nil {
		return false, err
	}
	return wire.NewDecoder(payload).ReadBool()
}

func (x *IndexStub) Close(ctx context.Context) error {
	_, err := disposingCall(ctx, x.sess, x.id, wire.SelIndexClose, nil)
	return err
}

func (x *IndexStub) Drop(ctx context.Context) error {
	_, err := disposingCall(ctx, x.sess, x.id, wire.SelIndexDrop, nil)
	return err
}

func (x *IndexStub) IsClosed() bool {
	payload, err := call(context.Background(), x.sess, x.id, wire.SelIndexIsClosed, nil)
	if err != nil {
		return true
	}
	ok, err := wire.NewDecoder(payload).ReadBool()
	if err != nil {
		return true
	}
	return ok
}
