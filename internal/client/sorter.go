package client

import (
	"context"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/wire"
)

// SorterStub is the client-side proxy for an engine.Sorter.
type SorterStub struct {
	sess *session.ClientSession
	id   int64
}

func newSorterStub(sess *session.ClientSession, id int64) *SorterStub {
	return &SorterStub{sess: sess, id: id}
}

func (s *SorterStub) handleID() int64 { return s.id }

func (s *SorterStub) Add(ctx context.Context, key, value []byte) error {
	e := wire.NewEncoder()
	e.WriteBytes(key)
	e.WriteBytes(value)
	_, err := call(ctx, s.sess, s.id, wire.SelSorterAdd, e.Bytes())
	return err
}

func (s *SorterStub) AddBatch(ctx context.Context, keys, values [][]byte) error {
	e := wire.NewEncoder()
	e.WriteUint32(uint32(len(keys)))
	for _, k := range keys {
		e.WriteBytes(k)
	}
	for _, v := range values {
		e.WriteBytes(v)
	}
	_, err := call(ctx, s.sess, s.id, wire.SelSorterAddBatch, e.Bytes())
	return err
}

func (s *SorterStub) AddAll(ctx context.Context, scanner engine.Scanner) error {
	h, ok := scanner.(handleIDer)
	if !ok {
		return engine.IllegalStateError("scanner was not produced by this session")
	}
	e := wire.NewEncoder()
	e.WriteInt64(h.handleID())
	_, err := call(ctx, s.sess, s.id, wire.SelSorterAddAll, e.Bytes())
	return err
}

func (s *SorterStub) Finish(ctx context.Context) (engine.Index, error) {
	payload, err := call(ctx, s.sess, s.id, wire.SelSorterFinish, nil)
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newIndexStub(s.sess, id), nil
}

func (s *SorterStub) FinishScan(ctx context.Context, ordering wire.Ordering) (engine.Scanner, error) {
	e := wire.NewEncoder()
	e.WriteUint8(uint8(ordering))
	payload, err := call(ctx, s.sess, s.id, wire.SelSorterFinishScan, e.Bytes())
	if err != nil {
		return nil, err
	}
	id, err := wire.NewDecoder(payload).ReadInt64()
	if err != nil {
		return nil, err
	}
	return newScannerStub(s.sess, id), nil
}

func (s *SorterStub) Progress() float64 {
	payload, err := call(context.Background(), s.sess, s.id, wire.SelSorterProgress, nil)
	if err != nil {
		return 0
	}
	bits, err := wire.NewDecoder(payload).ReadUint64()
	if err != nil {
		return 0
	}
	return float64frombits(bits)
}

func (s *SorterStub) Reset(ctx context.Context) error {
	_, err := call(ctx, s.sess, s.id, wire.SelSorterReset, nil)
	return err
}
