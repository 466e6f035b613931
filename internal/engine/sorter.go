package engine

import (
	"context"

	"github.com/tupldb/remote/internal/wire"
)

// Sorter is a bulk ingest-then-drain pipeline: entries are added
// (possibly out of order and from multiple batches), then Finish
// produces a sorted Index, or FinishScan drains the sorted entries back
// to the caller without materializing an index at all.
type Sorter interface {
	Add(ctx context.Context, key, value []byte) error
	// AddBatch ingests a matched pair of key/value slices in one call,
	// mirroring the wire form's "n followed by 2n byte arrays" framing.
	AddBatch(ctx context.Context, keys, values [][]byte) error
	// AddAll drains scanner entirely into the sorter.
	AddAll(ctx context.Context, scanner Scanner) error

	// Finish produces a new index (internally a temporary index that is
	// scheduled for deletion if its owning session detaches before the
	// caller takes ownership of it).
	Finish(ctx context.Context) (Index, error)
	// FinishScan drains the sorted entries directly, without creating an
	// index at all.
	FinishScan(ctx context.Context, ordering wire.Ordering) (Scanner, error)

	// Progress reports ingest progress in [0, 1], best-effort.
	Progress() float64
	Reset(ctx context.Context) error
}
