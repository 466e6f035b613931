package engine

import (
	"context"
	"io"

	"github.com/tupldb/remote/internal/wire"
)

// Runnable is a one-shot deferred action, used for DeleteIndexRunnable:
// deleteIndex returns a handle whose Run actually commits the deletion,
// so the caller controls when the (possibly slow) drop happens.
type Runnable interface {
	Run(ctx context.Context) error
}

// DatabaseStats mirrors wire.IndexStats at the database scope (aggregate
// size/entry counts across all indexes plus free/checkpoint bookkeeping).
type DatabaseStats struct {
	wire.IndexStats
	CheckpointCount int64
}

// LeaderNotifier receives the two edge/level-triggered leader-change
// callbacks a Database reports through UponLeader: Acquired fires
// immediately if already leader (level-triggered), Lost fires once when
// leadership is relinquished (edge-triggered, self-disposing).
type LeaderNotifier struct {
	Acquired func()
	Lost     func()
}

// Database is the root handle: origin of every other handle in a
// session.
type Database interface {
	// Open creates idx if it does not exist, or returns the existing one.
	Open(ctx context.Context, name string) (Index, error)
	// Find returns the named index, or ok=false if it does not exist.
	Find(ctx context.Context, name string) (idx Index, ok bool, err error)
	// IndexByID resolves an index by its numeric identity.
	IndexByID(ctx context.Context, id int64) (idx Index, ok bool, err error)
	// Rename changes idx's name.
	Rename(ctx context.Context, idx Index, newName string) error
	// DeleteIndex prepares idx for deletion, returning the one-shot
	// Runnable that actually performs the drop.
	DeleteIndex(ctx context.Context, idx Index) (Runnable, error)
	// NewTemporaryIndex creates an index scheduled for deletion on its
	// owning session's detach.
	NewTemporaryIndex(ctx context.Context) (Index, error)

	// RegistryByName returns the built-in view of index name -> id.
	RegistryByName(ctx context.Context) (View, error)
	// RegistryByID returns the built-in view of index id -> name.
	RegistryByID(ctx context.Context) (View, error)

	// NewTransaction starts a transaction with the given durability mode.
	NewTransaction(ctx context.Context, durability wire.DurabilityMode) (Transaction, error)
	// BogusTransaction returns the database's shared no-op sentinel
	// transaction.
	BogusTransaction() Transaction

	// CustomWriter and PrepareWriter require in-process custom handler
	// registration, which this layer does not support remotely (§9
	// Design notes: safe unregistration on disconnect is not
	// guaranteed); both always return an UnsupportedOperationError.
	CustomWriter(ctx context.Context, name string) (io.Writer, error)
	PrepareWriter(ctx context.Context, name string) (io.Writer, error)

	// NewSorter starts a bulk sort-and-ingest pipeline.
	NewSorter(ctx context.Context) (Sorter, error)

	// Preallocate reserves additional backing storage ahead of demand.
	Preallocate(ctx context.Context, bytes int64) error
	// CapacityLimit returns the configured storage capacity limit, or -1
	// if unbounded.
	CapacityLimit(ctx context.Context) (int64, error)
	// SetCapacityLimit changes the storage capacity limit.
	SetCapacityLimit(ctx context.Context, bytes int64) error

	// BeginSnapshot starts a consistent point-in-time byte snapshot.
	BeginSnapshot(ctx context.Context) (Snapshot, error)
	// CreateCachePrimer captures which data is currently cache-resident.
	CreateCachePrimer(ctx context.Context) ([]byte, error)
	// ApplyCachePrimer warms the cache from a previously captured primer.
	ApplyCachePrimer(ctx context.Context, primer []byte) error

	// Stats returns an aggregate size/entry snapshot.
	Stats(ctx context.Context) (DatabaseStats, error)
	// Flush writes dirty pages without forcing a durability sync.
	Flush(ctx context.Context) error
	// Sync forces all dirty pages to stable storage.
	Sync(ctx context.Context) error
	// Checkpoint forces a full checkpoint.
	Checkpoint(ctx context.Context) error
	// CompactFile attempts to compact the backing file to at least
	// targetRatio of its live-data size; reports whether any compaction
	// was performed.
	CompactFile(ctx context.Context, targetRatio float64) (bool, error)
	// Verify checks every index's structural integrity, reporting
	// progress through observer.
	Verify(ctx context.Context, observer Observer) (bool, error)

	// IsLeader reports whether this instance currently holds write
	// leadership (only meaningful in a replicated deployment).
	IsLeader(ctx context.Context) bool
	// UponLeader registers the leader-change notifier described above.
	UponLeader(ctx context.Context, n LeaderNotifier) error
	// Failover voluntarily relinquishes leadership.
	Failover(ctx context.Context) error

	Close(ctx context.Context) error
	CloseWithCause(ctx context.Context, cause error) error
	IsClosed(ctx context.Context) bool
	// Shutdown performs an orderly close intended to be followed by
	// process exit (flush + checkpoint + close).
	Shutdown(ctx context.Context) error
}
