package engine

import "context"

// Observer receives progress callbacks during compaction and
// verification. Each method returns false to request early termination
// of the operation; the engine honors that on a best-effort basis
// between nodes.
type Observer interface {
	// IndexNodeVisited is called as each node is about to be examined.
	IndexNodeVisited(ctx context.Context, id int64, level int32) bool
	// IndexNodePassed is called once a node's checks succeed.
	IndexNodePassed(ctx context.Context, id int64, level int32, entryCount, freeBytes int64) bool
	// IndexNodeFailed is called when a node fails verification, with a
	// description of what was wrong.
	IndexNodeFailed(ctx context.Context, id int64, level int32, message string) bool
}

// ObserverFlags packs which callbacks a client-supplied observer actually
// overrides, so the server only streams the events the client cares
// about (§4.8): bit 0 means "node visited" is overridden, bit 1 means
// "node passed"/"node failed" are.
type ObserverFlags uint8

const (
	ObserverFlagVisited ObserverFlags = 1 << iota
	ObserverFlagPassedOrFailed
)
