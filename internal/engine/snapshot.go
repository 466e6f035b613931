package engine

import (
	"context"
	"io"
)

// Snapshot is a consistent point-in-time byte-level copy of the database,
// exposed as a map of versioned metadata plus a server-side object whose
// bytes are pulled over a streaming pipe by WriteTo.
type Snapshot interface {
	Length() int64
	Position() int64
	IsCompressible() bool

	// WriteTo streams the snapshot's bytes to w, returning the number of
	// bytes written.
	WriteTo(ctx context.Context, w io.Writer) (int64, error)
	Close(ctx context.Context) error
}
