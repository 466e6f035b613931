package transport

import (
	"context"
	"sync"

	"github.com/tupldb/remote/internal/metrics"
	"github.com/tupldb/remote/internal/telemetry"
)

// PipePool reuses Pipe structs (and their channel buffers) across many
// short-lived bulk transfers, the way the teacher's cache package reuses
// buffers across read/write cycles instead of allocating one per call. A
// recycled pipe is handed a fresh identity and put back into service
// immediately; a pipe that errored or stalled is discarded instead.
type PipePool struct {
	mu      sync.Mutex
	conn    *Conn
	free    []*Pipe
	maxFree int
	nextID  uint64
	metrics *metrics.Metrics
}

// NewPipePool creates a pool bound to conn, retaining at most maxFree idle
// pipes before letting the garbage collector reclaim the rest.
func NewPipePool(conn *Conn, maxFree int) *PipePool {
	if maxFree <= 0 {
		maxFree = 32
	}
	return &PipePool{conn: conn, maxFree: maxFree}
}

// SetMetrics attaches the collector Acquire/Release report pipe
// lifecycle counts through. nil (the default) disables instrumentation.
func (pp *PipePool) SetMetrics(m *metrics.Metrics) {
	pp.metrics = m
}

// Acquire returns a pipe ready for use: either a recycled one re-armed
// with a fresh identity, or a freshly allocated one.
func (pp *PipePool) Acquire(ctx context.Context) *Pipe {
	_, span := telemetry.StartSpan(ctx, "transport.pipe_acquire")
	defer span.End()

	pp.metrics.PipeAcquired()

	pp.mu.Lock()
	if n := len(pp.free); n > 0 {
		p := pp.free[n-1]
		pp.free = pp.free[:n-1]
		pp.mu.Unlock()

		pp.conn.reindexPipe(p, pp.nextPipeID())
		p.state.Store(int32(PipeAcquired))
		p.incoming = make(chan []byte, 8)
		p.once = sync.Once{}
		return p
	}
	id := pp.nextPipeID()
	pp.mu.Unlock()

	p := newPipe(id, pp.conn)
	pp.conn.registerPipe(p)
	return p
}

func (pp *PipePool) nextPipeID() uint64 {
	pp.nextID++
	return pp.nextID
}

// Release returns p to the free list if it recycled cleanly, or drops it
// (to be garbage collected) if it was closed instead. A pool at capacity
// simply closes the excess pipe rather than growing without bound.
func (pp *PipePool) Release(p *Pipe) {
	if !p.recycle() {
		pp.metrics.PipeClosed()
		_ = pp.conn.releasePipe(p.id)
		return
	}
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if len(pp.free) >= pp.maxFree {
		p.state.Store(int32(PipeClosed))
		pp.metrics.PipeClosed()
		_ = pp.conn.releasePipe(p.id)
		return
	}
	pp.metrics.PipeRecycled()
	pp.free = append(pp.free, p)
}
