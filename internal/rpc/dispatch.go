// Package rpc is the server-side skeleton dispatcher: it decodes a
// request envelope's (handle id, selector, payload), resolves the handle
// from a session's registry, and runs the matching Handler on a bounded
// worker pool so one session can't flood the process with unbounded
// goroutines.
package rpc

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tupldb/remote/internal/engine"
	"github.com/tupldb/remote/internal/logger"
	"github.com/tupldb/remote/internal/metrics"
	"github.com/tupldb/remote/internal/registry"
	"github.com/tupldb/remote/internal/telemetry"
	"github.com/tupldb/remote/internal/wire"
)

// Handler implements one capability operation. handle is the resolved
// registry.Handle.Value for the request's target; payload is the decoded
// argument bytes. A returned *wire.WireError becomes an exception reply;
// any other non-nil error is wrapped as an unexpected-failure exception
// carrying a synthetic single-frame stack trace, the same way the
// teacher's state manager never lets an internal error escape un-typed.
type Handler func(ctx context.Context, handle any, payload []byte) ([]byte, error)

// Dispatcher resolves and runs handlers against one session's registry.
type Dispatcher struct {
	registry *registry.Registry
	handlers map[uint32]Handler
	pool     *errgroup.Group
	metrics  *metrics.Metrics
	inFlight int64
}

// New creates a Dispatcher bound to reg, running at most workerLimit
// handlers concurrently. workerLimit <= 0 means unbounded.
func New(reg *registry.Registry, workerLimit int) *Dispatcher {
	g := &errgroup.Group{}
	if workerLimit > 0 {
		g.SetLimit(workerLimit)
	}
	return &Dispatcher{registry: reg, handlers: make(map[uint32]Handler), pool: g}
}

// SetMetrics attaches the collector every dispatched call reports
// latency, error kind and worker pool occupancy through. Passing nil (the default) disables
// instrumentation with zero overhead.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// Register binds selector to h. Re-registering a selector replaces the
// previous handler, which is only ever done at startup.
func (d *Dispatcher) Register(selector uint32, h Handler) {
	d.handlers[selector] = h
}

// Handle processes one request frame synchronously from the caller's
// point of view, but runs the actual handler on the bounded pool: if the
// pool is saturated, this call blocks until a slot frees, providing
// natural backpressure on a session sending requests faster than the
// server can keep up.
func (d *Dispatcher) Handle(ctx context.Context, req wire.RequestFrame) wire.ReplyFrame {
	done := make(chan wire.ReplyFrame, 1)
	d.pool.Go(func() error {
		n := atomic.AddInt64(&d.inFlight, 1)
		d.metrics.SetPoolOccupancy(int(n))
		defer func() {
			n := atomic.AddInt64(&d.inFlight, -1)
			d.metrics.SetPoolOccupancy(int(n))
		}()
		done <- d.process(ctx, req)
		return nil
	})

	select {
	case reply := <-done:
		return reply
	case <-ctx.Done():
		return wire.ReplyFrame{
			PipeID: req.PipeID, Kind: wire.FrameException,
			Payload: wire.EncodeError(wire.NewSimpleError(wire.ErrorKindIO, ctx.Err().Error(), nil)),
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, req wire.RequestFrame) wire.ReplyFrame {
	start := time.Now()
	selector := strconv.Itoa(int(req.Selector))

	ctx, span := telemetry.StartSpan(ctx, "rpc.dispatch")
	telemetry.SetAttributes(ctx, telemetry.Selector(int(req.Selector)), telemetry.HandleID(int64(req.PipeID)))
	defer span.End()

	h, err := d.registry.MustLookup(int64(req.PipeID))
	if err != nil {
		telemetry.RecordError(ctx, err)
		d.metrics.RecordDispatch(selector, start, "illegal_state")
		return exceptionReply(req.PipeID, wire.NewSimpleError(wire.ErrorKindIllegalState, err.Error(), nil))
	}

	handler, ok := d.handlers[req.Selector]
	if !ok {
		d.metrics.RecordDispatch(selector, start, "unsupported_operation")
		return exceptionReply(req.PipeID, wire.NewSimpleError(
			wire.ErrorKindUnsupportedOperation,
			fmt.Sprintf("no handler for selector %d on %s handle", req.Selector, h.Kind),
			nil,
		))
	}

	payload, err := handler(ctx, h.Value, req.Payload)
	if err != nil {
		if werr, ok := err.(*wire.WireError); ok {
			telemetry.RecordError(ctx, werr)
			d.metrics.RecordDispatch(selector, start, werr.Kind.String())
			return exceptionReply(req.PipeID, werr)
		}
		if eerr, ok := err.(*engine.Error); ok {
			werr := engine.ToWireError(eerr)
			telemetry.RecordError(ctx, eerr)
			d.metrics.RecordDispatch(selector, start, werr.Kind.String())
			return exceptionReply(req.PipeID, werr)
		}
		logger.WarnCtx(ctx, "rpc: handler returned untyped error", "selector", req.Selector, "error", err.Error())
		telemetry.RecordError(ctx, err)
		d.metrics.RecordDispatch(selector, start, "illegal_state")
		return exceptionReply(req.PipeID, wire.NewSimpleError(
			wire.ErrorKindIllegalState, err.Error(),
			[]wire.StackFrame{{Class: "internal/rpc", Method: "Dispatcher.process", Line: 0}},
		))
	}

	d.metrics.RecordDispatch(selector, start, "")
	if req.NoReply {
		return wire.ReplyFrame{}
	}
	return wire.ReplyFrame{PipeID: req.PipeID, Kind: wire.FrameResult, Payload: payload}
}

func exceptionReply(pipeID uint64, werr *wire.WireError) wire.ReplyFrame {
	return wire.ReplyFrame{PipeID: pipeID, Kind: wire.FrameException, Payload: wire.EncodeError(werr)}
}
