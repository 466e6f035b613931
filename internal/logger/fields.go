package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so
// log aggregation and querying can rely on a fixed vocabulary across the
// transport, registry, dispatcher, and proxy packages.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Session & connection
	KeySessionID    = "session_id"
	KeyConnectionID = "connection_id"
	KeyPeerAddr     = "peer_addr"

	// Operation dispatch
	KeyOperation = "operation"
	KeySelector  = "selector"
	KeyHandleID  = "handle_id"
	KeyHandleKind = "handle_kind"
	KeyBatched   = "batched"

	// Pipes & streaming
	KeyPipeID    = "pipe_id"
	KeyPipeState = "pipe_state"
	KeyBytes     = "bytes"
	KeyChunks    = "chunks"

	// Transactions & locking
	KeyLockMode    = "lock_mode"
	KeyLockResult  = "lock_result"
	KeyDurability  = "durability_mode"
	KeyNestingDepth = "nesting_depth"

	// Errors
	KeyError     = "error"
	KeyErrorKind = "error_kind"

	// Generic
	KeyDurationMs = "duration_ms"
	KeyAttempt    = "attempt"
	KeyCount      = "count"
)

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

func SessionID(id string) slog.Attr    { return slog.String(KeySessionID, id) }
func ConnectionID(id string) slog.Attr { return slog.String(KeyConnectionID, id) }
func PeerAddr(addr string) slog.Attr   { return slog.String(KeyPeerAddr, addr) }

func Operation(name string) slog.Attr { return slog.String(KeyOperation, name) }
func Selector(sel int) slog.Attr      { return slog.Int(KeySelector, sel) }
func HandleID(id int64) slog.Attr     { return slog.Int64(KeyHandleID, id) }
func HandleKind(kind string) slog.Attr {
	return slog.String(KeyHandleKind, kind)
}
func Batched(b bool) slog.Attr { return slog.Bool(KeyBatched, b) }

func PipeID(id string) slog.Attr    { return slog.String(KeyPipeID, id) }
func PipeState(state string) slog.Attr {
	return slog.String(KeyPipeState, state)
}
func Bytes(n int) slog.Attr  { return slog.Int(KeyBytes, n) }
func Chunks(n int) slog.Attr { return slog.Int(KeyChunks, n) }

func LockMode(mode string) slog.Attr    { return slog.String(KeyLockMode, mode) }
func LockResult(result string) slog.Attr {
	return slog.String(KeyLockResult, result)
}
func Durability(mode string) slog.Attr { return slog.String(KeyDurability, mode) }
func NestingDepth(depth int) slog.Attr {
	return slog.Int(KeyNestingDepth, depth)
}

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func ErrorKind(kind string) slog.Attr { return slog.String(KeyErrorKind, kind) }

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }

// HandleRef formats a handle identity the way stack traces reference it.
func HandleRef(id int64) string {
	return fmt.Sprintf("#%d", id)
}
