// Package engine declares the black-box storage interfaces this remote
// layer mediates: Database, View, Index, Cursor, Transaction, Table,
// Query, Scanner, Updater, Sorter, Snapshot, and the verification/compaction
// Observer callback. The wire and server packages translate these
// interfaces across the network; engine itself knows nothing about
// sessions, handles, or framing. Two implementations live under this
// package: memengine (a minimal in-process reference store used for
// tests and local runs) and badgerengine (a dgraph-io/badger-backed
// store for real deployments).
package engine

import (
	"fmt"

	"github.com/tupldb/remote/internal/wire"
)

// Error is the common shape of every engine-level failure: a kind that
// maps directly onto a wire.ErrorKind, a human message, and (for the
// kinds that carry one) kind-specific detail mirroring wire.WireError.
type Error struct {
	Kind       wire.ErrorKind
	Message    string
	Nanos      int64
	Attachment string
	Guilty     bool
	Participants []wire.DeadlockParticipant
	StartPos   int32
	EndPos     int32
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func ClosedDatabaseError(msg string) *Error { return &Error{Kind: wire.ErrorKindClosedDatabase, Message: msg} }
func ClosedIndexError(msg string) *Error    { return &Error{Kind: wire.ErrorKindClosedIndex, Message: msg} }
func ClosedViewError(msg string) *Error     { return &Error{Kind: wire.ErrorKindClosedView, Message: msg} }

func DeadlockError(msg string, nanos int64, attachment string, guilty bool, participants []wire.DeadlockParticipant) *Error {
	return &Error{Kind: wire.ErrorKindDeadlock, Message: msg, Nanos: nanos, Attachment: attachment, Guilty: guilty, Participants: participants}
}

func LockTimeoutError(msg string, nanos int64, attachment string) *Error {
	return &Error{Kind: wire.ErrorKindLockTimeout, Message: msg, Nanos: nanos, Attachment: attachment}
}

func LockFailureError(msg string) *Error { return &Error{Kind: wire.ErrorKindLockFailure, Message: msg} }
func ViewConstraintError(msg string) *Error { return &Error{Kind: wire.ErrorKindViewConstraint, Message: msg} }

func QueryError(msg string, start, end int32) *Error {
	return &Error{Kind: wire.ErrorKindQuery, Message: msg, StartPos: start, EndPos: end}
}

func InvalidTransactionError(msg string) *Error { return &Error{Kind: wire.ErrorKindInvalidTransaction, Message: msg} }

func UnsupportedOperationError(msg string) *Error {
	return &Error{Kind: wire.ErrorKindUnsupportedOperation, Message: msg}
}

func IllegalStateError(msg string) *Error { return &Error{Kind: wire.ErrorKindIllegalState, Message: msg} }
func IOError(msg string) *Error           { return &Error{Kind: wire.ErrorKindIO, Message: msg} }

// ToWireError converts an engine Error into its wire representation,
// carrying over every kind-specific field.
func ToWireError(e *Error) *wire.WireError {
	return &wire.WireError{
		Kind: e.Kind, Message: e.Message, Nanos: e.Nanos, Attachment: e.Attachment,
		Guilty: e.Guilty, Participants: e.Participants, StartPos: e.StartPos, EndPos: e.EndPos,
	}
}

// FromWireError converts a decoded wire.WireError back into an engine
// Error, used on the client side to surface a server exception to the
// caller through the same Error type the in-process engine would raise.
func FromWireError(w *wire.WireError) *Error {
	return &Error{
		Kind: w.Kind, Message: w.Message, Nanos: w.Nanos, Attachment: w.Attachment,
		Guilty: w.Guilty, Participants: w.Participants, StartPos: w.StartPos, EndPos: w.EndPos,
	}
}
