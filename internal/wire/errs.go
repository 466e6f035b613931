package wire

import "fmt"

// ErrorKind names one of the typed exceptions that may cross the wire in a
// reply frame's exception payload (§6 Errors, §7 Error Handling Design).
type ErrorKind uint8

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindClosedDatabase
	ErrorKindClosedIndex
	ErrorKindClosedView
	ErrorKindDeadlock
	ErrorKindLockTimeout
	ErrorKindLockFailure
	ErrorKindViewConstraint
	ErrorKindQuery
	ErrorKindInvalidTransaction
	ErrorKindUnsupportedOperation
	ErrorKindIllegalState
	ErrorKindIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindClosedDatabase:
		return "ClosedDatabase"
	case ErrorKindClosedIndex:
		return "ClosedIndex"
	case ErrorKindClosedView:
		return "ClosedView"
	case ErrorKindDeadlock:
		return "Deadlock"
	case ErrorKindLockTimeout:
		return "LockTimeout"
	case ErrorKindLockFailure:
		return "LockFailure"
	case ErrorKindViewConstraint:
		return "ViewConstraint"
	case ErrorKindQuery:
		return "Query"
	case ErrorKindInvalidTransaction:
		return "InvalidTransaction"
	case ErrorKindUnsupportedOperation:
		return "UnsupportedOperation"
	case ErrorKindIllegalState:
		return "IllegalState"
	case ErrorKindIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// StackFrame is one preserved call-stack entry. Exceptions that cross the
// wire keep their originating stack so a client-side log or debugger shows
// where, on the server, the failure actually happened.
type StackFrame struct {
	Class  string
	Method string
	Line   int32
}

// DeadlockParticipant names one other transaction involved in a detected
// deadlock cycle, alongside the index/key it was last waiting to lock.
type DeadlockParticipant struct {
	TransactionID   int64
	LastLockedIndex int64
	LastLockedKey   []byte
}

// WireError is the decoded form of any exception reply. Only the fields
// relevant to Kind are populated; see the per-kind constructors below.
type WireError struct {
	Kind         ErrorKind
	Message      string
	Frames       []StackFrame
	Nanos        int64
	Attachment   string
	Guilty       bool
	Participants []DeadlockParticipant
	StartPos     int32
	EndPos       int32
}

func (e *WireError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewClosedError builds a closed-database/index/view error.
func NewClosedError(kind ErrorKind, message string) *WireError {
	return &WireError{Kind: kind, Message: message}
}

// NewLockTimeoutError builds a lock-timeout exception.
func NewLockTimeoutError(message string, nanos int64, attachment string, frames []StackFrame) *WireError {
	return &WireError{Kind: ErrorKindLockTimeout, Message: message, Nanos: nanos, Attachment: attachment, Frames: frames}
}

// NewDeadlockError builds a deadlock exception.
func NewDeadlockError(message string, nanos int64, attachment string, guilty bool, participants []DeadlockParticipant, frames []StackFrame) *WireError {
	return &WireError{
		Kind: ErrorKindDeadlock, Message: message, Nanos: nanos, Attachment: attachment,
		Guilty: guilty, Participants: participants, Frames: frames,
	}
}

// NewQueryError builds a query-parsing exception.
func NewQueryError(message string, start, end int32, frames []StackFrame) *WireError {
	return &WireError{Kind: ErrorKindQuery, Message: message, StartPos: start, EndPos: end, Frames: frames}
}

// NewSimpleError builds any of the remaining kinds, which carry only a
// message and stack frames.
func NewSimpleError(kind ErrorKind, message string, frames []StackFrame) *WireError {
	return &WireError{Kind: kind, Message: message, Frames: frames}
}

func encodeFrames(e *Encoder, frames []StackFrame) {
	e.WriteUint32(uint32(len(frames)))
	for _, f := range frames {
		e.WriteString(f.Class)
		e.WriteString(f.Method)
		e.WriteInt32(f.Line)
	}
}

func decodeFrames(d *Decoder) ([]StackFrame, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	frames := make([]StackFrame, 0, n)
	for i := uint32(0); i < n; i++ {
		class, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		method, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		line, err := d.ReadInt32()
		if err != nil {
			return nil, err
		}
		frames = append(frames, StackFrame{Class: class, Method: method, Line: line})
	}
	return frames, nil
}

// EncodeError serializes a WireError for the exception payload of a reply
// frame: kind byte, message, stack frames, then kind-specific fields.
func EncodeError(err *WireError) []byte {
	e := NewEncoder()
	e.WriteUint8(uint8(err.Kind))
	e.WriteString(err.Message)
	encodeFrames(e, err.Frames)

	switch err.Kind {
	case ErrorKindLockTimeout:
		e.WriteInt64(err.Nanos)
		e.WriteString(err.Attachment)
	case ErrorKindDeadlock:
		e.WriteInt64(err.Nanos)
		e.WriteString(err.Attachment)
		e.WriteBool(err.Guilty)
		e.WriteUint32(uint32(len(err.Participants)))
		for _, p := range err.Participants {
			e.WriteInt64(p.TransactionID)
			e.WriteInt64(p.LastLockedIndex)
			e.WriteBytes(p.LastLockedKey)
		}
	case ErrorKindQuery:
		e.WriteInt32(err.StartPos)
		e.WriteInt32(err.EndPos)
	}
	return e.Bytes()
}

// DecodeError is the inverse of EncodeError. An unrecognized kind byte
// decodes to ErrorKindUnknown with whatever message/frames were present,
// per the "unknown values decode to a defined default" rule in §4.6.
func DecodeError(data []byte) (*WireError, error) {
	d := NewDecoder(data)
	kindByte, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	kind := ErrorKind(kindByte)
	if kind > ErrorKindIO {
		kind = ErrorKindUnknown
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	frames, err := decodeFrames(d)
	if err != nil {
		return nil, err
	}
	werr := &WireError{Kind: kind, Message: message, Frames: frames}

	switch kind {
	case ErrorKindLockTimeout:
		if werr.Nanos, err = d.ReadInt64(); err != nil {
			return nil, err
		}
		if werr.Attachment, err = d.ReadString(); err != nil {
			return nil, err
		}
	case ErrorKindDeadlock:
		if werr.Nanos, err = d.ReadInt64(); err != nil {
			return nil, err
		}
		if werr.Attachment, err = d.ReadString(); err != nil {
			return nil, err
		}
		if werr.Guilty, err = d.ReadBool(); err != nil {
			return nil, err
		}
		n, err := d.ReadUint32()
		if err != nil {
			return nil, err
		}
		werr.Participants = make([]DeadlockParticipant, 0, n)
		for i := uint32(0); i < n; i++ {
			var p DeadlockParticipant
			if p.TransactionID, err = d.ReadInt64(); err != nil {
				return nil, err
			}
			if p.LastLockedIndex, err = d.ReadInt64(); err != nil {
				return nil, err
			}
			key, err := d.ReadBytes()
			if err != nil {
				return nil, err
			}
			p.LastLockedKey = append([]byte(nil), key...)
			werr.Participants = append(werr.Participants, p)
		}
	case ErrorKindQuery:
		if werr.StartPos, err = d.ReadInt32(); err != nil {
			return nil, err
		}
		if werr.EndPos, err = d.ReadInt32(); err != nil {
			return nil, err
		}
	}
	return werr, nil
}
