// RTMP error kinds

package rtmp

import (
	"errors"
	"fmt"
)

// Kind classifies why a connection-level operation failed, so callers can
// decide whether the failure is fatal, recoverable, or just "no more data".
type Kind int

const (
	// KindInvalidData covers malformed headers, bad AMF0 markers, non-UTF-8
	// strings and failed handshake digests/signatures.
	KindInvalidData Kind = iota
	// KindInsufficientData means a decoder ran off the end of a buffer it
	// was handed. At the framing boundary this means "wait for more bytes";
	// inside an already-assembled payload it is a protocol error.
	KindInsufficientData
	// KindProtocolStatus means the peer answered with _error, or an onStatus
	// carrying level:"error".
	KindProtocolStatus
	// KindStreamExhausted means the publisher's FLV source ran out cleanly.
	KindStreamExhausted
	// KindIO wraps an error from the underlying byte stream.
	KindIO
	// KindOther is the sentinel "not a protocol problem" kind: clean EOF,
	// a deliberate shutdown, and the like.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindInvalidData:
		return "invalid-data"
	case KindInsufficientData:
		return "insufficient-data"
	case KindProtocolStatus:
		return "protocol-status"
	case KindStreamExhausted:
		return "stream-exhausted"
	case KindIO:
		return "io"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Error is the single error type threaded back up through the core. It
// carries a Kind so map_err-style recovery can branch on the failure class
// instead of string-matching, and an optional Info AMF0 object for
// KindProtocolStatus failures (the peer's information object).
type Error struct {
	Kind Kind
	Info *Value
	err  error
}

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, err: errors.New(msg)}
}

func WrapError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, err: cause}
}

func ProtocolStatusError(info *Value) *Error {
	desc := "peer reported an error status"
	if info != nil {
		if d := info.Property("description"); d != nil && d.amfType == typeString {
			desc = d.str
		} else if c := info.Property("code"); c != nil && c.amfType == typeString {
			desc = c.str
		}
	}
	return &Error{Kind: KindProtocolStatus, Info: info, err: errors.New(desc)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("rtmp: %s: %s", e.Kind, e.err.Error())
}

func (e *Error) Unwrap() error {
	return e.err
}

// IsKind reports whether err is, or wraps, an *Error whose Kind is kind, so
// callers can branch on the failure class without string matching.
func IsKind(err error, kind Kind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// ErrStreamExhausted is the canonical sentinel for a clean end of the FLV
// source; map_err treats it specially (no teardown commands).
var ErrStreamExhausted = &Error{Kind: KindStreamExhausted, err: errors.New("flv source exhausted")}
