// Package errors defines the sentinel errors shared by the codec, the queue
// dispatcher and the transports, plus an Error type that carries a sentinel
// together with a human message and an optional underlying cause.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolVersionMismatch   = errors.New("protocol version mismatch")
	ErrUnsupportedPayloadVersion = errors.New("unsupported payload version")
	ErrUnknownOperationKind      = errors.New("unknown operation kind")
	ErrUnknownFieldKind          = errors.New("unknown field kind")
	ErrDecodeTruncated           = errors.New("truncated message")
	ErrDecodeMalformed           = errors.New("malformed message")
	ErrBackendApply              = errors.New("backend apply failure")
	ErrHandleMismatch            = errors.New("work cannot be applied on this index handle")
	ErrUnknownShard              = errors.New("unknown shard")
	ErrDocumentAlreadyOpen       = errors.New("a document is already open")
	ErrNoOpenDocument            = errors.New("no document is open")
)

// Error pairs a sentinel with a message and, optionally, the failure that
// triggered it. errors.Is matches both the sentinel and the cause.
type Error struct {
	Err     error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Err.Error(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func New(sentinel error, message string) *Error {
	return &Error{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *Error {
	return &Error{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches cause to a new Error for sentinel.
func Wrap(sentinel error, cause error, format string, args ...any) *Error {
	return &Error{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsFatalDecode reports whether err is one of the decode failures that reject
// a whole message.
func IsFatalDecode(err error) bool {
	switch {
	case errors.Is(err, ErrProtocolVersionMismatch),
		errors.Is(err, ErrUnsupportedPayloadVersion),
		errors.Is(err, ErrUnknownOperationKind),
		errors.Is(err, ErrUnknownFieldKind),
		errors.Is(err, ErrDecodeTruncated),
		errors.Is(err, ErrDecodeMalformed):
		return true
	default:
		return false
	}
}
