// Package relayerr defines the structured error taxonomy shared by the event
// log, stream producer/consumer, and tool executor.
package relayerr

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the core taxonomy. Use errors.Is against these;
// wrap them with fmt.Errorf("...: %w", Sentinel) to add context.
var (
	// AlreadyStreaming is returned when a start request targets a session that
	// already has an active producer (a log key that already exists).
	AlreadyStreaming = errors.New("already streaming")

	// LogMissing is the canonical cancellation/completion signal: the log key
	// was deleted (or never existed) when the caller expected it to be present.
	LogMissing = errors.New("log missing")

	// StreamTimeout is returned when the inter-chunk deadline on an upstream
	// stream is exceeded.
	StreamTimeout = errors.New("stream timeout")

	// Transport indicates a transient failure in the log substrate or document
	// store.
	Transport = errors.New("transport error")

	// Crypto indicates an encryption or decryption failure on a provider secret.
	Crypto = errors.New("crypto error")

	// ToolNotFound indicates the referenced tool does not exist or is not
	// enabled for the caller.
	ToolNotFound = errors.New("tool not found")

	// ToolCallNotFound indicates the referenced pending tool call could not be
	// resolved on the source message.
	ToolCallNotFound = errors.New("tool call not found")

	// InvalidParameters indicates a tool call's parameters failed schema
	// validation.
	InvalidParameters = errors.New("invalid tool parameters")

	// Cancelled indicates a tool execution was cancelled cooperatively because
	// its primary sink closed.
	Cancelled = errors.New("cancelled")

	// ToolExecution wraps an unclassified failure raised by a tool
	// implementation itself.
	ToolExecution = errors.New("tool execution failed")
)

// Error carries a sentinel classification plus a human-readable message and
// optional cause, so callers can both errors.Is against the taxonomy and read
// a useful message.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}
	return msg
}

// Unwrap returns the sentinel kind, so errors.Is/As see the kind; the cause
// is not part of that chain and is read from the Cause field of *Error.
func (e *Error) Unwrap() error { return e.Kind }

// Is reports whether err's kind matches target, supporting errors.Is(err, relayerr.LogMissing).
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}
