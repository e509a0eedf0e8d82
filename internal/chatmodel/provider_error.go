package chatmodel

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies provider failures into a small set of
// categories suitable for retry and UX decisions.
type ProviderErrorKind string

const (
	ProviderErrorKindTransport      ProviderErrorKind = "transport"
	ProviderErrorKindHTTPStatus     ProviderErrorKind = "http_status"
	ProviderErrorKindDecode         ProviderErrorKind = "decode"
	ProviderErrorKindProvider       ProviderErrorKind = "provider"
)

// ProviderError describes a failure returned by an UpstreamAdapter. It
// implements the spec's Upstream error category (Transport, HttpStatus,
// Decode, Provider).
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	HTTP     int
	Body     string
	Message  string
	Cause    error
}

// NewProviderError constructs a ProviderError. provider and kind are required.
func NewProviderError(provider string, kind ProviderErrorKind, httpStatus int, body, message string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, HTTP: httpStatus, Body: body, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.HTTP > 0 {
		return fmt.Sprintf("%s upstream %s (http %d): %s", e.Provider, e.Kind, e.HTTP, msg)
	}
	return fmt.Sprintf("%s upstream %s: %s", e.Provider, e.Kind, msg)
}

// Unwrap preserves the original error chain.
func (e *ProviderError) Unwrap() error { return e.Cause }

// AsProviderError returns the first ProviderError in err's chain, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
