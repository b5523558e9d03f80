// Package puberr defines the structured error taxonomy for the publish
// pipeline.
//
// Callers should branch on Kind/Code via errors.As rather than matching
// error strings; messages are for humans and may change.
package puberr

import (
	"errors"
	"fmt"
)

// Kind is a stable error category for programmatic handling.
type Kind string

const (
	// KindValidation covers malformed input caught before any signing or
	// network call (oversized tag, empty field, bad length prefix).
	KindValidation Kind = "Validation"

	// KindSignature covers backend signing failures. Non-recoverable for
	// the attempt: the caller must mint a fresh nonce/timestamp to retry.
	KindSignature Kind = "Signature"

	// KindNetwork covers transport failures, timeouts and non-2xx
	// responses. Retryability depends on the specific failure; see
	// Retryable.
	KindNetwork Kind = "Network"

	// KindProtocol covers responses that parsed but are missing required
	// fields. Non-retryable against the same backend instance.
	KindProtocol Kind = "Protocol"

	// KindReplay covers stale timestamps and already-consumed nonces. The
	// caller should start a fresh attempt rather than retry with the same
	// data.
	KindReplay Kind = "Replay"

	KindInternal Kind = "Internal"
)

// Error is the structured error type for the publish pipeline.
//
// Code is a stable identifier (e.g. PUB-VAL-001, PUB-NET-002) naming the
// violated rule or failure site.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error

	// StatusCode is the HTTP status for Network errors, 0 otherwise.
	StatusCode int
	// Timeout marks Network errors caused by a deadline expiry.
	Timeout bool
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Retryable reports whether retrying the same request may succeed.
// Timeouts and 5xx responses are retryable; everything else is not.
func (e *Error) Retryable() bool {
	if e == nil || e.Kind != KindNetwork {
		return false
	}
	if e.Timeout {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 0
}

// New returns a structured error with no cause.
func New(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, code, format string, args ...any) error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a structured error.
func Wrap(kind Kind, code, msg string, cause error) error {
	if cause == nil {
		return New(kind, code, msg)
	}
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// NewNetwork builds a Network error carrying the HTTP status code.
func NewNetwork(code string, statusCode int, msg string) error {
	return &Error{Kind: KindNetwork, Code: code, Message: msg, StatusCode: statusCode}
}

// NewTimeout builds a Network error marking a deadline expiry.
func NewTimeout(code, msg string) error {
	return &Error{Kind: KindNetwork, Code: code, Message: msg, Timeout: true}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// CodeOf returns the stable code for a structured error, or "" if unknown.
func CodeOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// IsRetryable reports whether err is a retryable Network error.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Retryable()
}

// PartialFailure reports a publish attempt that succeeded through upload but
// failed at a later step. It carries the already-obtained upload id so the
// caller can resume without re-uploading.
type PartialFailure struct {
	UploadID string
	Step     string
	Cause    error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("publish failed at step %q after upload %s: %v", e.Step, e.UploadID, e.Cause)
}

func (e *PartialFailure) Unwrap() error {
	return e.Cause
}
