// Package apperr implements the closed error taxonomy every node and
// handler in this backend reports through: a small Kind enum wrapping an
// underlying cause, in the spirit of Toolkit/Commons/errors' provider
// error types but scoped to this service's own failure modes.
package apperr

import "fmt"

// Kind is one of the six outcomes every node/handler ultimately reduces to.
type Kind string

const (
	KindInputInvalid        Kind = "input_invalid"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindParseFailure        Kind = "parse_failure"
	KindRetrievalMiss       Kind = "retrieval_miss"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

// Error is the concrete type every typed failure in this codebase returns.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Kind-tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an underlying error with a Kind, preserving it for errors.Is/As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for any
// error that didn't originate from this package.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As is a small local alias over errors.As so callers only import this
// package when working with Kind-tagged errors.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsRetryable mirrors Toolkit/Commons/errors.IsRetryable for this
// service's own error kinds: provider hiccups and cancellations from
// deadline pressure are worth a retry, input/parse/retrieval failures are not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindProviderUnavailable, KindCancelled:
		return true
	default:
		return false
	}
}
