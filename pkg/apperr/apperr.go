// Package apperr defines the application error taxonomy shared by the
// parsing pipeline, the persistence layer, and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to react to the class
// rather than the message.
type Kind int

const (
	// KindInternal covers anything unclassified.
	KindInternal Kind = iota
	// KindDecoding means the input bytes could not be interpreted as text
	// under any supported encoding.
	KindDecoding
	// KindEmptyInput means the input decoded fine but yielded zero usable
	// records.
	KindEmptyInput
	// KindFormat means the document container itself is malformed.
	KindFormat
	// KindValidation means the caller's request was invalid.
	KindValidation
	// KindNotFound means the requested entity does not exist.
	KindNotFound
	// KindDatabase means the storage layer failed.
	KindDatabase
	// KindUnavailable means a downstream service could not be reached.
	KindUnavailable
)

// String returns the stable name persisted into error details.
func (k Kind) String() string {
	switch k {
	case KindDecoding:
		return "decoding_error"
	case KindEmptyInput:
		return "empty_input"
	case KindFormat:
		return "format_error"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindDatabase:
		return "database_error"
	case KindUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}

// Error is a classified application error carrying a human-readable message
// and a free-form details map for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// With attaches one details entry and returns the same error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds a classified error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around an underlying cause. The cause text
// is copied into the details map so it survives JSON serialization.
func Wrap(kind Kind, message string, cause error) *Error {
	e := &Error{Kind: kind, Message: message, cause: cause}
	if cause != nil {
		e.With("cause", cause.Error())
	}
	return e
}

// KindOf extracts the kind from any error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Status is the single translation table from error kind to HTTP status.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDecoding, KindEmptyInput, KindFormat:
		return http.StatusUnprocessableEntity
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
