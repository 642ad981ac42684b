// Package apperr defines the error taxonomy shared by the service layer and
// the HTTP boundary. Handlers never pick status codes themselves; they ask
// StatusCode for the code that belongs to an error's Kind.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUploadRejected
	KindStorage
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUploadRejected:
		return "upload_rejected"
	case KindStorage:
		return "storage"
	case KindStream:
		return "stream"
	default:
		return "internal"
	}
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(k Kind) int {
	switch k {
	case KindValidation, KindUploadRejected:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Message and Details are safe to
// show to clients; Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Exposed reports whether the cause may be shown to the caller. Only client
// errors are; server-side failures stay opaque.
func (e *Error) Exposed() bool {
	return StatusCode(e.Kind) < http.StatusInternalServerError
}

// Validation reports bad client input. Details list the offending fields.
func Validation(msg string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// NotFound reports a missing record or file.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// UploadRejected reports a file refused by an upload policy.
func UploadRejected(msg string, details ...string) *Error {
	return &Error{Kind: KindUploadRejected, Message: msg, Details: details}
}

// Storage wraps a record or blob store failure.
func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// Stream wraps a failure while streaming a stored file.
func Stream(msg string, err error) *Error {
	return &Error{Kind: KindStream, Message: msg, Err: err}
}

// Internal wraps any other server-side failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// From returns err as an *Error, wrapping unclassified errors as internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("Internal Server Error", err)
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	return From(err).Kind
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
