package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error into one of the known categories.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
	KindInternal
)

// HTTPStatus maps an error kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Message is safe to return to the
// caller; Err (if set) carries the internal cause and is only logged.
// Data carries optional structured context for the caller (e.g. the id of an
// inactive record blocking a create).
type Error struct {
	Kind    Kind
	Message string
	Data    interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// ConflictWithData builds a conflict error carrying structured context.
func ConflictWithData(message string, data interface{}) *Error {
	return &Error{Kind: KindConflict, Message: message, Data: data}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Internal wraps an unexpected failure. The wrapped cause is kept for logging
// but the message returned to callers stays generic.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As unwraps err into *Error if possible.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
