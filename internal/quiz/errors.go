// internal/quiz/errors.go
package quiz

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies engine failures so transport layers can map them to a
// status code without string matching.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidTransition
	KindValidation
	KindUpstream
	KindFull
	KindDuplicateName
)

var kind2http = map[Kind]int{
	KindNotFound:          http.StatusNotFound,
	KindInvalidTransition: http.StatusBadRequest,
	KindValidation:        http.StatusBadRequest,
	KindUpstream:          http.StatusInternalServerError,
	KindFull:              http.StatusBadRequest,
	KindDuplicateName:     http.StatusBadRequest,
}

// Error is the structured (kind, message) pair every engine operation returns
// instead of letting failures escape its boundary.
type Error struct {
	Kind    Kind   `json:"-"`
	Message string `json:"error"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to a transport status code.
func (e *Error) HTTPStatus() int {
	if c, ok := kind2http[e.Kind]; ok {
		return c
	}
	return http.StatusInternalServerError
}

func errNotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func errInvalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func errValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errUpstream(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), cause: cause}
}

func errFull(format string, args ...any) *Error {
	return &Error{Kind: KindFull, Message: fmt.Sprintf(format, args...)}
}

func errDuplicateName(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicateName, Message: fmt.Sprintf(format, args...)}
}

// Convert coerces an arbitrary error into an engine *Error, wrapping unknown
// errors as upstream failures.
func Convert(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return errUpstream(err, "internal error")
}
