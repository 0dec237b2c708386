// Package apperror defines the error type returned by every controller
// operation. Callers branch on Kind, not on message text.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindValidation Kind = iota + 1 // value out of range, empty name
	KindState                      // operation not allowed in the current status
	KindIO                         // template file or job document unreadable/malformed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error carries the kind, the offending field (validation only), a
// user-facing message and the underlying cause, if any.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

func State(msg string) *Error {
	return &Error{Kind: KindState, Msg: msg}
}

func IO(msg string, err error) *Error {
	return &Error{Kind: KindIO, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
