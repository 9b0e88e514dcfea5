// Package apierr carries the HTTP status a handler should respond with
// alongside the operator-facing message.
package apierr

import "fmt"

type Error struct {
	Status int
	Msg    string
	Err    error
}

// Error prefers the handler-supplied message; a wrapped error speaks for
// itself when no message was given.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, msg string, err error) *Error {
	return &Error{Status: status, Msg: msg, Err: err}
}
