// Package apierr is the error type services hand to HTTP handlers: the
// status to respond with and a stable machine-readable code, wrapping
// the cause. The cause is for logs; handlers never echo it to clients.
package apierr

import "fmt"

type Error struct {
	Status int
	Code   string
	Err    error
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Error reports the wrapped cause when there is one, falling back to the
// code and then the status so the message is never empty.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	case e.Status != 0:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }
