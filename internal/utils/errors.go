package utils

import "fmt"

// AppError carries the failing operation alongside a human-facing message
// and the underlying cause.
type AppError struct {
	Op  string
	Msg string
	Err error
}

// NewAppError wraps err with operation context.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

func (e *AppError) Error() string {
	s := e.Op + ": " + e.Msg
	if e.Err != nil {
		s += fmt.Sprintf(": %v", e.Err)
	}
	return s
}

func (e *AppError) Unwrap() error { return e.Err }
