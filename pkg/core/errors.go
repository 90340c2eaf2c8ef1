package core

import "fmt"

// Error codes shared by infrastructure packages.
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeUnavailable   = "UNAVAILABLE"
)

// Error is a coded error used for programmer and infrastructure failures.
// Request-level failures use the service error taxonomy instead.
type Error struct {
	Code    string
	Message string
	Err     error
}

// NewError creates a coded error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a coded error that wraps cause.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
