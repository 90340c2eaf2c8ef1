package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned for missing rows and rows owned by someone else
	ErrNotFound = errors.New("not found")

	// ErrAuthenticationFailed is returned for bad credentials and inactive accounts
	ErrAuthenticationFailed = errors.New("No active account found with the given credentials")

	// ErrInvalidToken is returned for malformed, expired, wrong-type or blacklisted tokens
	ErrInvalidToken = errors.New("Token is invalid or expired")

	// ErrInvalidPage is returned when the requested page does not exist
	ErrInvalidPage = errors.New("Invalid page.")
)

// Field level validation messages
const (
	MsgRequired      = "This field is required."
	MsgBlank         = "This field may not be blank."
	MsgNull          = "This field may not be null."
	MsgNotString     = "Not a valid string."
	MsgNotBoolean    = "Must be a valid boolean."
	MsgDatetime      = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
	MsgPasswordMatch = "Passwords do not match."
	MsgInvalidEmail  = "Enter a valid email address."
	MsgUsernameChars = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgUsernameTaken = "A user with that username already exists."
	MsgEmailTaken    = "user with this email already exists."
)

// MsgMaxLength formats the max length message
func MsgMaxLength(n int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", n)
}

// MsgInvalidChoice formats the invalid choice message
func MsgInvalidChoice(v string) string {
	return fmt.Sprintf("%q is not a valid choice.", v)
}

// ValidationError carries field level messages
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates a ValidationError with one message
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add appends msg to field
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field already failed
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Err returns e when it holds messages and nil otherwise
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
