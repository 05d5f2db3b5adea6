// Package domainerrors carries coded errors across layers so transport code can
// map them to responses without string matching.
//
// Services return these; stores return sentinel errors (pkg/platform/sentinel)
// which services translate. Handlers pass whatever they receive to
// httputil.WriteError.
package domainerrors

import (
	"errors"
	"strings"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvalidState       Code = "invalid_state"
	CodeInvariantViolation Code = "invariant_violation"
	CodePayloadTooLarge    Code = "payload_too_large"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"
)

// Error is a coded error with an optional list of field-level details.
type Error struct {
	Code    Code
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetails creates a coded error carrying a structured detail list, used for
// input validation failures that report several problems at once.
func WithDetails(code Code, message string, details ...string) error {
	return &Error{Code: code, Message: message, Details: details}
}

// HasCode reports whether the outermost coded error in the chain has the code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// Details returns the detail list of the outermost coded error.
func Details(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// Collector accumulates validation problems and produces a single error.
type Collector struct {
	details []string
}

// Add records a problem when cond is true.
func (c *Collector) Add(cond bool, detail string) {
	if cond {
		c.details = append(c.details, detail)
	}
}

// Err returns nil when nothing was recorded.
func (c *Collector) Err(message string) error {
	if len(c.details) == 0 {
		return nil
	}
	if message == "" {
		message = strings.Join(c.details, "; ")
	}
	return WithDetails(CodeValidation, message, c.details...)
}
