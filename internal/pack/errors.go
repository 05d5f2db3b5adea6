package pack

import (
	"errors"
	"fmt"
)

// ErrUnsupported means no generator exists for the product in the jurisdiction.
var ErrUnsupported = errors.New("product not supported")

// MissingFactError names the canonical fact a generator needed.
type MissingFactError struct {
	Fact string
}

func (e *MissingFactError) Error() string {
	return "missing required fact: " + e.Fact
}

// RenderError wraps a failure to render a required document.
type RenderError struct {
	Document string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Document, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func missing(fact string) error {
	return &MissingFactError{Fact: fact}
}

func unsupported(what string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, what)
}
