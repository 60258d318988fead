// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError carries the context a user needs to act on a failure:
	// the operation that failed, the resource involved, and concrete
	// suggestions. The CLI renders it through Format; errors.Is/As keep
	// working through the wrapped cause.
	ActionableError struct {
		// Operation is a verb phrase, e.g. "provision python runtime".
		Operation string
		// Resource is the path or entity involved. Optional.
		Resource string
		// Suggestions are rendered as bullets under the message. Optional.
		Suggestions []string
		// Cause is the underlying error. Optional.
		Cause error
	}

	// ErrorContext accumulates context before the failing call, so an error
	// site only has to Wrap and build:
	//
	//	ectx := issue.NewErrorContext().
	//		WithOperation("load configuration").
	//		WithResource(path)
	//	...
	//	return ectx.WithSuggestion("Check YAML syntax").Wrap(err).BuildError()
	ErrorContext struct {
		acc ActionableError
	}
)

// NewErrorContext starts an empty builder.
func NewErrorContext() *ErrorContext { return &ErrorContext{} }

// WithOperation records the operation being attempted.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.acc.Operation = op
	return c
}

// WithResource records the file, path, or entity involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.acc.Resource = res
	return c
}

// WithSuggestion appends one actionable suggestion. Call repeatedly; order
// is preserved.
func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	c.acc.Suggestions = append(c.acc.Suggestions, s)
	return c
}

// Wrap records the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.acc.Cause = err
	return c
}

// Build returns the accumulated ActionableError, or nil when no operation
// was recorded — a builder without an operation describes nothing.
func (c *ErrorContext) Build() *ActionableError {
	if c.acc.Operation == "" {
		return nil
	}
	out := c.acc
	return &out
}

// BuildError is Build typed as error, for direct use in return statements.
// An empty builder yields a true nil error, not a typed-nil interface.
func (c *ErrorContext) BuildError() error {
	if e := c.Build(); e != nil {
		return e
	}
	return nil
}

// WrapWithOperation is the one-line form for sites that have no resource or
// suggestions to add. Returns nil when err is nil so it can wrap return
// values unconditionally.
func WrapWithOperation(err error, operation string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Cause: err}
}

// WrapWithContext is WrapWithOperation with the resource attached.
func WrapWithContext(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Resource: resource, Cause: err}
}

// Error renders the one-line form: "failed to <op>: <resource>: <cause>".
func (e *ActionableError) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, "failed to "+e.Operation)
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes the cause to errors.Is/As.
func (e *ActionableError) Unwrap() error { return e.Cause }

// HasSuggestions reports whether Format will render a suggestion block.
func (e *ActionableError) HasSuggestions() bool { return len(e.Suggestions) > 0 }

// Format renders the error for the terminal: the one-line message, a bullet
// per suggestion, and, when verbose, the numbered unwrap chain of the cause.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nError chain:")
		for depth, err := 1, e.Cause; err != nil; depth, err = depth+1, errors.Unwrap(err) {
			fmt.Fprintf(&b, "\n  %d. %s", depth, err.Error())
		}
	}
	return b.String()
}
