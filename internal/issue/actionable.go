// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError decorates a failure with what was being attempted, which
	// coordinate or file was involved, and hints for fixing it.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load dependencies").
	//		WithResource("org.example:lib:1.2.0").
	//		WithSuggestion("Pass a repository with --repo <url>").
	//		Wrap(cause).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "resolve dependencies".
		Operation string

		// Resource is usually a coordinate's canonical string or a file path.
		Resource string

		Suggestions []string

		Cause error
	}

	// ErrorContext accumulates ActionableError fields fluently.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewErrorContext starts an empty builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// ForError wraps err with operation and resource and attaches the default
// suggestions for its failure kind. It returns nil for a nil err.
func ForError(operation, resource string, err error) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{
		Operation:   operation,
		Resource:    resource,
		Suggestions: SuggestionsFor(err),
		Cause:       err,
	}
}

// SuggestionsFor returns remediation hints for the taxonomy kind of err.
func SuggestionsFor(err error) []string {
	switch Kind(err) {
	case ErrConfiguration:
		return []string{
			"Declare at least one repository in depload.cue or with --repo",
			"Coordinates use the form group:artifact:version[:classifier]",
		}
	case ErrResolverUnavailable:
		return []string{
			"Check network access to the solver repository",
			"Point solver.path at a local depsolver binary or source tree",
			"Delete the cached solver artifact to force a fresh download",
		}
	case ErrResolution:
		return []string{
			"Verify the coordinate exists in one of the configured repositories",
			"Run with --verbose to see the solver's error output",
		}
	case ErrDownload:
		return []string{
			"Verify the artifact is published to one of the configured repositories",
			"Check the cache directory is writable",
		}
	case ErrInjection:
		return []string{
			"The host does not expose a supported code-loading facility",
			"Restrict injection.strategies only if you know which one the host supports",
		}
	default:
		return nil
	}
}

func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the cause for errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message followed by bulleted suggestions. In verbose mode
// the numbered cause chain is appended.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, s := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		depth := 1
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			depth++
		}
	}

	return msg.String()
}

// HasSuggestions reports whether any hints are attached.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// WithOperation sets the operation being performed.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the coordinate or path involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends one hint.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions appends several hints.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build returns nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// BuildError is Build typed as error, keeping a nil result a true nil interface.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
