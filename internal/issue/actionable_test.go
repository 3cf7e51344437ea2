// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "resolve dependencies"},
			expected: "failed to resolve dependencies",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "resolve dependencies",
				Resource:  "org.example:lib:1.2.0",
			},
			expected: "failed to resolve dependencies: org.example:lib:1.2.0",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "load config",
				Resource:  "./depload.cue",
				Cause:     errors.New("syntax error"),
			},
			expected: "failed to load config: ./depload.cue: syntax error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	nested := &ActionableError{
		Operation: "load dependencies",
		Cause: &ResolutionError{
			Coordinate: "org.example:lib:1.2.0",
			Cause:      errors.New("no such artifact"),
		},
	}

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions rendered as bullets",
			err: &ActionableError{
				Operation:   "fetch artifact",
				Suggestions: []string{"Check the cache directory", "Retry later"},
			},
			contains: []string{"failed to fetch artifact", "• Check the cache directory", "• Retry later"},
		},
		{
			name:     "no chain when not verbose",
			err:      nested,
			contains: []string{"failed to load dependencies: resolution failed: org.example:lib:1.2.0: no such artifact"},
			excludes: []string{"Error chain:"},
		},
		{
			name:     "chain when verbose",
			err:      nested,
			verbose:  true,
			contains: []string{"Error chain:", "1. resolution failed: org.example:lib:1.2.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Format(tt.verbose)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Format() missing %q\ngot:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Format() should not contain %q\ngot:\n%s", s, got)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if got := NewErrorContext().WithResource("x").Build(); got != nil {
		t.Errorf("Build() without operation = %v, want nil", got)
	}
	if got := NewErrorContext().BuildError(); got != nil {
		t.Errorf("BuildError() without operation = %v, want nil", got)
	}

	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("inject artifacts").
		WithResource("org.other:dep:2.0.0").
		WithSuggestion("one").
		WithSuggestions("two", "three").
		Wrap(cause).
		Build()
	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if len(ae.Suggestions) != 3 {
		t.Errorf("Suggestions = %d, want 3", len(ae.Suggestions))
	}
	if !errors.Is(ae, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !ae.HasSuggestions() {
		t.Error("HasSuggestions() = false, want true")
	}
}

func TestForError(t *testing.T) {
	t.Parallel()

	if ForError("op", "res", nil) != nil {
		t.Error("ForError(nil) should be nil")
	}

	ae := ForError("resolve", "org.example:lib:1.2.0", &ConfigurationError{Reason: "no repositories"})
	if !ae.HasSuggestions() {
		t.Error("configuration errors should carry suggestions")
	}
	if !errors.Is(ae, ErrConfiguration) {
		t.Error("errors.Is(ae, ErrConfiguration) = false")
	}

	plain := ForError("resolve", "", errors.New("plain"))
	if plain.HasSuggestions() {
		t.Error("errors outside the taxonomy should carry no suggestions")
	}
}
