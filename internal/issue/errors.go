// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
)

var (
	// ErrConfiguration classifies caller mistakes: empty repository lists, missing
	// coordinate fields, malformed configuration. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrResolverUnavailable classifies a solver artifact that is missing or corrupt.
	ErrResolverUnavailable = errors.New("resolver unavailable")

	// ErrResolution classifies a failure reported by the solver entry point.
	ErrResolution = errors.New("resolution failed")

	// ErrDownload classifies an artifact that no repository could provide.
	ErrDownload = errors.New("download failed")

	// ErrInjection classifies a host that cannot receive artifacts, either because no
	// strategy was selectable or because a commit failed structurally.
	ErrInjection = errors.New("injection failed")
)

type (
	// ConfigurationError reports invalid input supplied by the caller.
	// It wraps ErrConfiguration for errors.Is() compatibility.
	ConfigurationError struct {
		Coordinate string
		Reason     string
		Cause      error
	}

	// ResolverUnavailableError reports that the isolated solver could not be
	// bootstrapped. Coordinate is the solver's own pinned coordinate.
	ResolverUnavailableError struct {
		Coordinate string
		Cause      error
	}

	// ResolutionError reports that the solver failed for a root coordinate.
	// No partial result accompanies it.
	ResolutionError struct {
		Coordinate string
		Cause      error
	}

	// DownloadError reports that no repository yielded an artifact.
	DownloadError struct {
		Coordinate   string
		Repositories []string
		Cause        error
	}

	// InjectionError reports a host that could not be made to see an artifact.
	InjectionError struct {
		Coordinate string
		Strategy   string
		Reason     string
		Cause      error
	}
)

func (e *ConfigurationError) Error() string {
	return format(ErrConfiguration, e.Coordinate, e.Reason, e.Cause)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *ConfigurationError) Unwrap() []error { return unwrapPair(ErrConfiguration, e.Cause) }

func (e *ResolverUnavailableError) Error() string {
	return format(ErrResolverUnavailable, e.Coordinate, "", e.Cause)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *ResolverUnavailableError) Unwrap() []error {
	return unwrapPair(ErrResolverUnavailable, e.Cause)
}

func (e *ResolutionError) Error() string {
	return format(ErrResolution, e.Coordinate, "", e.Cause)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *ResolutionError) Unwrap() []error { return unwrapPair(ErrResolution, e.Cause) }

func (e *DownloadError) Error() string {
	reason := ""
	if len(e.Repositories) > 0 {
		reason = "tried " + strings.Join(e.Repositories, ", ")
	}
	return format(ErrDownload, e.Coordinate, reason, e.Cause)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *DownloadError) Unwrap() []error { return unwrapPair(ErrDownload, e.Cause) }

func (e *InjectionError) Error() string {
	reason := e.Reason
	if e.Strategy != "" {
		if reason != "" {
			reason = e.Strategy + ": " + reason
		} else {
			reason = e.Strategy
		}
	}
	return format(ErrInjection, e.Coordinate, reason, e.Cause)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *InjectionError) Unwrap() []error { return unwrapPair(ErrInjection, e.Cause) }

// Kind returns the taxonomy sentinel err belongs to, or nil when err is not one of
// the depload failure kinds.
func Kind(err error) error {
	for _, kind := range []error{
		ErrConfiguration,
		ErrResolverUnavailable,
		ErrResolution,
		ErrDownload,
		ErrInjection,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// format renders "<kind>: <coordinate>: <reason>: <cause>", skipping empty parts.
func format(kind error, coordinate, reason string, cause error) string {
	var sb strings.Builder
	sb.WriteString(kind.Error())
	for _, part := range []string{coordinate, reason} {
		if part != "" {
			sb.WriteString(": ")
			sb.WriteString(part)
		}
	}
	if cause != nil {
		sb.WriteString(": ")
		sb.WriteString(cause.Error())
	}
	return sb.String()
}

func unwrapPair(kind, cause error) []error {
	if cause == nil {
		return []error{kind}
	}
	return []error{kind, cause}
}
