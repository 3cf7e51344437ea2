// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/depload/pkg/coordinate"
	"github.com/invowk/depload/pkg/repository"
)

const (
	// SolverModeExec runs the solver as a child process.
	SolverModeExec SolverMode = "exec"
	// SolverModeInterp evaluates the solver's sources in an interpreter
	// namespace inside this process.
	SolverModeInterp SolverMode = "interp"

	// LogLevelDebug and the levels below map onto charmbracelet/log levels.
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultParallelism bounds concurrent artifact fetches.
	DefaultParallelism = 4
)

var (
	// ErrInvalidSolverMode is returned when a SolverMode value is not recognized.
	ErrInvalidSolverMode = errors.New("invalid solver mode")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	injectionStrategies = []string{"host-loader", "direct-append", "state-replacement"}
)

type (
	// SolverMode selects how the isolated solver runs.
	SolverMode string

	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// InvalidSolverModeError is returned when a SolverMode value is not recognized.
	InvalidSolverModeError struct {
		Value SolverMode
	}

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError aggregates field errors found after decoding.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// RepositoryEntry is one configured repository.
	RepositoryEntry struct {
		URL      string `json:"url" mapstructure:"url"`
		Priority int    `json:"priority,omitempty" mapstructure:"priority"`
	}

	// RelocationRule renames a package prefix inside fetched archives.
	// Defined locally to keep config free of the relocate package; the CLI
	// converts at the boundary.
	RelocationRule struct {
		From     string   `json:"from" mapstructure:"from"`
		To       string   `json:"to" mapstructure:"to"`
		Excludes []string `json:"excludes,omitempty" mapstructure:"excludes"`
	}

	// Config holds the application configuration.
	Config struct {
		// Repositories are added to the registry in order. Lower priority
		// values are consulted first.
		Repositories []RepositoryEntry `json:"repositories" mapstructure:"repositories"`
		// Dependencies are root coordinates loaded by `depload load` when no
		// coordinate is given on the command line.
		Dependencies []string `json:"dependencies" mapstructure:"dependencies"`
		// Provided lists coordinates the host already carries; their slots
		// are never fetched.
		Provided []string `json:"provided" mapstructure:"provided"`
		// Relocations rewrite fetched archives before injection.
		Relocations []RelocationRule `json:"relocations" mapstructure:"relocations"`
		// CacheDir holds downloaded artifacts. Empty means the user cache dir.
		CacheDir  string          `json:"cache_dir" mapstructure:"cache_dir"`
		Solver    SolverConfig    `json:"solver" mapstructure:"solver"`
		Injection InjectionConfig `json:"injection" mapstructure:"injection"`
		Fetch     FetchConfig     `json:"fetch" mapstructure:"fetch"`
		Log       LogConfig       `json:"log" mapstructure:"log"`
	}

	// SolverConfig locates the isolated solver.
	SolverConfig struct {
		Mode SolverMode `json:"mode" mapstructure:"mode"`
		// Path is a local solver artifact; when empty the pinned artifact is
		// downloaded from Repository.
		Path       string `json:"path" mapstructure:"path"`
		Repository string `json:"repository" mapstructure:"repository"`
	}

	// InjectionConfig restricts the injection strategies considered.
	InjectionConfig struct {
		Strategies []string `json:"strategies" mapstructure:"strategies"`
	}

	// FetchConfig tunes artifact downloads.
	FetchConfig struct {
		Parallelism     int  `json:"parallelism" mapstructure:"parallelism"`
		VerifyChecksums bool `json:"verify_checksums" mapstructure:"verify_checksums"`
	}

	// LogConfig sets the logging threshold.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Repositories: []RepositoryEntry{{URL: repository.MavenCentral.BaseURL}},
		Dependencies: []string{},
		Provided:     []string{},
		Relocations:  []RelocationRule{},
		CacheDir:     "", // resolved by ResolvedCacheDir
		Solver: SolverConfig{
			Mode: SolverModeInterp,
		},
		Injection: InjectionConfig{
			Strategies: []string{},
		},
		Fetch: FetchConfig{
			Parallelism:     DefaultParallelism,
			VerifyChecksums: true,
		},
		Log: LogConfig{
			Level: LogLevelWarn,
		},
	}
}

// ResolvedCacheDir returns CacheDir, or <user cache dir>/depload when unset.
func (c *Config) ResolvedCacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Sources converts the configured repositories into registry sources.
func (c *Config) Sources() ([]repository.Source, error) {
	out := make([]repository.Source, 0, len(c.Repositories))
	for _, r := range c.Repositories {
		s, err := repository.NewSource(r.URL, r.Priority)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Roots parses the configured dependencies.
func (c *Config) Roots() ([]coordinate.Coordinate, error) {
	return parseCoordinates(c.Dependencies)
}

// ProvidedCoordinates parses the configured host-provided coordinates.
func (c *Config) ProvidedCoordinates() ([]coordinate.Coordinate, error) {
	return parseCoordinates(c.Provided)
}

func parseCoordinates(specs []string) ([]coordinate.Coordinate, error) {
	out := make([]coordinate.Coordinate, 0, len(specs))
	for _, s := range specs {
		c, err := coordinate.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// IsValid returns whether the SolverMode is recognized.
func (m SolverMode) IsValid() (bool, []error) {
	switch m {
	case SolverModeExec, SolverModeInterp:
		return true, nil
	default:
		return false, []error{&InvalidSolverModeError{Value: m}}
	}
}

func (e *InvalidSolverModeError) Error() string {
	return fmt.Sprintf("invalid solver mode %q (valid: exec, interp)", e.Value)
}

// Unwrap returns ErrInvalidSolverMode for errors.Is() compatibility.
func (e *InvalidSolverModeError) Unwrap() error { return ErrInvalidSolverMode }

// IsValid returns whether the LogLevel is recognized.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// IsValid checks the constraints CUE cannot express, plus values that may
// have arrived through environment overrides and bypassed the schema.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if _, err := c.Sources(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Roots(); err != nil {
		errs = append(errs, fmt.Errorf("dependencies: %w", err))
	}
	if _, err := c.ProvidedCoordinates(); err != nil {
		errs = append(errs, fmt.Errorf("provided: %w", err))
	}
	if valid, fieldErrs := c.Solver.Mode.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, s := range c.Injection.Strategies {
		if !slices.Contains(injectionStrategies, s) {
			errs = append(errs, fmt.Errorf("injection.strategies: unknown strategy %q", s))
		}
	}
	if c.Fetch.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("fetch.parallelism: must be at least 1, got %d", c.Fetch.Parallelism))
	}
	if c.CacheDir != "" && strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, errors.New("cache_dir: must not be whitespace-only"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
