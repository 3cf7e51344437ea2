// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/invowk/depload/internal/cueutil"
	"github.com/invowk/depload/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "depload"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. DEPLOAD_SOLVER_MODE.
	EnvPrefix = "DEPLOAD"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the depload configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading and reports the file
// that was used, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'depload config init' to create a default configuration").
				Wrap(&issue.ConfigurationError{Reason: "config file not found: " + opts.ConfigFilePath}).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", cueLoadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		for _, candidate := range []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		} {
			if !fileExists(candidate) {
				continue
			}
			if err := loadCUEIntoViper(v, candidate); err != nil {
				return nil, "", cueLoadError(candidate, err)
			}
			resolvedPath = candidate
			break
		}
		// No config file: defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", &issue.ConfigurationError{Reason: "failed to parse config", Cause: err}
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Coordinates use the form group:artifact:version[:classifier]").
			WithSuggestion("Check DEPLOAD_* environment variables for stale values").
			Wrap(&issue.ConfigurationError{Reason: "configuration rejected", Cause: errors.Join(errs...)}).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("repositories", defaults.Repositories)
	v.SetDefault("dependencies", defaults.Dependencies)
	v.SetDefault("provided", defaults.Provided)
	v.SetDefault("relocations", defaults.Relocations)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("solver.mode", defaults.Solver.Mode)
	v.SetDefault("solver.path", defaults.Solver.Path)
	v.SetDefault("solver.repository", defaults.Solver.Repository)
	v.SetDefault("injection.strategies", defaults.Injection.Strategies)
	v.SetDefault("fetch.parallelism", defaults.Fetch.Parallelism)
	v.SetDefault("fetch.verify_checksums", defaults.Fetch.VerifyChecksums)
	v.SetDefault("log.level", defaults.Log.Level)
}

func cueLoadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("Run 'depload config show' to see the effective configuration").
		Wrap(&issue.ConfigurationError{Reason: "invalid config file", Cause: err}).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// viper. Fields are optional, so values need not be concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap([]byte(configSchema), data, "#Config", path)
	if err != nil {
		return err
	}

	// Merge preserves defaults and keeps env overrides on top.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file unless one exists and
// returns its path.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a config file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// depload configuration\n\n")

	sb.WriteString("repositories: [\n")
	for _, r := range cfg.Repositories {
		if r.Priority != 0 {
			fmt.Fprintf(&sb, "\t{url: %q, priority: %d},\n", r.URL, r.Priority)
		} else {
			fmt.Fprintf(&sb, "\t{url: %q},\n", r.URL)
		}
	}
	sb.WriteString("]\n")

	writeList(&sb, "dependencies", cfg.Dependencies)
	writeList(&sb, "provided", cfg.Provided)

	if len(cfg.Relocations) > 0 {
		sb.WriteString("\nrelocations: [\n")
		for _, r := range cfg.Relocations {
			fmt.Fprintf(&sb, "\t{from: %q, to: %q", r.From, r.To)
			if len(r.Excludes) > 0 {
				sb.WriteString(", excludes: [")
				for i, e := range r.Excludes {
					if i > 0 {
						sb.WriteString(", ")
					}
					fmt.Fprintf(&sb, "%q", e)
				}
				sb.WriteString("]")
			}
			sb.WriteString("},\n")
		}
		sb.WriteString("]\n")
	}

	if cfg.CacheDir != "" {
		fmt.Fprintf(&sb, "\ncache_dir: %q\n", cfg.CacheDir)
	}

	sb.WriteString("\nsolver: {\n")
	fmt.Fprintf(&sb, "\tmode: %q\n", cfg.Solver.Mode)
	if cfg.Solver.Path != "" {
		fmt.Fprintf(&sb, "\tpath: %q\n", cfg.Solver.Path)
	}
	if cfg.Solver.Repository != "" {
		fmt.Fprintf(&sb, "\trepository: %q\n", cfg.Solver.Repository)
	}
	sb.WriteString("}\n")

	if len(cfg.Injection.Strategies) > 0 {
		sb.WriteString("\ninjection: {\n")
		writeInlineList(&sb, "\tstrategies", cfg.Injection.Strategies)
		sb.WriteString("}\n")
	}

	sb.WriteString("\nfetch: {\n")
	fmt.Fprintf(&sb, "\tparallelism: %d\n", cfg.Fetch.Parallelism)
	fmt.Fprintf(&sb, "\tverify_checksums: %v\n", cfg.Fetch.VerifyChecksums)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, name string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s: [\n", name)
	for _, it := range items {
		fmt.Fprintf(sb, "\t%q,\n", it)
	}
	sb.WriteString("]\n")
}

func writeInlineList(sb *strings.Builder, name string, items []string) {
	fmt.Fprintf(sb, "%s: [", name)
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%q", it)
	}
	sb.WriteString("]\n")
}
