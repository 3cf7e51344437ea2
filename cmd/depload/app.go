// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/invowk/depload/internal/config"
	"github.com/invowk/depload/internal/fetch"
	"github.com/invowk/depload/internal/inject"
	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/internal/relocate"
	"github.com/invowk/depload/internal/resolver"
	"github.com/invowk/depload/pkg/coordinate"
	"github.com/invowk/depload/pkg/repository"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. Cobra handlers receive
	// it and build collaborators through it from the loaded configuration.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		opts   rootOptions
		cfg    *config.Config
		logger *log.Logger
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	rootOptions struct {
		verbose    bool
		configFile string
		configDir  string
		repos      []string
		cacheDir   string
	}
)

// NewApp builds an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		logger: log.New(io.Discard),
	}
}

// init loads configuration and sets up logging. Flags override the file.
func (a *App) init(ctx context.Context) error {
	if a.opts.configDir != "" {
		config.SetConfigDirOverride(a.opts.configDir)
	}

	cfg, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.opts.configFile,
		ConfigDirPath:  a.opts.configDir,
	})
	if err != nil {
		return a.fail(err)
	}
	if a.opts.cacheDir != "" {
		cfg.CacheDir = a.opts.cacheDir
	}
	a.cfg = cfg

	level := log.WarnLevel
	if parsed, parseErr := log.ParseLevel(string(cfg.Log.Level)); parseErr == nil {
		level = parsed
	}
	if a.opts.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "depload",
		Level:           level,
		ReportTimestamp: a.opts.verbose,
	})
	return nil
}

// registry builds the repository registry: configured repositories first,
// then --repo flags in the order given. Flag repositories take the highest
// configured priority so the stable sort keeps them last.
func (a *App) registry() (*repository.Registry, error) {
	sources, err := a.cfg.Sources()
	if err != nil {
		return nil, err
	}
	reg := repository.NewRegistry(sources...)
	last := 0
	for _, s := range sources {
		last = max(last, s.Priority)
	}
	for _, raw := range a.opts.repos {
		if err := reg.AddURL(raw, last); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (a *App) cacheDir() (string, error) {
	return a.cfg.ResolvedCacheDir()
}

func (a *App) fetcher() (*fetch.HTTPFetcher, error) {
	dir, err := a.cacheDir()
	if err != nil {
		return nil, err
	}
	return fetch.NewHTTPFetcher(filepath.Join(dir, "artifacts"),
		fetch.WithChecksums(a.cfg.Fetch.VerifyChecksums),
		fetch.WithUserAgent("depload/"+Version),
		fetch.WithLogger(a.logger.WithPrefix("fetch")),
	), nil
}

// bootstrapOptions describes the configured solver. The fetcher downloads
// the pinned solver artifact when no local path is configured.
func (a *App) bootstrapOptions(f fetch.ArtifactFetcher) (resolver.BootstrapOptions, error) {
	mode, err := resolver.ParseMode(string(a.cfg.Solver.Mode))
	if err != nil {
		return resolver.BootstrapOptions{}, err
	}
	dir, err := a.cacheDir()
	if err != nil {
		return resolver.BootstrapOptions{}, err
	}
	return resolver.BootstrapOptions{
		Mode:       mode,
		LocalPath:  a.cfg.Solver.Path,
		Repository: a.cfg.Solver.Repository,
		CacheDir:   filepath.Join(dir, "solver"),
		Fetcher:    f,
		Logger:     a.logger.WithPrefix("solver"),
	}, nil
}

// resolver returns a resolver whose solver is bootstrapped on first use, so
// commands that fail validation never download it.
func (a *App) resolver(reg *repository.Registry, f fetch.ArtifactFetcher, extraProvided ...string) (*resolver.Resolver, error) {
	opts, err := a.bootstrapOptions(f)
	if err != nil {
		return nil, err
	}
	provided, err := a.cfg.ProvidedCoordinates()
	if err != nil {
		return nil, err
	}
	for _, s := range extraProvided {
		c, err := coordinate.Parse(s)
		if err != nil {
			return nil, err
		}
		provided = append(provided, c)
	}

	solver := resolver.NewLazySolver(func(ctx context.Context) (resolver.Solver, error) {
		return resolver.Bootstrap(ctx, opts)
	})
	return resolver.New(reg, solver,
		resolver.WithHostProvided(provided...),
		resolver.WithLogger(a.logger.WithPrefix("resolver")),
	), nil
}

// injectionOrder parses the configured strategy restriction.
func (a *App) injectionOrder() ([]inject.Kind, error) {
	order := make([]inject.Kind, 0, len(a.cfg.Injection.Strategies))
	for _, s := range a.cfg.Injection.Strategies {
		k, err := inject.ParseKind(s)
		if err != nil {
			return nil, err
		}
		order = append(order, k)
	}
	return order, nil
}

// relocation returns the host's own relocation facility followed by the
// configured archive rules.
func (a *App) relocation(host any, extra ...config.RelocationRule) (relocate.Hook, error) {
	cfgRules := append(append([]config.RelocationRule{}, a.cfg.Relocations...), extra...)
	hooks := []relocate.Hook{relocate.Probe(host, a.logger.WithPrefix("relocate"))}
	if len(cfgRules) == 0 {
		return relocate.Chain(hooks...), nil
	}

	rules := make([]relocate.Rule, len(cfgRules))
	for i, r := range cfgRules {
		rules[i] = relocate.Rule{From: r.From, To: r.To, Excludes: r.Excludes}
	}
	ar, err := relocate.NewArchiveRelocator(a.logger.WithPrefix("relocate"), rules...)
	if err != nil {
		return nil, err
	}
	return relocate.Chain(append(hooks, ar.RemapArtifact)...), nil
}

// fail maps an error onto an exit code and, in verbose mode, prints the
// catalog explanation for its kind.
func (a *App) fail(err error) error {
	if err == nil {
		return nil
	}
	if a.opts.verbose {
		if entry := issue.ForKind(err); entry != nil {
			if rendered, renderErr := entry.Render("dark"); renderErr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
		var ae *issue.ActionableError
		if errors.As(err, &ae) && ae.HasSuggestions() {
			fmt.Fprintln(a.stderr, ae.Format(true))
		}
	}

	code := 1
	switch {
	case errors.Is(err, issue.ErrConfiguration):
		code = exitConfiguration
	case errors.Is(err, issue.ErrResolverUnavailable):
		code = exitUnavailable
	}
	return &ExitError{Code: code, Err: err}
}
