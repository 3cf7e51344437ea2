// SPDX-License-Identifier: MPL-2.0

// Package loader drives the whole load sequence for a host: resolve a root
// coordinate, fetch it and its closure, relocate each artifact and inject
// the batch with a single flush.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/invowk/depload/internal/fetch"
	"github.com/invowk/depload/internal/inject"
	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/internal/relocate"
	"github.com/invowk/depload/internal/resolver"
	"github.com/invowk/depload/pkg/coordinate"
	"github.com/invowk/depload/pkg/repository"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds concurrent fetches per root.
const DefaultParallelism = 4

type (
	// Manager loads dependency closures into one host.
	Manager struct {
		registry    *repository.Registry
		resolver    *resolver.Resolver
		fetcher     fetch.ArtifactFetcher
		chain       *inject.Chain
		relocate    relocate.Hook
		parallelism int
		metrics     *Metrics
		logger      *log.Logger

		mu     sync.Mutex
		loaded map[coordinate.Slot]coordinate.Coordinate
	}

	// Option configures a Manager.
	Option func(*Manager)

	// Report describes one root that was loaded.
	Report struct {
		Root      coordinate.Coordinate
		Strategy  inject.Kind
		Artifacts []resolver.ResolvedArtifact
		Skipped   []coordinate.Coordinate
	}
)

// WithRelocation sets the hook applied to each artifact before staging.
// The default is relocate.Identity.
func WithRelocation(h relocate.Hook) Option {
	return func(m *Manager) {
		if h != nil {
			m.relocate = h
		}
	}
}

// WithParallelism bounds concurrent fetches per root. Values below one
// keep the default.
func WithParallelism(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// WithMetrics records activity on m.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New returns a Manager. The injection chain is probed immediately so a host
// that cannot receive artifacts is reported before anything is resolved.
func New(registry *repository.Registry, res *resolver.Resolver, fetcher fetch.ArtifactFetcher, chain *inject.Chain, opts ...Option) (*Manager, error) {
	m := &Manager{
		registry:    registry,
		resolver:    res,
		fetcher:     fetcher,
		chain:       chain,
		relocate:    relocate.Identity,
		parallelism: DefaultParallelism,
		logger:      log.New(io.Discard),
		loaded:      make(map[coordinate.Slot]coordinate.Coordinate),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	if _, err := chain.Probe(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load loads each root and its closure. Roots are independent: a failing
// root does not stop the others. The returned error joins one error per
// failed root, each naming that root.
func (m *Manager) Load(ctx context.Context, roots ...coordinate.Coordinate) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, root := range roots {
		rep, err := m.loadRoot(ctx, root)
		if err != nil {
			m.logger.Error("load failed", "root", root.String(), "err", err)
			errs = append(errs, fmt.Errorf("load %s: %w", root.String(), err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// Loaded returns the coordinates injected so far, in canonical order.
func (m *Manager) Loaded() []coordinate.Coordinate {
	m.mu.Lock()
	out := make([]coordinate.Coordinate, 0, len(m.loaded))
	for _, c := range m.loaded {
		out = append(out, c)
	}
	m.mu.Unlock()
	slices.SortFunc(out, coordinate.Compare)
	return out
}

func (m *Manager) loadRoot(ctx context.Context, root coordinate.Coordinate) (Report, error) {
	closure, err := m.resolver.Transitive(ctx, root)
	if err != nil {
		m.metrics.Resolutions.WithLabelValues(OutcomeFailure).Inc()
		return Report{}, err
	}
	m.metrics.Resolutions.WithLabelValues(OutcomeSuccess).Inc()

	rep := Report{Root: root}
	pending := m.pending(append([]resolver.ResolvedArtifact{{Coordinate: root}}, closure...), &rep)
	if len(pending) == 0 {
		m.logger.Info("already loaded", "root", root.String())
		return rep, nil
	}

	if err := m.fetchAll(ctx, pending); err != nil {
		return Report{}, err
	}

	strategy, err := m.chain.Begin()
	if err != nil {
		return Report{}, err
	}
	for _, a := range pending {
		if err := strategy.AddArtifact(a.LocalPath); err != nil {
			return Report{}, err
		}
	}
	if err := strategy.Flush(); err != nil {
		return Report{}, err
	}

	m.mu.Lock()
	for _, a := range pending {
		if _, ok := m.loaded[a.Coordinate.Slot()]; !ok {
			m.loaded[a.Coordinate.Slot()] = a.Coordinate
		}
	}
	m.mu.Unlock()

	m.metrics.Injected.WithLabelValues(string(strategy.Kind())).Add(float64(len(pending)))
	m.logger.Info("loaded", "root", root.String(), "artifacts", len(pending), "strategy", strategy.Kind())
	rep.Strategy = strategy.Kind()
	rep.Artifacts = pending
	return rep, nil
}

// pending drops artifacts whose slot a previous load already injected.
func (m *Manager) pending(all []resolver.ResolvedArtifact, rep *Report) []resolver.ResolvedArtifact {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]resolver.ResolvedArtifact, 0, len(all))
	for _, a := range all {
		if _, ok := m.loaded[a.Coordinate.Slot()]; ok {
			rep.Skipped = append(rep.Skipped, a.Coordinate)
			continue
		}
		out = append(out, a)
	}
	return out
}

// fetchAll fetches and relocates every artifact in place. The first failure
// cancels the rest.
func (m *Manager) fetchAll(ctx context.Context, artifacts []resolver.ResolvedArtifact) error {
	sources := m.registry.Sources()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)

	for i := range artifacts {
		g.Go(func() error {
			c := artifacts[i].Coordinate
			start := time.Now()
			path, err := m.fetcher.Fetch(gctx, c, sources)
			m.metrics.FetchDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				return err
			}
			relocated, err := m.relocate(path)
			if err != nil {
				return &issue.InjectionError{Coordinate: c.String(), Reason: "relocate", Cause: err}
			}
			m.logger.Debug("fetched", "artifact", c.String(), "path", relocated)
			artifacts[i] = artifacts[i].WithLocalPath(relocated)
			return nil
		})
	}
	return g.Wait()
}
