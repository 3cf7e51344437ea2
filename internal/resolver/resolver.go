// SPDX-License-Identifier: MPL-2.0

// Package resolver computes the set of artifacts a root coordinate
// transitively depends on. The graph walk itself is delegated to a Solver that
// runs isolated from the host; this package only shapes its answer: base
// versions, self-exclusion, host-provided exclusion and first-wins
// deduplication.
package resolver

import (
	"context"
	"errors"
	"io"

	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/coordinate"
	"github.com/invowk/depload/pkg/mavensolver"
	"github.com/invowk/depload/pkg/repository"

	"github.com/charmbracelet/log"
)

type (
	// Request is the solver's narrow entry point input.
	Request struct {
		GroupID      string
		ArtifactID   string
		Version      string
		Classifier   string
		Repositories []string
	}

	// SolvedArtifact is one entry of a solver's answer, root included.
	SolvedArtifact = mavensolver.Result

	// Solver computes a transitive closure in an isolated context. An error
	// means the whole answer is void.
	Solver interface {
		Solve(ctx context.Context, req Request) ([]SolvedArtifact, error)
	}

	// ResolvedArtifact is a dependency the host must load. Origin is the
	// repository the solver found it in, if known; LocalPath is empty until
	// the artifact has been fetched.
	ResolvedArtifact struct {
		Coordinate coordinate.Coordinate
		Origin     string
		LocalPath  string
	}

	// Resolver shapes solver answers for one registry.
	Resolver struct {
		registry *repository.Registry
		solver   Solver
		provided map[coordinate.Slot]bool
		logger   *log.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// WithHostProvided excludes slots the host already satisfies.
func WithHostProvided(coords ...coordinate.Coordinate) Option {
	return func(r *Resolver) {
		for _, c := range coords {
			r.provided[c.Slot()] = true
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New returns a Resolver over registry using solver.
func New(registry *repository.Registry, solver Solver, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		solver:   solver,
		provided: make(map[coordinate.Slot]bool),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithLocalPath returns a copy of a with LocalPath set.
func (a ResolvedArtifact) WithLocalPath(path string) ResolvedArtifact {
	a.LocalPath = path
	return a
}

// Transitive returns what root depends on, excluding root itself and
// host-provided slots, deduplicated by slot with the first occurrence kept.
// Order is the solver's discovery order.
func (r *Resolver) Transitive(ctx context.Context, root coordinate.Coordinate) ([]ResolvedArtifact, error) {
	if err := r.registry.RequireNonEmpty(); err != nil {
		var ce *issue.ConfigurationError
		if errors.As(err, &ce) && ce.Coordinate == "" {
			ce.Coordinate = root.String()
		}
		return nil, err
	}

	req := Request{
		GroupID:      root.GroupID(),
		ArtifactID:   root.ArtifactID(),
		Version:      root.Version(),
		Classifier:   root.Classifier(),
		Repositories: r.registry.URLs(),
	}
	r.logger.Debug("solving", "root", root.String(), "repositories", len(req.Repositories))

	solved, err := r.solver.Solve(ctx, req)
	if err != nil {
		if errors.Is(err, issue.ErrResolverUnavailable) {
			return nil, err
		}
		return nil, &issue.ResolutionError{Coordinate: root.String(), Cause: err}
	}

	seen := coordinate.NewSet()
	out := make([]ResolvedArtifact, 0, len(solved))
	for _, s := range solved {
		c, err := toCoordinate(s)
		if err != nil {
			return nil, &issue.ResolutionError{Coordinate: root.String(), Cause: err}
		}
		if c.SameSlot(root) || r.provided[c.Slot()] {
			continue
		}
		if !seen.Add(c) {
			continue
		}
		out = append(out, ResolvedArtifact{Coordinate: c, Origin: s.Repository})
	}
	r.logger.Debug("solved", "root", root.String(), "artifacts", len(out))
	return out, nil
}

// toCoordinate builds the dependency identity from the base version; the
// literal (possibly timestamped) version is never used as identity.
func toCoordinate(s SolvedArtifact) (coordinate.Coordinate, error) {
	version := s.BaseVersion
	if version == "" {
		version = s.Version
	}
	opts := []coordinate.Option{coordinate.WithClassifier(s.Classifier)}
	if s.Extension != "" {
		opts = append(opts, coordinate.WithExtension(s.Extension))
	}
	if s.Repository != "" {
		opts = append(opts, coordinate.WithRepositories(s.Repository))
	}
	return coordinate.New(s.GroupID, s.ArtifactID, version, opts...)
}
