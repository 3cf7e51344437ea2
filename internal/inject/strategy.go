// SPDX-License-Identifier: MPL-2.0

package inject

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/invowk/depload/internal/hostprobe"
	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/classpath"
)

// Strategy variants, in default priority order.
const (
	KindHostLoader       Kind = "host-loader"
	KindDirectAppend     Kind = "direct-append"
	KindStateReplacement Kind = "state-replacement"
)

type (
	// Kind tags a strategy variant.
	Kind string

	// PathAppender is a host whose search path can be extended in place.
	PathAppender interface {
		AppendPath(path string) error
	}

	// LibraryLoader is a host-internal batch loading facility. Staged
	// libraries become visible only on CommitLibraries.
	LibraryLoader interface {
		StageLibrary(path string) error
		CommitLibraries() error
	}

	// LibraryDiscarder is implemented by LibraryLoader facilities that can
	// drop everything staged since the last commit.
	LibraryDiscarder interface {
		DiscardLibraries() error
	}

	// Strategy stages artifacts for one request and commits them to the
	// host. Flush is idempotent: with nothing staged it does nothing.
	Strategy interface {
		Kind() Kind
		AddArtifact(path string) error
		Flush() error
	}

	// binding is a successful probe: the host internals a variant needs.
	binding interface {
		kind() Kind
		begin(commit *sync.Mutex) Strategy
	}

	variant struct {
		kind  Kind
		probe func(target any) (binding, bool)
	}

	hostLoaderBinding struct{ loader LibraryLoader }

	appendBinding struct{ appender PathAppender }

	replaceBinding struct {
		slot *atomic.Pointer[classpath.SearchPath]
	}

	hostLoaderStrategy struct {
		loader LibraryLoader
		commit *sync.Mutex
		staged []string
	}

	appendStrategy struct {
		appender PathAppender
	}

	replaceStrategy struct {
		slot   *atomic.Pointer[classpath.SearchPath]
		commit *sync.Mutex
		staged []string
	}
)

// variants is the fixed probe table. Order is priority: most host-aware first.
var variants = []variant{
	{KindHostLoader, probeHostLoader},
	{KindDirectAppend, probeDirectAppend},
	{KindStateReplacement, probeStateReplacement},
}

// DefaultOrder returns the default priority order.
func DefaultOrder() []Kind {
	order := make([]Kind, len(variants))
	for i, v := range variants {
		order[i] = v.kind
	}
	return order
}

// ParseKind validates a configured strategy name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !slices.Contains(DefaultOrder(), k) {
		return "", &issue.ConfigurationError{Reason: fmt.Sprintf("unknown injection strategy %q", s)}
	}
	return k, nil
}

func probeHostLoader(target any) (binding, bool) {
	l, ok := hostprobe.Implementing[LibraryLoader](target)
	if !ok {
		return nil, false
	}
	return hostLoaderBinding{loader: l}, true
}

func probeDirectAppend(target any) (binding, bool) {
	a, ok := target.(PathAppender)
	if !ok || a == nil {
		return nil, false
	}
	return appendBinding{appender: a}, true
}

func probeStateReplacement(target any) (binding, bool) {
	slot, ok := hostprobe.Slot[atomic.Pointer[classpath.SearchPath]](target)
	if !ok {
		return nil, false
	}
	return replaceBinding{slot: slot}, true
}

func (hostLoaderBinding) kind() Kind { return KindHostLoader }
func (appendBinding) kind() Kind     { return KindDirectAppend }
func (replaceBinding) kind() Kind    { return KindStateReplacement }

func (b hostLoaderBinding) begin(commit *sync.Mutex) Strategy {
	return &hostLoaderStrategy{loader: b.loader, commit: commit}
}

func (b appendBinding) begin(*sync.Mutex) Strategy {
	return &appendStrategy{appender: b.appender}
}

func (b replaceBinding) begin(commit *sync.Mutex) Strategy {
	return &replaceStrategy{slot: b.slot, commit: commit}
}

func (s *hostLoaderStrategy) Kind() Kind { return KindHostLoader }

// AddArtifact buffers path; the host facility sees it on Flush.
func (s *hostLoaderStrategy) AddArtifact(path string) error {
	s.staged = append(s.staged, path)
	return nil
}

// Flush forwards the batch into the host facility and commits it. When a
// path is rejected the paths staged before it are discarded, so a later
// commit cannot publish part of a failed batch.
func (s *hostLoaderStrategy) Flush() error {
	if len(s.staged) == 0 {
		return nil
	}
	batch := s.staged
	s.staged = nil

	s.commit.Lock()
	defer s.commit.Unlock()
	for i, p := range batch {
		if err := s.loader.StageLibrary(p); err != nil {
			ie := &issue.InjectionError{Coordinate: p, Strategy: string(KindHostLoader), Reason: "stage library", Cause: err}
			if i == 0 {
				return ie
			}
			d, ok := s.loader.(LibraryDiscarder)
			if !ok {
				ie.Reason = "stage library; host cannot discard the partial batch"
				return ie
			}
			if dErr := d.DiscardLibraries(); dErr != nil {
				ie.Cause = errors.Join(err, fmt.Errorf("discard partial batch: %w", dErr))
			}
			return ie
		}
	}
	if err := s.loader.CommitLibraries(); err != nil {
		return &issue.InjectionError{Strategy: string(KindHostLoader), Reason: "commit libraries", Cause: err}
	}
	return nil
}

func (s *appendStrategy) Kind() Kind { return KindDirectAppend }

// AddArtifact appends path to the host immediately.
func (s *appendStrategy) AddArtifact(path string) error {
	if err := s.appender.AppendPath(path); err != nil {
		return &issue.InjectionError{Coordinate: path, Strategy: string(KindDirectAppend), Reason: "append path", Cause: err}
	}
	return nil
}

// Flush is a no-op: appends are already live.
func (s *appendStrategy) Flush() error { return nil }

func (s *replaceStrategy) Kind() Kind { return KindStateReplacement }

// AddArtifact buffers path.
func (s *replaceStrategy) AddArtifact(path string) error {
	s.staged = append(s.staged, path)
	return nil
}

// Flush swaps in a new search path holding the current entries followed by
// the staged ones. Readers of the slot observe either the old or the new
// path, never a mix.
func (s *replaceStrategy) Flush() error {
	if len(s.staged) == 0 {
		return nil
	}
	batch := s.staged
	s.staged = nil

	s.commit.Lock()
	defer s.commit.Unlock()
	for {
		current := s.slot.Load()
		next := current.Union(batch...)
		if next.Len() == current.Len() {
			return nil
		}
		if s.slot.CompareAndSwap(current, next) {
			return nil
		}
	}
}
