// SPDX-License-Identifier: MPL-2.0

// Package repository holds the ordered set of artifact repositories consulted
// during resolution and download. Order is significant: it is the fallback
// precedence for both.
package repository

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/invowk/depload/internal/issue"
)

// Well-known repositories.
var (
	MavenCentral = Source{BaseURL: "https://repo.maven.apache.org/maven2/"}
	JitPack      = Source{BaseURL: "https://jitpack.io/"}
	Sonatype     = Source{BaseURL: "https://oss.sonatype.org/content/groups/public/"}
	PaperMC      = Source{BaseURL: "https://repo.papermc.io/repository/maven-public/"}
)

type (
	// Source is one repository. Lower Priority values are consulted first;
	// equal priorities keep registration order.
	Source struct {
		BaseURL  string
		Priority int
	}

	// Registry is an ordered, concurrency-safe collection of sources.
	Registry struct {
		mu      sync.RWMutex
		sources []Source
	}
)

var defaultRegistry = &Registry{}

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// NewRegistry returns a registry seeded with sources in order.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: slices.Clone(sources)}
}

// NewSource validates rawURL and returns a Source with a trailing slash.
// Supported schemes are http, https and file.
func NewSource(rawURL string, priority int) (Source, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Source{}, &issue.ConfigurationError{Reason: "repository url is empty"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return Source{}, &issue.ConfigurationError{Reason: "invalid repository url " + trimmed, Cause: err}
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return Source{}, &issue.ConfigurationError{Reason: "repository url has no host: " + trimmed}
		}
	case "file":
	default:
		return Source{}, &issue.ConfigurationError{
			Reason: fmt.Sprintf("repository url %s: unsupported scheme %q", trimmed, u.Scheme),
		}
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	return Source{BaseURL: trimmed, Priority: priority}, nil
}

func (s Source) String() string { return s.BaseURL }

// Add appends s unless a source with the same URL is already registered.
// It reports whether s was added.
func (r *Registry) Add(s Source) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sources {
		if existing.BaseURL == s.BaseURL {
			return false
		}
	}
	r.sources = append(r.sources, s)
	return true
}

// AddURL validates rawURL and registers it with priority.
func (r *Registry) AddURL(rawURL string, priority int) error {
	s, err := NewSource(rawURL, priority)
	if err != nil {
		return err
	}
	r.Add(s)
	return nil
}

// Sources returns the registered sources in precedence order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	out := slices.Clone(r.sources)
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Source) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}

// URLs returns the base URLs in precedence order.
func (r *Registry) URLs() []string {
	sources := r.Sources()
	urls := make([]string, len(sources))
	for i, s := range sources {
		urls[i] = s.BaseURL
	}
	return urls
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// Reset removes every source. Intended for tests and reconfiguration.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.sources = nil
	r.mu.Unlock()
}

// RequireNonEmpty fails with a ConfigurationError when no source is registered.
// Resolving against zero repositories is a configuration mistake.
func (r *Registry) RequireNonEmpty() error {
	if r.Len() == 0 {
		return &issue.ConfigurationError{Reason: "no repositories have been added before resolving dependencies"}
	}
	return nil
}
