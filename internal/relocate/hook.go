// SPDX-License-Identifier: MPL-2.0

// Package relocate rewrites downloaded artifacts before they reach the host.
// Some hosts ship their own renamed copies of common libraries; artifacts
// destined for such a host must be renamed the same way so the two copies do
// not shadow each other.
package relocate

import (
	"fmt"
	"io"
	"sync"

	"github.com/invowk/depload/internal/hostprobe"

	"github.com/charmbracelet/log"
)

type (
	// Hook transforms an artifact path into the path that should be injected.
	Hook func(path string) (string, error)

	// Remapper is a host's relocation facility.
	Remapper interface {
		RemapArtifact(path string) (string, error)
	}
)

// Identity returns path unchanged.
func Identity(path string) (string, error) { return path, nil }

// Lookup finds target's relocation facility: target itself when it is a
// Remapper, otherwise the first non-nil internal field that is one.
func Lookup(target any) (Remapper, bool) {
	if target == nil {
		return nil, false
	}
	if r, ok := target.(Remapper); ok {
		return r, true
	}
	return hostprobe.Implementing[Remapper](target)
}

// Probe returns a Hook bound to target's relocation facility. The lookup
// runs on the first call and its answer is reused for the life of the hook;
// a host without a facility gets Identity.
func Probe(target any, logger *log.Logger) Hook {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var (
		once  sync.Once
		remap Hook
	)
	return func(path string) (string, error) {
		once.Do(func() {
			r, ok := Lookup(target)
			if !ok {
				logger.Debug("host has no relocation facility", "host", fmt.Sprintf("%T", target))
				remap = Identity
				return
			}
			logger.Debug("relocation facility found", "facility", fmt.Sprintf("%T", r))
			remap = r.RemapArtifact
		})
		return remap(path)
	}
}

// Chain composes hooks left to right. Nil hooks are skipped; the first error
// stops the chain.
func Chain(hooks ...Hook) Hook {
	var live []Hook
	for _, h := range hooks {
		if h != nil {
			live = append(live, h)
		}
	}
	if len(live) == 0 {
		return Identity
	}
	return func(path string) (string, error) {
		var err error
		for _, h := range live {
			if path, err = h(path); err != nil {
				return "", err
			}
		}
		return path, nil
	}
}
