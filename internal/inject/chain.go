// SPDX-License-Identifier: MPL-2.0

// Package inject makes downloaded artifacts reachable by a running host. It
// probes the host once for one of a fixed set of capabilities (a batch
// library loader, an appendable search path, or a swappable search path
// slot) and uses the first that is present for the rest of the process.
package inject

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/invowk/depload/internal/issue"

	"github.com/charmbracelet/log"
)

var errNoStrategy = errors.New("no injection strategy matches the host")

type (
	// Chain selects and memoizes the injection strategy for one host.
	Chain struct {
		target any
		order  []Kind
		logger *log.Logger

		probeMu  sync.Mutex
		probed   bool
		selected binding
		probeErr error

		commitMu sync.Mutex
	}

	// Option configures a Chain.
	Option func(*Chain)
)

// WithOrder restricts and reorders the variants considered. Unknown kinds
// are ignored; an empty order keeps the default.
func WithOrder(kinds ...Kind) Option {
	return func(c *Chain) {
		if len(kinds) > 0 {
			c.order = kinds
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// NewChain returns a chain for target. Probing is deferred to the first
// Probe or Begin.
func NewChain(target any, opts ...Option) *Chain {
	c := &Chain{
		target: target,
		order:  DefaultOrder(),
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe selects the strategy on first call and returns the same answer on
// every later call. Concurrent first calls probe once.
func (c *Chain) Probe() (Kind, error) {
	c.probeMu.Lock()
	defer c.probeMu.Unlock()

	if !c.probed {
		c.probed = true
		c.selected, c.probeErr = c.probe()
	}
	if c.probeErr != nil {
		return "", c.probeErr
	}
	return c.selected.kind(), nil
}

func (c *Chain) probe() (binding, error) {
	var tried []string
	for _, kind := range c.order {
		for _, v := range variants {
			if v.kind != kind {
				continue
			}
			tried = append(tried, string(kind))
			if b, ok := v.probe(c.target); ok {
				c.logger.Debug("injection strategy selected", "strategy", kind, "host", fmt.Sprintf("%T", c.target))
				return b, nil
			}
			c.logger.Debug("injection strategy not applicable", "strategy", kind)
		}
	}
	return nil, &issue.InjectionError{
		Reason: fmt.Sprintf("host %T supports none of [%s]", c.target, strings.Join(tried, ", ")),
		Cause:  errNoStrategy,
	}
}

// Begin returns a fresh Strategy for one request. Requests stage
// independently; their Flush calls are serialized by the chain.
func (c *Chain) Begin() (Strategy, error) {
	if _, err := c.Probe(); err != nil {
		return nil, err
	}
	return c.selected.begin(&c.commitMu), nil
}
