// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/invowk/depload/internal/cueutil"
	"github.com/invowk/depload/internal/issue"
)

//go:embed manifest_schema.cue
var manifestSchema []byte

// Manifest is a host's declaration of the libraries it loads at start.
type Manifest struct {
	Name         string            `json:"name"`
	Repositories []RepositoryEntry `json:"repositories,omitempty"`
	Dependencies []string          `json:"dependencies"`
	Provided     []string          `json:"provided,omitempty"`
	Relocations  []RelocationRule  `json:"relocations,omitempty"`
}

// LoadManifest parses and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &issue.ConfigurationError{Reason: "read manifest", Cause: err}
	}
	result, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Manifest", cueutil.WithFilename(path))
	if err != nil {
		return nil, &issue.ConfigurationError{Reason: "invalid manifest", Cause: err}
	}
	return result.Value, nil
}

// Apply layers the manifest over cfg: manifest repositories come after the
// configured ones, and its dependencies replace the configured roots.
// Duplicate entries are dropped.
func (m *Manifest) Apply(cfg *Config) *Config {
	out := *cfg
	out.Repositories = slices.Clone(cfg.Repositories)
	for _, r := range m.Repositories {
		if !slices.ContainsFunc(out.Repositories, func(e RepositoryEntry) bool { return e.URL == r.URL }) {
			out.Repositories = append(out.Repositories, r)
		}
	}
	out.Dependencies = slices.Clone(m.Dependencies)
	out.Provided = appendUnique(slices.Clone(cfg.Provided), m.Provided...)
	out.Relocations = append(slices.Clone(cfg.Relocations), m.Relocations...)
	return &out
}

// String names the manifest for logs.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s (%d dependencies)", m.Name, len(m.Dependencies))
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}
