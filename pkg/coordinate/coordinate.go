// SPDX-License-Identifier: MPL-2.0

// Package coordinate defines the immutable identity of a dependency: its Maven
// group, artifact, version and optional classifier, plus the repositories that
// should be consulted for it.
package coordinate

import (
	"cmp"
	"slices"
	"strings"

	"github.com/invowk/depload/internal/issue"
)

const (
	// DefaultExtension is the packaging used when none is given.
	DefaultExtension = "jar"

	snapshotSuffix = "-SNAPSHOT"
)

type (
	// Coordinate identifies a dependency. The zero value is not valid; build one
	// with New or Parse. Coordinates are immutable: accessors return copies.
	Coordinate struct {
		groupID     string
		artifactID  string
		version     string
		classifier  string
		baseVersion string
		extension   string

		repositories         []string
		fallbackRepositories []string
	}

	// Slot is the deduplication key of a coordinate. Two coordinates with the
	// same group and artifact occupy the same slot regardless of version.
	Slot struct {
		GroupID    string
		ArtifactID string
	}

	// Option configures optional Coordinate fields.
	Option func(*Coordinate)
)

// WithClassifier sets the classifier (e.g. "sources", "linux-amd64").
func WithClassifier(classifier string) Option {
	return func(c *Coordinate) { c.classifier = classifier }
}

// WithBaseVersion sets the stable version identity for snapshot builds whose
// literal version carries timestamp metadata.
func WithBaseVersion(baseVersion string) Option {
	return func(c *Coordinate) { c.baseVersion = baseVersion }
}

// WithExtension overrides the packaging extension ("jar" by default).
func WithExtension(ext string) Option {
	return func(c *Coordinate) { c.extension = strings.TrimPrefix(ext, ".") }
}

// WithRepositories sets the repositories tried first for this coordinate.
func WithRepositories(urls ...string) Option {
	return func(c *Coordinate) { c.repositories = slices.Clone(urls) }
}

// WithFallbackRepositories sets repositories tried after every other source.
func WithFallbackRepositories(urls ...string) Option {
	return func(c *Coordinate) { c.fallbackRepositories = slices.Clone(urls) }
}

// New builds a Coordinate. Group, artifact and version are required.
func New(groupID, artifactID, version string, opts ...Option) (Coordinate, error) {
	c := Coordinate{
		groupID:    strings.TrimSpace(groupID),
		artifactID: strings.TrimSpace(artifactID),
		version:    strings.TrimSpace(version),
		extension:  DefaultExtension,
	}
	for _, opt := range opts {
		opt(&c)
	}

	var missing []string
	if c.groupID == "" {
		missing = append(missing, "groupId")
	}
	if c.artifactID == "" {
		missing = append(missing, "artifactId")
	}
	if c.version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return Coordinate{}, &issue.ConfigurationError{
			Coordinate: c.String(),
			Reason:     "missing " + strings.Join(missing, ", "),
		}
	}
	if c.extension == "" {
		c.extension = DefaultExtension
	}
	return c, nil
}

// MustNew is New for package-level constants; it panics on invalid input.
func MustNew(groupID, artifactID, version string, opts ...Option) Coordinate {
	c, err := New(groupID, artifactID, version, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads the canonical "group:artifact:version[:classifier]" form.
func Parse(s string, opts ...Option) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, &issue.ConfigurationError{
			Coordinate: s,
			Reason:     "expected group:artifact:version[:classifier]",
		}
	}
	if len(parts) == 4 && parts[3] != "" {
		opts = append([]Option{WithClassifier(parts[3])}, opts...)
	}
	return New(parts[0], parts[1], parts[2], opts...)
}

// GroupID returns the Maven group, e.g. "org.example".
func (c Coordinate) GroupID() string { return c.groupID }

// ArtifactID returns the artifact name within the group.
func (c Coordinate) ArtifactID() string { return c.artifactID }

// Version returns the exact version, which for a resolved snapshot is the
// timestamped build.
func (c Coordinate) Version() string { return c.version }

// Classifier returns the classifier, or "" for the main artifact.
func (c Coordinate) Classifier() string { return c.classifier }

// BaseVersion returns the declared version a snapshot build belongs to, or
// "" when none was set. See BaseVersionOrVersion.
func (c Coordinate) BaseVersion() string { return c.baseVersion }

// Extension returns the packaging extension without a leading dot.
func (c Coordinate) Extension() string {
	if c.extension == "" {
		return DefaultExtension
	}
	return c.extension
}

// Repositories returns a copy of the coordinate-specific repositories.
func (c Coordinate) Repositories() []string { return slices.Clone(c.repositories) }

// FallbackRepositories returns a copy of the coordinate-specific fallbacks.
func (c Coordinate) FallbackRepositories() []string {
	return slices.Clone(c.fallbackRepositories)
}

// IsZero reports whether c was never constructed.
func (c Coordinate) IsZero() bool {
	return c.groupID == "" && c.artifactID == "" && c.version == ""
}

// BaseVersionOrVersion is the version used for repository directory layout.
func (c Coordinate) BaseVersionOrVersion() string {
	if c.baseVersion != "" {
		return c.baseVersion
	}
	return c.version
}

// IsSnapshot reports whether the coordinate names a snapshot build.
func (c Coordinate) IsSnapshot() bool {
	return strings.HasSuffix(c.BaseVersionOrVersion(), snapshotSuffix)
}

// Slot returns the deduplication key.
func (c Coordinate) Slot() Slot {
	return Slot{GroupID: c.groupID, ArtifactID: c.artifactID}
}

// SameSlot reports whether c and other are the same dependency slot.
func (c Coordinate) SameSlot(other Coordinate) bool {
	return c.Slot() == other.Slot()
}

// String returns the canonical group:artifact:version[:classifier] form used
// as a cache key and in error messages.
func (c Coordinate) String() string {
	s := c.groupID + ":" + c.artifactID + ":" + c.version
	if c.classifier != "" {
		s += ":" + c.classifier
	}
	return s
}

func (s Slot) String() string {
	return s.GroupID + ":" + s.ArtifactID
}

// Compare orders coordinates by group, artifact, version and classifier.
func Compare(a, b Coordinate) int {
	return cmp.Or(
		cmp.Compare(a.groupID, b.groupID),
		cmp.Compare(a.artifactID, b.artifactID),
		cmp.Compare(a.version, b.version),
		cmp.Compare(a.classifier, b.classifier),
	)
}
