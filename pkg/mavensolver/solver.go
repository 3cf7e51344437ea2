// SPDX-License-Identifier: MPL-2.0

package mavensolver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	maxParentDepth = 32
	defaultTimeout = 60 * time.Second
)

// ErrNotFound is returned by a Getter when the resource does not exist.
var ErrNotFound = errors.New("not found")

type (
	// Result is one artifact of the closure. Version is the literal version
	// published in the repository (timestamped for snapshots); BaseVersion is
	// its stable identity.
	Result struct {
		GroupID     string `json:"groupId"`
		ArtifactID  string `json:"artifactId"`
		Version     string `json:"version"`
		BaseVersion string `json:"baseVersion"`
		Classifier  string `json:"classifier,omitempty"`
		Extension   string `json:"extension,omitempty"`
		Repository  string `json:"repository,omitempty"`
	}

	// Getter retrieves the resource at rawURL. Missing resources are
	// reported with an error wrapping ErrNotFound.
	Getter func(rawURL string) ([]byte, error)

	// Solver walks POM graphs. The zero value is not usable; call NewSolver.
	Solver struct {
		get Getter
	}

	session struct {
		solver       *Solver
		repositories []string
		models       map[string]*located
		snapshots    map[string]*snapshotMetadata
	}

	located struct {
		model       *model
		repository  string
		version     string
		baseVersion string
	}

	node struct {
		dep        pomDependency
		exclusions []pomExclusion
		depth      int
	}
)

// FindTransitiveDependencies is the solver entry point. It returns the root
// followed by its transitive compile and runtime dependencies, nearest first,
// each with the repository it was found in. Any failure voids the result.
func FindTransitiveDependencies(groupID, artifactID, version, classifier string, repositories []string) ([]Result, error) {
	return NewSolver(nil).Solve(groupID, artifactID, version, classifier, repositories)
}

// NewSolver returns a Solver using get for every repository access. A nil get
// selects DefaultGetter.
func NewSolver(get Getter) *Solver {
	if get == nil {
		get = DefaultGetter(&http.Client{Timeout: defaultTimeout})
	}
	return &Solver{get: get}
}

// DefaultGetter reads http(s) URLs with client and file URLs from disk.
func DefaultGetter(client *http.Client) Getter {
	return func(rawURL string) ([]byte, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "file" {
			data, err := os.ReadFile(u.Path)
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", rawURL, ErrNotFound)
			}
			return data, err
		}

		resp, err := client.Get(rawURL)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s: unexpected status %s", rawURL, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
}

// Solve is FindTransitiveDependencies with the solver's Getter.
func (s *Solver) Solve(groupID, artifactID, version, classifier string, repositories []string) ([]Result, error) {
	if len(repositories) == 0 {
		return nil, errors.New("no repositories given")
	}
	if groupID == "" || artifactID == "" || version == "" {
		return nil, fmt.Errorf("incomplete coordinate %s:%s:%s", groupID, artifactID, version)
	}

	sess := &session{
		solver:    s,
		models:    make(map[string]*located),
		snapshots: make(map[string]*snapshotMetadata),
	}
	for _, r := range repositories {
		if !strings.HasSuffix(r, "/") {
			r += "/"
		}
		sess.repositories = append(sess.repositories, r)
	}

	rootDep := pomDependency{GroupID: groupID, ArtifactID: artifactID, Version: version, Classifier: classifier}
	root, err := sess.load(groupID, artifactID, version, 0)
	if err != nil {
		return nil, err
	}

	results := []Result{sess.result(rootDep, root)}
	seen := map[string]bool{rootDep.key(): true}
	queue := sess.children(node{dep: rootDep}, root.model, root.model.managed)

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n.dep.key()] {
			continue
		}
		seen[n.dep.key()] = true

		loc, err := sess.load(n.dep.GroupID, n.dep.ArtifactID, n.dep.Version, 0)
		if err != nil {
			return nil, err
		}
		if n.dep.typeOrDefault() != "pom" {
			results = append(results, sess.result(n.dep, loc))
		}
		queue = append(queue, sess.children(n, loc.model, root.model.managed)...)
	}
	return results, nil
}

// children returns the dependencies of m reachable from parent, with the
// root's dependency management applied first.
func (s *session) children(parent node, m *model, rootManaged map[string]pomDependency) []node {
	var out []node
	for _, d := range m.deps {
		if parent.depth > 0 {
			if md, ok := rootManaged[d.key()]; ok && md.Version != "" {
				d.Version = md.Version
			}
		}
		switch d.Scope {
		case "", "compile", "runtime":
		default:
			continue
		}
		if d.isOptional() && parent.depth > 0 {
			continue
		}
		if excluded(d, parent.exclusions) {
			continue
		}
		exclusions := append(append([]pomExclusion(nil), parent.exclusions...), d.Exclusions...)
		out = append(out, node{dep: d, exclusions: exclusions, depth: parent.depth + 1})
	}
	return out
}

func excluded(d pomDependency, exclusions []pomExclusion) bool {
	for _, e := range exclusions {
		if (e.GroupID == "*" || e.GroupID == d.GroupID) && (e.ArtifactID == "*" || e.ArtifactID == d.ArtifactID) {
			return true
		}
	}
	return false
}

func (s *session) result(d pomDependency, loc *located) Result {
	ext := d.typeOrDefault()
	if ext == "bundle" || ext == "maven-plugin" || ext == "test-jar" {
		ext = "jar"
	}
	version := loc.version
	if isSnapshot(loc.baseVersion) {
		if meta, ok := s.snapshots[d.GroupID+":"+d.ArtifactID+":"+loc.baseVersion+"@"+loc.repository]; ok {
			version = meta.resolve(loc.baseVersion, ext, d.Classifier)
		}
	}
	return Result{
		GroupID:     d.GroupID,
		ArtifactID:  d.ArtifactID,
		Version:     version,
		BaseVersion: loc.baseVersion,
		Classifier:  d.Classifier,
		Extension:   ext,
		Repository:  loc.repository,
	}
}

// load returns the effective model of g:a:v from the first repository that
// publishes its POM.
func (s *session) load(g, a, v string, depth int) (*located, error) {
	if depth > maxParentDepth {
		return nil, fmt.Errorf("%s:%s:%s: parent chain deeper than %d", g, a, v, maxParentDepth)
	}
	resolved, err := resolveVersionSpec(v)
	if err != nil {
		return nil, fmt.Errorf("%s:%s: %w", g, a, err)
	}
	if resolved == "" {
		return nil, fmt.Errorf("%s:%s: no version declared or managed", g, a)
	}
	v = resolved

	key := g + ":" + a + ":" + v
	if loc, ok := s.models[key]; ok {
		return loc, nil
	}

	data, repo, literal, err := s.fetchPOM(g, a, v)
	if err != nil {
		return nil, err
	}
	proj, err := parsePOM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	m, err := s.effective(proj, depth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	loc := &located{model: m, repository: repo, version: literal, baseVersion: v}
	s.models[key] = loc
	return loc, nil
}

func (s *session) fetchPOM(g, a, v string) ([]byte, string, string, error) {
	dir := strings.ReplaceAll(g, ".", "/") + "/" + a + "/" + v + "/"
	var tried []string
	for _, repo := range s.repositories {
		literal := v
		if isSnapshot(v) {
			if raw, err := s.solver.get(repo + dir + "maven-metadata.xml"); err == nil {
				if meta, err := parseSnapshotMetadata(raw); err == nil {
					s.snapshots[g+":"+a+":"+v+"@"+repo] = meta
					literal = meta.resolve(v, "pom", "")
				}
			}
		}
		data, err := s.solver.get(repo + dir + a + "-" + literal + ".pom")
		if err == nil {
			return data, repo, literal, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", "", fmt.Errorf("%s:%s:%s: %w", g, a, v, err)
		}
		tried = append(tried, repo)
	}
	return nil, "", "", fmt.Errorf("%s:%s:%s: pom not found in %s", g, a, v, strings.Join(tried, ", "))
}

func (s *session) effective(p *pomProject, depth int) (*model, error) {
	m := &model{
		groupID:    strings.TrimSpace(p.GroupID),
		artifactID: strings.TrimSpace(p.ArtifactID),
		version:    strings.TrimSpace(p.Version),
		props:      make(map[string]string),
		managed:    make(map[string]pomDependency),
	}

	var parent *model
	if p.Parent != nil && p.Parent.ArtifactID != "" {
		loc, err := s.load(p.Parent.GroupID, p.Parent.ArtifactID, p.Parent.Version, depth+1)
		if err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}
		parent = loc.model
		for k, v := range parent.props {
			m.props[k] = v
		}
		if m.groupID == "" {
			m.groupID = parent.groupID
		}
		if m.version == "" {
			m.version = parent.version
		}
		m.props["project.parent.groupId"] = parent.groupID
		m.props["project.parent.version"] = parent.version
		m.props["parent.version"] = parent.version
	}

	for _, e := range p.Properties.Entries {
		m.props[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}
	for _, prefix := range []string{"project.", "pom."} {
		m.props[prefix+"groupId"] = m.groupID
		m.props[prefix+"artifactId"] = m.artifactID
		m.props[prefix+"version"] = m.version
	}

	own := make(map[string]pomDependency)
	var imports []pomDependency
	for _, d := range p.DependencyManagement.Dependencies {
		d = d.interpolated(m.props)
		if d.isImport() {
			imports = append(imports, d)
			continue
		}
		own[d.key()] = d
	}
	for _, d := range imports {
		bom, err := s.load(d.GroupID, d.ArtifactID, d.Version, depth+1)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", d.key(), err)
		}
		for k, md := range bom.model.managed {
			if _, ok := own[k]; !ok {
				own[k] = md
			}
		}
	}
	if parent != nil {
		for k, md := range parent.managed {
			m.managed[k] = md
		}
	}
	for k, md := range own {
		m.managed[k] = md
	}

	index := make(map[string]int)
	if parent != nil {
		for _, d := range parent.deps {
			index[d.key()] = len(m.deps)
			m.deps = append(m.deps, d)
		}
	}
	for _, d := range p.Dependencies {
		d = applyManaged(d.interpolated(m.props), m.managed)
		if i, ok := index[d.key()]; ok {
			m.deps[i] = d
			continue
		}
		index[d.key()] = len(m.deps)
		m.deps = append(m.deps, d)
	}
	return m, nil
}
