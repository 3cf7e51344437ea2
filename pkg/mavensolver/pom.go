// SPDX-License-Identifier: MPL-2.0

package mavensolver

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const maxInterpolationPasses = 8

type (
	pomProject struct {
		XMLName              xml.Name          `xml:"project"`
		GroupID              string            `xml:"groupId"`
		ArtifactID           string            `xml:"artifactId"`
		Version              string            `xml:"version"`
		Packaging            string            `xml:"packaging"`
		Parent               *pomParent        `xml:"parent"`
		Properties           pomProperties     `xml:"properties"`
		DependencyManagement pomDependencyList `xml:"dependencyManagement"`
		Dependencies         []pomDependency   `xml:"dependencies>dependency"`
	}

	pomParent struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
	}

	pomProperties struct {
		Entries []pomProperty `xml:",any"`
	}

	pomProperty struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	}

	pomDependencyList struct {
		Dependencies []pomDependency `xml:"dependencies>dependency"`
	}

	pomDependency struct {
		GroupID    string         `xml:"groupId"`
		ArtifactID string         `xml:"artifactId"`
		Version    string         `xml:"version"`
		Type       string         `xml:"type"`
		Classifier string         `xml:"classifier"`
		Scope      string         `xml:"scope"`
		Optional   string         `xml:"optional"`
		Exclusions []pomExclusion `xml:"exclusions>exclusion"`
	}

	pomExclusion struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
	}

	// model is a POM after parent inheritance, BOM import and property
	// interpolation.
	model struct {
		groupID    string
		artifactID string
		version    string
		props      map[string]string
		managed    map[string]pomDependency
		deps       []pomDependency
	}
)

func parsePOM(data []byte) (*pomProject, error) {
	var p pomProject
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pom: %w", err)
	}
	return &p, nil
}

func (d pomDependency) key() string {
	return d.GroupID + ":" + d.ArtifactID
}

func (d pomDependency) isOptional() bool {
	return strings.EqualFold(strings.TrimSpace(d.Optional), "true")
}

func (d pomDependency) typeOrDefault() string {
	if d.Type == "" {
		return "jar"
	}
	return d.Type
}

func (d pomDependency) isImport() bool {
	return d.Scope == "import" && d.typeOrDefault() == "pom"
}

// interpolate expands ${name} references against props until a fixed point.
// Unknown references are left in place.
func interpolate(s string, props map[string]string) string {
	for pass := 0; pass < maxInterpolationPasses && strings.Contains(s, "${"); pass++ {
		var b strings.Builder
		changed := false
		rest := s
		for {
			start := strings.Index(rest, "${")
			if start < 0 {
				b.WriteString(rest)
				break
			}
			end := strings.Index(rest[start:], "}")
			if end < 0 {
				b.WriteString(rest)
				break
			}
			end += start
			name := rest[start+2 : end]
			b.WriteString(rest[:start])
			if v, ok := props[name]; ok {
				b.WriteString(v)
				changed = true
			} else {
				b.WriteString(rest[start : end+1])
			}
			rest = rest[end+1:]
		}
		s = b.String()
		if !changed {
			break
		}
	}
	return strings.TrimSpace(s)
}

func (d pomDependency) interpolated(props map[string]string) pomDependency {
	out := d
	out.GroupID = interpolate(d.GroupID, props)
	out.ArtifactID = interpolate(d.ArtifactID, props)
	out.Version = interpolate(d.Version, props)
	out.Type = interpolate(d.Type, props)
	out.Classifier = interpolate(d.Classifier, props)
	out.Scope = strings.TrimSpace(interpolate(d.Scope, props))
	out.Optional = interpolate(d.Optional, props)
	return out
}

// applyManaged fills the version and scope of d from a managed entry when d
// leaves them unset.
func applyManaged(d pomDependency, managed map[string]pomDependency) pomDependency {
	m, ok := managed[d.key()]
	if !ok {
		return d
	}
	if d.Version == "" {
		d.Version = m.Version
	}
	if d.Scope == "" {
		d.Scope = m.Scope
	}
	if len(d.Exclusions) == 0 {
		d.Exclusions = m.Exclusions
	}
	return d
}

// resolveVersionSpec reduces a Maven version specification to one concrete
// version. Soft requirements pass through; hard ranges are reduced to their
// pinned or inclusive lower bound.
func resolveVersionSpec(spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || (spec[0] != '[' && spec[0] != '(') {
		return spec, nil
	}
	inner := strings.Trim(spec, "[]()")
	if !strings.Contains(inner, ",") {
		return inner, nil
	}
	lower := strings.TrimSpace(strings.SplitN(inner, ",", 2)[0])
	if spec[0] != '[' || lower == "" {
		return "", fmt.Errorf("unsupported version range %q", spec)
	}
	return lower, nil
}
