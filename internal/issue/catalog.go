// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	NoRepositoriesId Id = iota + 1
	ResolverUnavailableId
	ResolutionFailedId
	DownloadFailedId
	NoInjectionStrategyId
	ConfigLoadFailedId
)

type (
	// MarkdownMsg is catalog text rendered for terminals with glamour.
	MarkdownMsg string

	// HttpLink points at further reading.
	HttpLink string

	// Issue is a long-form explanation of a failure kind.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

var (
	render = glamour.Render

	catalog = map[Id]*Issue{
		NoRepositoriesId: {
			id: NoRepositoriesId,
			mdMsg: `
# No repositories configured

Transitive resolution needs at least one repository to search. An empty
repository list is treated as a configuration mistake, not as "no dependencies".

## Things you can try
- Add a repository to ` + "`depload.cue`" + `:
~~~cue
repositories: [{url: "https://repo.maven.apache.org/maven2/"}]
~~~
- Or pass one on the command line with ` + "`--repo`" + `.`,
			docLinks: []HttpLink{"https://github.com/invowk/depload#repositories"},
		},
		ResolverUnavailableId: {
			id: ResolverUnavailableId,
			mdMsg: `
# The dependency solver could not be started

depload fetches its solver once and runs it isolated from the host. The solver
artifact is missing, corrupt, or could not be downloaded.

## Things you can try
- Check network access to the solver repository.
- Remove the cached solver under the cache directory and retry.
- Set ` + "`solver.path`" + ` to a locally built ` + "`depsolver`" + `.`,
			docLinks: []HttpLink{"https://github.com/invowk/depload#solver"},
		},
		ResolutionFailedId: {
			id: ResolutionFailedId,
			mdMsg: `
# Dependency resolution failed

The solver reported an error for this coordinate. No partial result is used.

## Things you can try
- Check the coordinate spelling and version.
- Make sure the repository that publishes it is configured.`,
			docLinks: []HttpLink{"https://github.com/invowk/depload#resolution"},
		},
		DownloadFailedId: {
			id: DownloadFailedId,
			mdMsg: `
# Artifact download failed

None of the configured repositories provided the artifact, or its checksum did
not match.

## Things you can try
- Verify the artifact is published where you expect.
- Disable ` + "`fetch.verify_checksums`" + ` only for repositories without .sha1 files.`,
			docLinks: []HttpLink{"https://github.com/invowk/depload#downloads"},
		},
		NoInjectionStrategyId: {
			id: NoInjectionStrategyId,
			mdMsg: `
# The host cannot load new artifacts

None of the injection strategies found the structures they need in the host:
no library loader facility, no appendable search path, and no swappable
search-path slot.`,
			docLinks: []HttpLink{"https://github.com/invowk/depload#injection"},
		},
		ConfigLoadFailedId: {
			id: ConfigLoadFailedId,
			mdMsg: `
# Configuration could not be loaded

## Things you can try
- Run ` + "`depload config show`" + ` to see the effective configuration.
- Check the CUE syntax of depload.cue.`,
			docLinks: []HttpLink{"https://github.com/invowk/depload#configuration"},
		},
	}
)

// Id returns the catalog identifier.
func (i *Issue) Id() Id { return i.id }

// MarkdownMsg returns the raw catalog text.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render formats the issue for a terminal using the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- " + string(link) + "\n"
		}
	}
	return render(md, stylePath)
}

// Get looks up a catalog entry.
func Get(id Id) *Issue {
	return catalog[id]
}

// ForKind maps an error to the catalog entry explaining its taxonomy kind.
// It returns nil for errors outside the taxonomy.
func ForKind(err error) *Issue {
	switch Kind(err) {
	case ErrConfiguration:
		return catalog[NoRepositoriesId]
	case ErrResolverUnavailable:
		return catalog[ResolverUnavailableId]
	case ErrResolution:
		return catalog[ResolutionFailedId]
	case ErrDownload:
		return catalog[DownloadFailedId]
	case ErrInjection:
		return catalog[NoInjectionStrategyId]
	default:
		return nil
	}
}
