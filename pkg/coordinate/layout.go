// SPDX-License-Identifier: MPL-2.0

package coordinate

import "strings"

// directory returns "g/r/o/u/p/artifact/baseVersion".
func (c Coordinate) directory() string {
	return strings.ReplaceAll(c.groupID, ".", "/") + "/" + c.artifactID + "/" + c.BaseVersionOrVersion()
}

// fileStem returns "artifact-version[-classifier]".
func (c Coordinate) fileStem() string {
	stem := c.artifactID + "-" + c.version
	if c.classifier != "" {
		stem += "-" + c.classifier
	}
	return stem
}

// RepositoryPath returns the artifact's path relative to a Maven repository root.
func (c Coordinate) RepositoryPath() string {
	return c.directory() + "/" + c.fileStem() + "." + c.Extension()
}

// PomPath returns the POM's path relative to a Maven repository root.
// POMs never carry a classifier.
func (c Coordinate) PomPath() string {
	return c.directory() + "/" + c.artifactID + "-" + c.version + ".pom"
}

// FileName is the flat on-disk cache name:
// "group.artifact-version[-classifier].ext".
func (c Coordinate) FileName() string {
	return c.groupID + "." + c.fileStem() + "." + c.Extension()
}
