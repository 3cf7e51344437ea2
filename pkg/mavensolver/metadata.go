// SPDX-License-Identifier: MPL-2.0

package mavensolver

import (
	"encoding/xml"
	"strings"
)

const snapshotSuffix = "-SNAPSHOT"

type (
	snapshotMetadata struct {
		XMLName    xml.Name `xml:"metadata"`
		Versioning struct {
			Snapshot struct {
				Timestamp   string `xml:"timestamp"`
				BuildNumber string `xml:"buildNumber"`
				LocalCopy   string `xml:"localCopy"`
			} `xml:"snapshot"`
			SnapshotVersions []snapshotVersion `xml:"snapshotVersions>snapshotVersion"`
		} `xml:"versioning"`
	}

	snapshotVersion struct {
		Classifier string `xml:"classifier"`
		Extension  string `xml:"extension"`
		Value      string `xml:"value"`
	}
)

func isSnapshot(version string) bool {
	return strings.HasSuffix(version, snapshotSuffix)
}

func parseSnapshotMetadata(data []byte) (*snapshotMetadata, error) {
	var m snapshotMetadata
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// resolve returns the timestamped version published for extension and
// classifier. It returns baseVersion when the repository stores the snapshot
// under its literal name.
func (m *snapshotMetadata) resolve(baseVersion, extension, classifier string) string {
	for _, sv := range m.Versioning.SnapshotVersions {
		if sv.Extension == extension && sv.Classifier == classifier && sv.Value != "" {
			return sv.Value
		}
	}
	snap := m.Versioning.Snapshot
	if snap.Timestamp == "" || snap.BuildNumber == "" {
		return baseVersion
	}
	return strings.TrimSuffix(baseVersion, snapshotSuffix) + "-" + snap.Timestamp + "-" + snap.BuildNumber
}
