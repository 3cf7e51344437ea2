// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"crypto/sha1" //nolint:gosec // Maven sidecars are SHA-1
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// MavenRepo is a Maven repository laid out in a temporary directory.
type MavenRepo struct {
	Dir string
	t   testing.TB
}

// NewMavenRepo creates an empty repository under t.TempDir().
func NewMavenRepo(t testing.TB) *MavenRepo {
	t.Helper()
	return &MavenRepo{Dir: t.TempDir(), t: t}
}

// URL returns the repository's file:// base URL with a trailing slash.
func (r *MavenRepo) URL() string {
	p := filepath.ToSlash(r.Dir)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p + "/"
}

// Publish writes a POM and a jar for group:artifact:version. Each dep is
// "group:artifact:version[:scope]". The jar holds one marker entry,
// <group path>/<artifact>/marker.txt. Both files get .sha1 sidecars.
func (r *MavenRepo) Publish(group, artifact, version string, deps ...string) {
	r.t.Helper()

	var pom strings.Builder
	fmt.Fprintf(&pom, "<project>\n  <modelVersion>4.0.0</modelVersion>\n")
	fmt.Fprintf(&pom, "  <groupId>%s</groupId>\n  <artifactId>%s</artifactId>\n  <version>%s</version>\n", group, artifact, version)
	if len(deps) > 0 {
		pom.WriteString("  <dependencies>\n")
		for _, d := range deps {
			parts := strings.Split(d, ":")
			if len(parts) < 3 {
				r.t.Fatalf("dependency %q: want group:artifact:version[:scope]", d)
			}
			fmt.Fprintf(&pom, "    <dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version>", parts[0], parts[1], parts[2])
			if len(parts) > 3 {
				fmt.Fprintf(&pom, "<scope>%s</scope>", parts[3])
			}
			pom.WriteString("</dependency>\n")
		}
		pom.WriteString("  </dependencies>\n")
	}
	pom.WriteString("</project>\n")

	base := filepath.Join(r.Dir, filepath.FromSlash(strings.ReplaceAll(group, ".", "/")), artifact, version)
	stem := artifact + "-" + version
	r.writeWithSum(filepath.Join(base, stem+".pom"), []byte(pom.String()))
	r.writeWithSum(filepath.Join(base, stem+".jar"), jarBytes(r.t, map[string]string{
		strings.ReplaceAll(group, ".", "/") + "/" + artifact + "/marker.txt": group + ":" + artifact + ":" + version,
	}))
}

// JarPath returns where Publish put the jar.
func (r *MavenRepo) JarPath(group, artifact, version string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(strings.ReplaceAll(group, ".", "/")), artifact, version, artifact+"-"+version+".jar")
}

func (r *MavenRepo) writeWithSum(path string, data []byte) {
	r.t.Helper()
	sum := sha1.Sum(data) //nolint:gosec // Maven sidecars are SHA-1
	MustWriteFile(r.t, path, data)
	MustWriteFile(r.t, path+".sha1", []byte(hex.EncodeToString(sum[:])+"\n"))
}

func jarBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("jar entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("jar entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close jar: %v", err)
	}
	return buf.Bytes()
}
