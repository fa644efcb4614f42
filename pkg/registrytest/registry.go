// Package registrytest builds plugin registry checkouts and a fake contract
// definition source for tests.
package registrytest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Commits used by the valid fixtures' contract versions
const (
	CommitA = "0123456789abcdef0123456789abcdef01234567"
	CommitB = "89abcdef0123456789abcdef0123456789abcdef"
	CommitC = "fedcba9876543210fedcba9876543210fedcba98"
)

// Digest is a well-formed sha256 used by every fixture package
var Digest = strings.Repeat("ab", 32)

// Registry is a temporary registry checkout
type Registry struct {
	Root string
}

// New writes files, keyed by slash separated path, below a fresh temp dir
func New(t *testing.T, files map[string]string) *Registry {
	t.Helper()

	r := &Registry{Root: t.TempDir()}
	for rel, content := range files {
		r.WriteFile(t, rel, content)
	}
	return r
}

// Path returns the absolute path of a slash separated relative path
func (r *Registry) Path(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// WriteFile creates or replaces a file, creating parent directories
func (r *Registry) WriteFile(t *testing.T, rel, content string) {
	t.Helper()

	fullPath := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", rel, err)
	}
}

// RemoveFile deletes a file or folder
func (r *Registry) RemoveFile(t *testing.T, rel string) {
	t.Helper()

	if err := os.RemoveAll(r.Path(rel)); err != nil {
		t.Fatalf("Failed to remove %s: %v", rel, err)
	}
}

// Entry is one root manifest line
type Entry struct {
	ID   string
	Name string
	Kind string
}

// Package is one version manifest package
type Package struct {
	URL    string
	SHA256 string
	Arch   string
}

// ContractVersion is one contract manifest version
type ContractVersion struct {
	Semver string
	Commit string
}

// RootManifest renders manifests/plugins.toml
func RootManifest(entries ...Entry) string {
	var b strings.Builder
	if len(entries) == 0 {
		b.WriteString("plugins = []\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "[[plugins]]\nid = %q\nname = %q\nkind = %q\n\n", e.ID, e.Name, e.Kind)
	}
	return b.String()
}

// PluginManifest renders a plugin.toml listing versions in the given order
func PluginManifest(id string, versions ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id = %q\n", id)
	if len(versions) == 0 {
		b.WriteString("versions = []\n")
	}
	for _, v := range versions {
		fmt.Fprintf(&b, "\n[[versions]]\nsemver = %q\n", v)
	}
	return b.String()
}

// VersionManifest renders a version.toml. An empty contractSemver is left out.
func VersionManifest(id, semver, contractSemver string, packages ...Package) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id = %q\nsemver = %q\n", id, semver)
	if contractSemver != "" {
		fmt.Fprintf(&b, "contract_semver = %q\n", contractSemver)
	}
	if len(packages) == 0 {
		b.WriteString("packages = []\n")
	}
	for _, p := range packages {
		fmt.Fprintf(&b, "\n[[packages]]\nurl = %q\nsha256 = %q\narch = %q\n", p.URL, p.SHA256, p.Arch)
	}
	return b.String()
}

// ContractManifest renders a contracts/<kind>.toml
func ContractManifest(id string, versions ...ContractVersion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id = %q\n", id)
	if len(versions) == 0 {
		b.WriteString("versions = []\n")
	}
	for _, v := range versions {
		fmt.Fprintf(&b, "\n[[versions]]\nsemver = %q\ncommit = %q\n", v.Semver, v.Commit)
	}
	return b.String()
}

// Packages returns one tar.gz package per arch
func Packages(id, version string, arches ...string) []Package {
	packages := make([]Package, 0, len(arches))
	for _, arch := range arches {
		packages = append(packages, Package{
			URL:    fmt.Sprintf("https://cdn.example.com/%s/%s/%s.tar.gz", id, version, strings.ReplaceAll(arch, "/", "-")),
			SHA256: Digest,
			Arch:   arch,
		})
	}
	return packages
}

// ValidV3 returns a complete registry that satisfies every invariant in the
// v3 layout. Its contracts reference CommitA, CommitB and CommitC.
func ValidV3() map[string]string {
	return map[string]string{
		"manifests/plugins.toml": RootManifest(
			Entry{ID: "app_notes", Name: "Notes", Kind: "app"},
			Entry{ID: "media_provider_tube", Name: "Tube", Kind: "media-provider"},
			Entry{ID: "transcriber_whisper", Name: "Whisper", Kind: "transcriber"},
		),

		"manifests/apps/app_notes/plugin.toml": PluginManifest("app_notes", "1.1.0", "1.0.0"),
		"manifests/apps/app_notes/1.1.0/version.toml": VersionManifest("app_notes", "1.1.0", "1.1.0",
			Packages("app_notes", "1.1.0", "linux/amd64", "darwin/arm64")...),
		"manifests/apps/app_notes/1.0.0/version.toml": VersionManifest("app_notes", "1.0.0", "1.0.0",
			Packages("app_notes", "1.0.0", "linux/amd64")...),

		"manifests/media_providers/media_provider_tube/plugin.toml": PluginManifest("media_provider_tube", "0.1.0"),
		"manifests/media_providers/media_provider_tube/0.1.0/version.toml": VersionManifest("media_provider_tube", "0.1.0", "0.1.0",
			Packages("media_provider_tube", "0.1.0", "linux/amd64")...),

		"manifests/transcribers/transcriber_whisper/plugin.toml": PluginManifest("transcriber_whisper", "2.0.0"),
		"manifests/transcribers/transcriber_whisper/2.0.0/version.toml": VersionManifest("transcriber_whisper", "2.0.0", "",
			Packages("transcriber_whisper", "2.0.0", "linux/amd64", "linux/arm64")...),

		"contracts/app.toml": ContractManifest("app",
			ContractVersion{Semver: "1.0.0", Commit: CommitA},
			ContractVersion{Semver: "1.1.0", Commit: CommitB},
		),
		"contracts/media-provider.toml": ContractManifest("media-provider",
			ContractVersion{Semver: "0.1.0", Commit: CommitA},
		),
		"contracts/transcriber.toml": ContractManifest("transcriber",
			ContractVersion{Semver: "1.0.0", Commit: CommitC},
		),
	}
}

// ValidV1 returns a complete valid registry in the flat, hyphenated v1 layout
func ValidV1() map[string]string {
	return map[string]string{
		"manifests/plugins.toml": RootManifest(
			Entry{ID: "app-notes", Name: "Notes", Kind: "app"},
			Entry{ID: "media-provider-tube", Name: "Tube", Kind: "media-provider"},
		),
		"manifests/app-notes/plugin.toml": PluginManifest("app-notes", "1.0.0"),
		"manifests/app-notes/1.0.0/version.toml": VersionManifest("app-notes", "1.0.0", "",
			Packages("app-notes", "1.0.0", "linux/amd64")...),
		"manifests/media-provider-tube/plugin.toml": PluginManifest("media-provider-tube", "0.2.0", "0.1.0"),
		"manifests/media-provider-tube/0.2.0/version.toml": VersionManifest("media-provider-tube", "0.2.0", "",
			Packages("media-provider-tube", "0.2.0", "linux/amd64")...),
		"manifests/media-provider-tube/0.1.0/version.toml": VersionManifest("media-provider-tube", "0.1.0", "",
			Packages("media-provider-tube", "0.1.0", "linux/amd64")...),
	}
}
