package manifest

import (
	"github.com/Masterminds/semver/v3"
)

// PluginKind is the closed set of plugin categories.
type PluginKind string

const (
	KindApp           PluginKind = "app"
	KindMediaProvider PluginKind = "media-provider"
	KindTranscriber   PluginKind = "transcriber"
)

// PluginKinds lists every kind in declaration order.
var PluginKinds = []PluginKind{
	KindApp,
	KindMediaProvider,
	KindTranscriber,
}

// PluginID is a validated plugin identifier.
type PluginID string

// DisplayName is a validated human readable plugin name.
type DisplayName string

// Digest is a sha256 hex digest of a package archive.
type Digest string

// CommitHash is a full 40 character git commit hash.
type CommitHash string

// Arch is an "os/cpu" package target, e.g. "linux/amd64".
type Arch string

// PackageURL is an absolute download URL.
type PackageURL string

// Version is a semantic version that keeps the exact text it was parsed
// from. Equality with manifest context uses the text; ordering uses semver
// precedence.
type Version struct {
	raw string
	sv  *semver.Version
}

func (v Version) String() string {
	return v.raw
}

// Compare returns -1, 0 or 1 by semver precedence. Build metadata is ignored.
func (v Version) Compare(o Version) int {
	return v.sv.Compare(o.sv)
}

// Equal reports whether both versions have the same precedence.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// PluginEntry is one line of the root manifest.
type PluginEntry struct {
	ID   PluginID
	Name DisplayName
	Kind PluginKind
}

// RootManifest lists every plugin in the registry.
type RootManifest struct {
	Plugins []PluginEntry
}

// VersionEntry is one released version listed by a plugin manifest.
type VersionEntry struct {
	Semver Version
}

// PluginManifest lists the released versions of one plugin.
type PluginManifest struct {
	ID       PluginID
	Versions []VersionEntry
}

// Package is one downloadable archive of a plugin version.
type Package struct {
	URL    PackageURL
	SHA256 Digest
	Arch   Arch
}

// PluginVersionManifest describes the packages of one plugin version.
type PluginVersionManifest struct {
	ID             PluginID
	Semver         Version
	ContractSemver *Version
	Packages       []Package
}

// ContractVersion pins one contract version to the commit defining it.
type ContractVersion struct {
	Semver Version
	Commit CommitHash
}

// ContractManifest lists the published versions of one contract kind.
type ContractManifest struct {
	ID       PluginKind
	Versions []ContractVersion
}

// Shape names one of the document shapes the schema validator knows.
type Shape string

const (
	ShapeRoot     Shape = "root"
	ShapePlugin   Shape = "plugin"
	ShapeVersion  Shape = "plugin-version"
	ShapeContract Shape = "contract"
)

// IDStyle is the plugin identifier grammar of a schema generation.
type IDStyle string

const (
	IDStyleHyphen     IDStyle = "hyphen"
	IDStyleUnderscore IDStyle = "underscore"
)

// Pattern returns the anchored identifier regular expression for the style.
func (s IDStyle) Pattern() string {
	if s == IDStyleUnderscore {
		return `^[a-z]+(_[a-z]+)*$`
	}
	return `^[a-z]+(-[a-z]+)*$`
}

type rawRoot struct {
	Plugins []rawPluginEntry `mapstructure:"plugins"`
}

type rawPluginEntry struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`
}

type rawPlugin struct {
	ID       string            `mapstructure:"id"`
	Versions []rawVersionEntry `mapstructure:"versions"`
}

type rawVersionEntry struct {
	Semver string `mapstructure:"semver"`
}

type rawPluginVersion struct {
	ID             string       `mapstructure:"id"`
	Semver         string       `mapstructure:"semver"`
	ContractSemver *string      `mapstructure:"contract_semver"`
	Packages       []rawPackage `mapstructure:"packages"`
}

type rawPackage struct {
	URL    string `mapstructure:"url"`
	SHA256 string `mapstructure:"sha256"`
	Arch   string `mapstructure:"arch"`
}

type rawContract struct {
	ID       string               `mapstructure:"id"`
	Versions []rawContractVersion `mapstructure:"versions"`
}

type rawContractVersion struct {
	Semver string `mapstructure:"semver"`
	Commit string `mapstructure:"commit"`
}
