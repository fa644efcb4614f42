package layout

import (
	"path/filepath"

	"github.com/harun/plugincheck/pkg/manifest"
)

// Fixed names of the registry checkout layout. Only the plugin folder below
// ManifestsDir depends on the schema generation.
const (
	ManifestsDir        = "manifests"
	ContractsDir        = "contracts"
	RootManifestFile    = "plugins.toml"
	PluginManifestFile  = "plugin.toml"
	VersionManifestFile = "version.toml"
	ContractFileExt     = ".toml"
)

// Resolver maps plugin identities to manifest locations. It performs no I/O.
type Resolver struct {
	root       string
	convention Convention
}

// NewResolver creates a resolver rooted at the registry checkout root
func NewResolver(root string, convention Convention) *Resolver {
	return &Resolver{
		root:       root,
		convention: convention,
	}
}

// Convention returns the naming convention in use
func (r *Resolver) Convention() Convention {
	return r.convention
}

// Root returns the registry root directory
func (r *Resolver) Root() string {
	return r.root
}

// ManifestsDir returns the folder holding the root and plugin manifests
func (r *Resolver) ManifestsDir() string {
	return filepath.Join(r.root, ManifestsDir)
}

// ContractsDir returns the folder holding contract manifests
func (r *Resolver) ContractsDir() string {
	return filepath.Join(r.root, ContractsDir)
}

// RootManifestPath returns the location of plugins.toml
func (r *Resolver) RootManifestPath() string {
	return filepath.Join(r.ManifestsDir(), RootManifestFile)
}

// PluginFolder returns the folder of one plugin
func (r *Resolver) PluginFolder(entry manifest.PluginEntry) string {
	return filepath.Join(r.ManifestsDir(), r.convention.PluginFolder(entry))
}

// PluginManifestPath returns the location of a plugin's plugin.toml
func (r *Resolver) PluginManifestPath(entry manifest.PluginEntry) string {
	return filepath.Join(r.PluginFolder(entry), PluginManifestFile)
}

// VersionFolder returns the folder of one plugin version, named by its semver
func (r *Resolver) VersionFolder(entry manifest.PluginEntry, version string) string {
	return filepath.Join(r.PluginFolder(entry), version)
}

// VersionManifestPath returns the location of a plugin version's version.toml
func (r *Resolver) VersionManifestPath(entry manifest.PluginEntry, version string) string {
	return filepath.Join(r.VersionFolder(entry, version), VersionManifestFile)
}
