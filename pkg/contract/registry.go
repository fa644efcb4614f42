package contract

import (
	"slices"

	"github.com/harun/plugincheck/pkg/manifest"
)

// Registry maps each contract kind to its verified versions. It is built
// once per run and never modified afterwards, so it can be shared without
// locking.
type Registry struct {
	versions map[manifest.PluginKind][]string
}

// NewRegistry copies versions into a new registry
func NewRegistry(versions map[manifest.PluginKind][]string) *Registry {
	r := &Registry{versions: make(map[manifest.PluginKind][]string, len(versions))}
	for kind, vs := range versions {
		r.versions[kind] = slices.Clone(vs)
	}
	return r
}

// Versions returns the valid versions of kind in manifest order
func (r *Registry) Versions(kind manifest.PluginKind) ([]string, bool) {
	vs, ok := r.versions[kind]
	if !ok {
		return nil, false
	}
	return slices.Clone(vs), true
}

// Has reports whether semver is a valid version of the kind's contract
func (r *Registry) Has(kind manifest.PluginKind, semver string) bool {
	return slices.Contains(r.versions[kind], semver)
}

// Kinds returns every kind with a contract, sorted
func (r *Registry) Kinds() []manifest.PluginKind {
	kinds := make([]manifest.PluginKind, 0, len(r.versions))
	for kind := range r.versions {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// Len returns the number of contract kinds
func (r *Registry) Len() int {
	return len(r.versions)
}
