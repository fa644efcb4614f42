package layout

import (
	"fmt"
	"path/filepath"

	"github.com/harun/plugincheck/pkg/manifest"
)

// Generation tags one of the manifest-schema generations a registry may use.
type Generation string

const (
	// GenerationV1 uses hyphenated ids and one flat folder per plugin.
	GenerationV1 Generation = "v1"
	// GenerationV2 uses underscored ids and groups plugin folders by kind.
	GenerationV2 Generation = "v2"
	// GenerationV3 is v2 plus contract manifests and contract_semver bindings.
	GenerationV3 Generation = "v3"
)

// DefaultGeneration is the canonical generation.
const DefaultGeneration = GenerationV3

// Generations lists every supported generation.
var Generations = []Generation{GenerationV1, GenerationV2, GenerationV3}

// Convention holds the naming and folder rules that changed between
// schema generations.
type Convention interface {
	Generation() Generation
	// IDStyle is the plugin identifier grammar.
	IDStyle() manifest.IDStyle
	// KindPrefix is the representation of kind every plugin id must start with.
	KindPrefix(kind manifest.PluginKind) string
	// PluginFolder returns the plugin folder relative to the manifests folder.
	PluginFolder(entry manifest.PluginEntry) string
	// ContractBinding reports whether version manifests bind to contracts.
	ContractBinding() bool
}

// ConventionFor returns the convention of generation.
func ConventionFor(g Generation) (Convention, error) {
	switch g {
	case GenerationV1:
		return hyphenConvention{}, nil
	case GenerationV2:
		return groupedConvention{generation: GenerationV2}, nil
	case GenerationV3, "":
		return groupedConvention{generation: GenerationV3, contracts: true}, nil
	default:
		return nil, fmt.Errorf("unknown schema generation %q (must be one of %v)", g, Generations)
	}
}

type hyphenConvention struct{}

func (hyphenConvention) Generation() Generation { return GenerationV1 }

func (hyphenConvention) IDStyle() manifest.IDStyle { return manifest.IDStyleHyphen }

func (hyphenConvention) KindPrefix(kind manifest.PluginKind) string {
	return string(kind)
}

func (hyphenConvention) PluginFolder(entry manifest.PluginEntry) string {
	return string(entry.ID)
}

func (hyphenConvention) ContractBinding() bool { return false }

// kindFolders maps each kind to its folder in grouped generations.
var kindFolders = map[manifest.PluginKind]string{
	manifest.KindApp:           "apps",
	manifest.KindMediaProvider: "media_providers",
	manifest.KindTranscriber:   "transcribers",
}

// kindPrefixes maps each kind to the id prefix in grouped generations.
var kindPrefixes = map[manifest.PluginKind]string{
	manifest.KindApp:           "app",
	manifest.KindMediaProvider: "media_provider",
	manifest.KindTranscriber:   "transcriber",
}

type groupedConvention struct {
	generation Generation
	contracts  bool
}

func (c groupedConvention) Generation() Generation { return c.generation }

func (groupedConvention) IDStyle() manifest.IDStyle { return manifest.IDStyleUnderscore }

func (groupedConvention) KindPrefix(kind manifest.PluginKind) string {
	return kindPrefixes[kind]
}

func (groupedConvention) PluginFolder(entry manifest.PluginEntry) string {
	return filepath.Join(kindFolders[entry.Kind], string(entry.ID))
}

func (c groupedConvention) ContractBinding() bool { return c.contracts }
