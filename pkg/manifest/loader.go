package manifest

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	perrors "github.com/harun/plugincheck/pkg/errors"
)

// Loader reads, schema-validates and types manifest documents
type Loader struct {
	logger    zerolog.Logger
	validator *Validator
}

// NewLoader creates a manifest loader for the given identifier style
func NewLoader(style IDStyle, logger zerolog.Logger) (*Loader, error) {
	validator, err := NewValidator(style)
	if err != nil {
		return nil, err
	}
	return &Loader{
		logger:    logger.With().Str("component", "manifest-loader").Logger(),
		validator: validator,
	}, nil
}

// Decode parses TOML into a generic key/value tree
func Decode(data []byte) (map[string]any, error) {
	doc := make(map[string]any)
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadRoot loads the root plugin list
func (l *Loader) LoadRoot(path string) (*RootManifest, error) {
	var raw rawRoot
	if err := l.load(path, ShapeRoot, &raw); err != nil {
		return nil, err
	}

	root := &RootManifest{Plugins: make([]PluginEntry, 0, len(raw.Plugins))}
	for i, p := range raw.Plugins {
		prefix := fmt.Sprintf("plugins[%d]", i)
		id, err := ParsePluginID(prefix+".id", p.ID, l.validator.Style())
		if err != nil {
			return nil, l.located(err, path)
		}
		name, err := ParseDisplayName(prefix+".name", p.Name)
		if err != nil {
			return nil, l.located(err, path, perrors.FieldPlugin(p.ID))
		}
		kind, err := ParsePluginKind(prefix+".kind", p.Kind)
		if err != nil {
			return nil, l.located(err, path, perrors.FieldPlugin(p.ID))
		}
		root.Plugins = append(root.Plugins, PluginEntry{ID: id, Name: name, Kind: kind})
	}

	return root, nil
}

// LoadPlugin loads a plugin manifest
func (l *Loader) LoadPlugin(path string) (*PluginManifest, error) {
	var raw rawPlugin
	if err := l.load(path, ShapePlugin, &raw); err != nil {
		return nil, err
	}

	id, err := ParsePluginID("id", raw.ID, l.validator.Style())
	if err != nil {
		return nil, l.located(err, path)
	}

	m := &PluginManifest{ID: id, Versions: make([]VersionEntry, 0, len(raw.Versions))}
	for i, v := range raw.Versions {
		semver, err := ParseVersion(fmt.Sprintf("versions[%d].semver", i), v.Semver)
		if err != nil {
			return nil, l.located(err, path)
		}
		m.Versions = append(m.Versions, VersionEntry{Semver: semver})
	}

	return m, nil
}

// LoadVersion loads a plugin version manifest
func (l *Loader) LoadVersion(path string) (*PluginVersionManifest, error) {
	var raw rawPluginVersion
	if err := l.load(path, ShapeVersion, &raw); err != nil {
		return nil, err
	}

	id, err := ParsePluginID("id", raw.ID, l.validator.Style())
	if err != nil {
		return nil, l.located(err, path)
	}
	semver, err := ParseVersion("semver", raw.Semver)
	if err != nil {
		return nil, l.located(err, path)
	}

	m := &PluginVersionManifest{
		ID:       id,
		Semver:   semver,
		Packages: make([]Package, 0, len(raw.Packages)),
	}

	if raw.ContractSemver != nil {
		contractSemver, err := ParseVersion("contract_semver", *raw.ContractSemver)
		if err != nil {
			return nil, l.located(err, path)
		}
		m.ContractSemver = &contractSemver
	}

	for i, p := range raw.Packages {
		prefix := fmt.Sprintf("packages[%d]", i)
		arch, err := ParseArch(prefix+".arch", p.Arch)
		if err != nil {
			return nil, l.located(err, path)
		}
		pkgURL, err := ParsePackageURL(prefix+".url", p.URL)
		if err != nil {
			return nil, l.located(err, path, perrors.FieldArch(p.Arch))
		}
		digest, err := ParseDigest(prefix+".sha256", p.SHA256)
		if err != nil {
			return nil, l.located(err, path, perrors.FieldArch(p.Arch))
		}
		m.Packages = append(m.Packages, Package{URL: pkgURL, SHA256: digest, Arch: arch})
	}

	return m, nil
}

// LoadContract loads a contract manifest
func (l *Loader) LoadContract(path string) (*ContractManifest, error) {
	var raw rawContract
	if err := l.load(path, ShapeContract, &raw); err != nil {
		return nil, err
	}

	kind, err := ParsePluginKind("id", raw.ID)
	if err != nil {
		return nil, l.located(err, path)
	}

	m := &ContractManifest{ID: kind, Versions: make([]ContractVersion, 0, len(raw.Versions))}
	for i, v := range raw.Versions {
		prefix := fmt.Sprintf("versions[%d]", i)
		semver, err := ParseVersion(prefix+".semver", v.Semver)
		if err != nil {
			return nil, l.located(err, path, perrors.FieldContract(raw.ID))
		}
		commit, err := ParseCommitHash(prefix+".commit", v.Commit)
		if err != nil {
			return nil, l.located(err, path, perrors.FieldContract(raw.ID), perrors.FieldVersion(v.Semver))
		}
		m.Versions = append(m.Versions, ContractVersion{Semver: semver, Commit: commit})
	}

	return m, nil
}

// load reads path, checks it against the shape schema and decodes it into out
func (l *Loader) load(path string, shape Shape, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeManifestLoadFailure, "failed to read manifest file", perrors.FieldPath(path))
	}

	doc, err := Decode(data)
	if err != nil {
		return perrors.Wrap(err, perrors.CodeManifestLoadFailure, "failed to parse manifest TOML", perrors.FieldPath(path))
	}

	if err := l.validator.Validate(doc, shape); err != nil {
		return l.located(err, path)
	}

	if err := mapstructure.Decode(doc, out); err != nil {
		return perrors.Wrap(err, perrors.CodeManifestSchemaInvalid, "failed to decode manifest", perrors.FieldPath(path))
	}

	l.logger.Debug().
		Str("path", path).
		Str("shape", string(shape)).
		Msg("Loaded manifest")

	return nil
}

func (l *Loader) located(err error, path string, fields ...perrors.Attr) error {
	return perrors.With(err, append(fields, perrors.FieldPath(path))...)
}
