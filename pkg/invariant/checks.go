package invariant

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/plugincheck/pkg/contract"
	perrors "github.com/harun/plugincheck/pkg/errors"
	"github.com/harun/plugincheck/pkg/layout"
	"github.com/harun/plugincheck/pkg/manifest"
	"github.com/harun/plugincheck/pkg/report"
)

// PackageFormat is the only archive format accepted for plugin packages.
const PackageFormat = ".tar.gz"

// run holds the state of a single pass
type run struct {
	engine     *Engine
	ctx        context.Context
	convention layout.Convention
	registry   *contract.Registry
	result     *Result
}

// fail records a violation and reports whether the run must stop.
func (r *run) fail(err error) bool {
	r.result.Violations = append(r.result.Violations, err)
	r.engine.recorder.Violation(string(perrors.KindOf(err)))
	r.engine.logger.Debug().
		Err(err).
		Str("kind", string(perrors.KindOf(err))).
		Msg("Invariant violated")
	return r.engine.failFast
}

func (r *run) check() error {
	registry, errs := r.engine.builder.Build(r.ctx)
	r.registry = registry
	r.result.Contracts = registry.Len()
	for _, err := range errs {
		if r.fail(err) {
			return nil
		}
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}

	_, err := r.checkRoot()
	return err
}

// checkRoot validates the root manifest and descends into every plugin.
func (r *run) checkRoot() (bool, error) {
	e := r.engine
	path := e.resolver.RootManifestPath()

	root, err := e.loader.LoadRoot(path)
	if err != nil {
		r.fail(err)
		return true, nil
	}

	ids := make([]string, len(root.Plugins))
	for i, entry := range root.Plugins {
		ids[i] = string(entry.ID)
	}

	valid := true
	if dup, ok := firstDuplicateID(ids); ok {
		valid = false
		if r.fail(perrors.New(
			perrors.CodeManifestUniqueDuplicate,
			"Duplicate plugin ids are not allowed.",
			perrors.FieldPlugin(dup),
			perrors.FieldPath(path),
		)) {
			return true, nil
		}
	}
	if i := firstUnsorted(ids); i >= 0 {
		valid = false
		if r.fail(perrors.New(
			perrors.CodeManifestOrderUnsorted,
			"Plugins must be ordered by their id.",
			perrors.FieldPlugin(ids[i]),
			perrors.FieldPath(path),
		)) {
			return true, nil
		}
	}
	if valid {
		e.recorder.DocumentValidated(string(manifest.ShapeRoot))
	}

	for _, entry := range root.Plugins {
		if err := r.ctx.Err(); err != nil {
			return true, err
		}
		e.reporter.Progress(report.SubjectPlugin, string(entry.ID))
		if r.checkPlugin(entry) {
			return true, nil
		}
	}
	return false, nil
}

// checkPlugin validates one plugin manifest against its root entry and
// descends into every listed version.
func (r *run) checkPlugin(entry manifest.PluginEntry) bool {
	e := r.engine
	id := string(entry.ID)
	path := e.resolver.PluginManifestPath(entry)
	r.result.Plugins++

	_, span := otel.Tracer(tracerName).Start(r.ctx, "plugin.check",
		trace.WithAttributes(
			attribute.String("plugin.id", id),
			attribute.String("plugin.kind", string(entry.Kind)),
		))
	defer span.End()

	stop := func(err error) bool {
		span.SetStatus(codes.Error, err.Error())
		return r.fail(err)
	}

	m, err := e.loader.LoadPlugin(path)
	if err != nil {
		// Nothing below the plugin can be located without its version list.
		stop(perrors.With(err, perrors.FieldPlugin(id)))
		return e.failFast
	}

	valid := true
	if m.ID != entry.ID {
		valid = false
		if stop(perrors.New(
			perrors.CodeManifestReferenceMismatch,
			"Plugin id must match plugin list entry.",
			perrors.FieldPlugin(id),
			perrors.FieldPath(path),
		)) {
			return true
		}
	}
	if !strings.HasPrefix(id, r.convention.KindPrefix(entry.Kind)) {
		valid = false
		if stop(perrors.New(
			perrors.CodeManifestReferenceMismatch,
			"Plugin id must start with plugin kind.",
			perrors.FieldPlugin(id),
			perrors.FieldPath(path),
		)) {
			return true
		}
	}
	if dup, ok := firstDuplicateVersion(m.Versions); ok {
		valid = false
		if stop(perrors.New(
			perrors.CodeManifestUniqueDuplicate,
			"Duplicate versions are not allowed.",
			perrors.FieldPlugin(id),
			perrors.FieldVersion(dup),
			perrors.FieldPath(path),
		)) {
			return true
		}
	} else if !descending(m.Versions) {
		valid = false
		if stop(perrors.New(
			perrors.CodeManifestOrderUnsorted,
			"Versions must be ordered in descending order.",
			perrors.FieldPlugin(id),
			perrors.FieldPath(path),
		)) {
			return true
		}
	}
	if valid {
		e.recorder.DocumentValidated(string(manifest.ShapePlugin))
	}

	for _, v := range m.Versions {
		if r.ctx.Err() != nil {
			return true
		}
		if r.checkVersion(entry, v.Semver.String()) {
			return true
		}
	}
	return false
}

// checkVersion validates one plugin version manifest against the plugin
// entry and the version it is listed under.
func (r *run) checkVersion(entry manifest.PluginEntry, version string) bool {
	e := r.engine
	id := string(entry.ID)
	path := e.resolver.VersionManifestPath(entry, version)
	r.result.Versions++

	m, err := e.loader.LoadVersion(path)
	if err != nil {
		r.fail(perrors.With(err, perrors.FieldPlugin(id), perrors.FieldVersion(version)))
		return e.failFast
	}

	var violations []error
	if m.ID != entry.ID {
		violations = append(violations, perrors.New(
			perrors.CodeManifestReferenceMismatch,
			"Plugin version id must match plugin list entry.",
			perrors.FieldPlugin(id),
			perrors.FieldVersion(version),
			perrors.FieldPath(path),
		))
	}
	if m.Semver.String() != version {
		violations = append(violations, perrors.New(
			perrors.CodeManifestReferenceMismatch,
			"Plugin version must match plugin version list entry.",
			perrors.FieldPlugin(id),
			perrors.FieldVersion(version),
			perrors.FieldPath(path),
		))
	}
	if r.convention.ContractBinding() && m.ContractSemver != nil {
		if err := r.checkBinding(entry, version, m.ContractSemver.String()); err != nil {
			violations = append(violations, perrors.With(err, perrors.FieldPath(path)))
		}
	}

	arches := make([]string, len(m.Packages))
	for i, pkg := range m.Packages {
		arches[i] = string(pkg.Arch)
	}
	if dup, ok := firstDuplicateID(arches); ok {
		violations = append(violations, perrors.New(
			perrors.CodeManifestUniqueDuplicate,
			"Only one package per arch is allowed.",
			perrors.FieldPlugin(id),
			perrors.FieldVersion(version),
			perrors.FieldArch(dup),
			perrors.FieldPath(path),
		))
	}
	for _, pkg := range m.Packages {
		if !strings.HasSuffix(string(pkg.URL), PackageFormat) {
			violations = append(violations, perrors.New(
				perrors.CodeManifestSchemaInvalid,
				"Only packages in the tar.gz format are accepted.",
				perrors.FieldPlugin(id),
				perrors.FieldVersion(version),
				perrors.FieldArch(string(pkg.Arch)),
				perrors.FieldPath(path),
			))
		}
	}

	if len(violations) == 0 {
		e.recorder.DocumentValidated(string(manifest.ShapeVersion))
	}
	for _, err := range violations {
		if r.fail(err) {
			return true
		}
	}
	return false
}

// checkBinding confirms the contract version a plugin version declares is a
// verified version of its kind's contract.
func (r *run) checkBinding(entry manifest.PluginEntry, version, contractSemver string) error {
	valid, ok := r.registry.Versions(entry.Kind)
	if !ok {
		return perrors.New(
			perrors.CodeManifestReferenceMismatch,
			fmt.Sprintf("No valid %s contract exists for contract_semver %s.", entry.Kind, contractSemver),
			perrors.FieldPlugin(string(entry.ID)),
			perrors.FieldVersion(version),
			perrors.FieldContract(string(entry.Kind)),
		)
	}
	if !r.registry.Has(entry.Kind, contractSemver) {
		return perrors.New(
			perrors.CodeManifestReferenceMismatch,
			fmt.Sprintf("Contract version %s is not a valid %s contract version (valid: %s).",
				contractSemver, entry.Kind, strings.Join(valid, ", ")),
			perrors.FieldPlugin(string(entry.ID)),
			perrors.FieldVersion(version),
			perrors.FieldContract(string(entry.Kind)),
		)
	}
	return nil
}

func firstDuplicateID(ids []string) (string, bool) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}

// firstUnsorted returns the index of the first id that sorts before its
// predecessor, or -1.
func firstUnsorted(ids []string) int {
	for i := 1; i < len(ids); i++ {
		if ids[i] < ids[i-1] {
			return i
		}
	}
	return -1
}

func firstDuplicateVersion(versions []manifest.VersionEntry) (string, bool) {
	for i := range versions {
		for j := 0; j < i; j++ {
			if versions[i].Semver.Equal(versions[j].Semver) {
				return versions[i].Semver.String(), true
			}
		}
	}
	return "", false
}

func descending(versions []manifest.VersionEntry) bool {
	for i := 1; i < len(versions); i++ {
		if versions[i-1].Semver.Compare(versions[i].Semver) <= 0 {
			return false
		}
	}
	return true
}
