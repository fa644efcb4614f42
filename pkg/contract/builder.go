package contract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	perrors "github.com/harun/plugincheck/pkg/errors"
	"github.com/harun/plugincheck/pkg/layout"
	"github.com/harun/plugincheck/pkg/manifest"
	"github.com/harun/plugincheck/pkg/report"
)

const tracerName = "plugincheck/contract"

// BuilderConfig configures a Builder
type BuilderConfig struct {
	// Concurrency bounds how many contracts are checked at once.
	Concurrency int
	Reporter    *report.Reporter
	Recorder    report.Recorder
}

// Builder discovers contract manifests, validates them and produces the
// contract registry
type Builder struct {
	resolver    *layout.Resolver
	loader      *manifest.Loader
	verifier    Verifier
	reporter    *report.Reporter
	recorder    report.Recorder
	concurrency int
	logger      zerolog.Logger
}

// NewBuilder creates a contract registry builder
func NewBuilder(resolver *layout.Resolver, loader *manifest.Loader, verifier Verifier, cfg BuilderConfig, logger zerolog.Logger) *Builder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Reporter == nil {
		cfg.Reporter = report.Discard()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = report.NopRecorder{}
	}

	return &Builder{
		resolver:    resolver,
		loader:      loader,
		verifier:    verifier,
		reporter:    cfg.Reporter,
		recorder:    cfg.Recorder,
		concurrency: cfg.Concurrency,
		logger:      logger.With().Str("component", "contract-builder").Logger(),
	}
}

type contractResult struct {
	path     string
	manifest *manifest.ContractManifest
	versions []string
	errs     []error
}

// Build checks every contract and returns the registry of verified versions
// together with the violations found, in contract file order. Contracts
// with violations contribute no versions. A missing contracts folder yields
// an empty registry.
func (b *Builder) Build(ctx context.Context) (*Registry, []error) {
	if !b.resolver.Convention().ContractBinding() {
		return NewRegistry(nil), nil
	}

	paths, err := b.discover()
	if err != nil {
		return NewRegistry(nil), []error{err}
	}

	results := make([]contractResult, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.concurrency)
	for i, path := range paths {
		eg.Go(func() error {
			results[i] = b.checkContract(egCtx, path)
			return nil
		})
	}
	_ = eg.Wait()

	versions := make(map[manifest.PluginKind][]string)
	var violations []error
	for _, res := range results {
		if len(res.errs) > 0 {
			violations = append(violations, res.errs...)
			continue
		}
		kind := res.manifest.ID
		if _, dup := versions[kind]; dup {
			violations = append(violations, perrors.New(
				perrors.CodeManifestUniqueDuplicate,
				"Duplicate contract ids are not allowed.",
				perrors.FieldContract(string(kind)),
				perrors.FieldPath(res.path),
			))
			continue
		}
		versions[kind] = res.versions
	}

	registry := NewRegistry(versions)
	b.logger.Debug().
		Int("contracts", len(paths)).
		Any("kinds", registry.Kinds()).
		Int("violations", len(violations)).
		Msg("Built contract registry")

	return registry, violations
}

// discover lists contract manifests sorted by file name
func (b *Builder) discover() ([]string, error) {
	dir := b.resolver.ContractsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			b.logger.Debug().Str("dir", dir).Msg("Contracts directory does not exist, registry is empty")
			return nil, nil
		}
		return nil, perrors.Wrap(err, perrors.CodeManifestLoadFailure, "failed to read contracts directory", perrors.FieldPath(dir))
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != layout.ContractFileExt {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

func (b *Builder) checkContract(ctx context.Context, path string) contractResult {
	res := contractResult{path: path}
	stem := strings.TrimSuffix(filepath.Base(path), layout.ContractFileExt)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "contract.check",
		trace.WithAttributes(
			attribute.String("contract.file", stem),
			attribute.String("contract.path", path),
		))
	defer span.End()

	b.reporter.Progress(report.SubjectContract, stem)

	m, err := b.loader.LoadContract(path)
	if err != nil {
		res.errs = append(res.errs, err)
		b.fail(span, res.errs)
		return res
	}
	res.manifest = m
	b.recorder.DocumentValidated(string(manifest.ShapeContract))

	id := string(m.ID)
	if manifest.Kebab(stem) != manifest.Kebab(id) {
		res.errs = append(res.errs, perrors.New(
			perrors.CodeManifestReferenceMismatch,
			"Contract file name must match contract id.",
			perrors.FieldContract(id),
			perrors.FieldPath(path),
		))
	}

	if dup, ok := firstDuplicate(m.Versions); ok {
		res.errs = append(res.errs, perrors.New(
			perrors.CodeManifestUniqueDuplicate,
			"Duplicate contract versions are not allowed.",
			perrors.FieldContract(id),
			perrors.FieldVersion(dup),
			perrors.FieldPath(path),
		))
	} else if !ascending(m.Versions) {
		res.errs = append(res.errs, perrors.New(
			perrors.CodeManifestOrderUnsorted,
			"Contract versions must be ordered in ascending order.",
			perrors.FieldContract(id),
			perrors.FieldPath(path),
		))
	}

	if len(res.errs) > 0 {
		b.fail(span, res.errs)
		return res
	}

	for _, v := range m.Versions {
		if err := b.verifier.Verify(ctx, m.ID, v.Commit); err != nil {
			res.errs = append(res.errs, perrors.With(err,
				perrors.FieldContract(id),
				perrors.FieldVersion(v.Semver.String()),
				perrors.FieldPath(path),
			))
			continue
		}
		res.versions = append(res.versions, v.Semver.String())
	}

	if len(res.errs) > 0 {
		b.fail(span, res.errs)
	}
	return res
}

func (b *Builder) fail(span trace.Span, errs []error) {
	span.SetStatus(codes.Error, errs[0].Error())
	for _, err := range errs {
		b.logger.Debug().Err(err).Str("kind", string(perrors.KindOf(err))).Msg("Contract violation")
	}
}

func firstDuplicate(versions []manifest.ContractVersion) (string, bool) {
	for i := range versions {
		for j := 0; j < i; j++ {
			if versions[i].Semver.Equal(versions[j].Semver) {
				return versions[i].Semver.String(), true
			}
		}
	}
	return "", false
}

func ascending(versions []manifest.ContractVersion) bool {
	for i := 1; i < len(versions); i++ {
		if versions[i-1].Semver.Compare(versions[i].Semver) >= 0 {
			return false
		}
	}
	return true
}
