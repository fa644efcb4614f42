package invariant

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/plugincheck/pkg/contract"
	perrors "github.com/harun/plugincheck/pkg/errors"
	"github.com/harun/plugincheck/pkg/layout"
	"github.com/harun/plugincheck/pkg/manifest"
	"github.com/harun/plugincheck/pkg/registrytest"
	"github.com/harun/plugincheck/pkg/report"
)

type harness struct {
	engine *Engine
	server *registrytest.DefinitionServer
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T, reg *registrytest.Registry, generation layout.Generation, failFast bool) *harness {
	t.Helper()

	convention, err := layout.ConventionFor(generation)
	require.NoError(t, err)

	resolver := layout.NewResolver(reg.Root, convention)
	loader, err := manifest.NewLoader(convention.IDStyle(), zerolog.Nop())
	require.NoError(t, err)

	h := &harness{
		server: registrytest.NewDefinitionServer(t),
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
	}
	reporter := report.New(h.out, h.errOut)
	verifier := contract.NewHTTPVerifier(contract.HTTPVerifierConfig{
		BaseURL:   h.server.URL,
		Extension: ".wit",
		Timeout:   5 * time.Second,
	}, zerolog.Nop())
	builder := contract.NewBuilder(resolver, loader, verifier, contract.BuilderConfig{
		Concurrency: 2,
		Reporter:    reporter,
	}, zerolog.Nop())

	h.engine = New(resolver, loader, builder, Config{
		FailFast: failFast,
		Reporter: reporter,
	}, zerolog.Nop())
	return h
}

// firstViolation runs a fail-fast check and returns its only violation
func firstViolation(t *testing.T, reg *registrytest.Registry) (error, *harness) {
	t.Helper()

	h := newHarness(t, reg, layout.GenerationV3, true)
	result, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	return result.Violations[0], h
}

// sortedLines orders output lines; contract progress lines are written
// concurrently.
func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	slices.Sort(lines)
	return lines
}

func TestEngine_ValidRegistry(t *testing.T) {
	t.Run("v3 passes and verifies every contract version", func(t *testing.T) {
		reg := registrytest.New(t, registrytest.ValidV3())
		h := newHarness(t, reg, layout.GenerationV3, true)

		err := h.engine.Check(context.Background())
		require.NoError(t, err)

		out := h.out.String()
		assert.Contains(t, out, `Validating "app" contract`)
		assert.Contains(t, out, `Validating "media-provider" contract`)
		assert.Contains(t, out, `Validating "app_notes" plugin`)
		assert.Contains(t, out, `Validating "transcriber_whisper" plugin`)
		assert.True(t, strings.HasSuffix(out, report.SuccessLine+"\n"))
		assert.Empty(t, h.errOut.String())

		assert.Equal(t, []string{
			"/" + registrytest.CommitA + "/app.wit",
			"/" + registrytest.CommitA + "/media-provider.wit",
			"/" + registrytest.CommitB + "/app.wit",
			"/" + registrytest.CommitC + "/transcriber.wit",
		}, h.server.Requests())
	})

	t.Run("v2 ignores contracts", func(t *testing.T) {
		reg := registrytest.New(t, registrytest.ValidV3())
		h := newHarness(t, reg, layout.GenerationV2, true)

		require.NoError(t, h.engine.Check(context.Background()))
		assert.Empty(t, h.server.Requests())
		assert.NotContains(t, h.out.String(), "contract")
	})

	t.Run("v1 flat layout", func(t *testing.T) {
		reg := registrytest.New(t, registrytest.ValidV1())
		h := newHarness(t, reg, layout.GenerationV1, true)

		require.NoError(t, h.engine.Check(context.Background()))
		assert.Contains(t, h.out.String(), report.SuccessLine)
	})

	t.Run("result counts", func(t *testing.T) {
		reg := registrytest.New(t, registrytest.ValidV3())
		h := newHarness(t, reg, layout.GenerationV3, true)

		result, err := h.engine.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, result.OK())
		assert.Equal(t, 3, result.Contracts)
		assert.Equal(t, 3, result.Plugins)
		assert.Equal(t, 4, result.Versions)
	})

	t.Run("running twice yields identical results", func(t *testing.T) {
		reg := registrytest.New(t, registrytest.ValidV3())
		h := newHarness(t, reg, layout.GenerationV3, false)

		first, err := h.engine.Run(context.Background())
		require.NoError(t, err)
		firstOut := sortedLines(h.out.String())
		h.out.Reset()

		second, err := h.engine.Run(context.Background())
		require.NoError(t, err)

		assert.Empty(t, first.Violations)
		assert.Empty(t, second.Violations)
		assert.Equal(t, firstOut, sortedLines(h.out.String()))
		assert.Equal(t, first.Versions, second.Versions)
	})
}

func TestEngine_RootManifest(t *testing.T) {
	t.Run("duplicate plugin id", func(t *testing.T) {
		files := registrytest.ValidV3()
		files["manifests/plugins.toml"] = registrytest.RootManifest(
			registrytest.Entry{ID: "app_notes", Name: "Notes", Kind: "app"},
			registrytest.Entry{ID: "app_notes", Name: "Notes", Kind: "app"},
		)
		reg := registrytest.New(t, files)
		h := newHarness(t, reg, layout.GenerationV3, true)

		err := h.engine.Check(context.Background())
		assert.ErrorIs(t, err, report.ErrValidationFailed)
		assert.Equal(t, "app_notes: Duplicate plugin ids are not allowed.\n", h.errOut.String())
		assert.NotContains(t, h.out.String(), report.SuccessLine)

		violation, _ := firstViolation(t, reg)
		assert.Equal(t, perrors.KindUniqueness, perrors.KindOf(violation))
	})

	t.Run("unsorted plugin ids", func(t *testing.T) {
		files := registrytest.ValidV3()
		files["manifests/plugins.toml"] = registrytest.RootManifest(
			registrytest.Entry{ID: "transcriber_whisper", Name: "Whisper", Kind: "transcriber"},
			registrytest.Entry{ID: "app_notes", Name: "Notes", Kind: "app"},
		)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindOrdering, perrors.KindOf(violation))
		assert.Equal(t, "app_notes: Plugins must be ordered by their id.", report.Format(violation))
	})

	t.Run("schema violation", func(t *testing.T) {
		files := registrytest.ValidV3()
		files["manifests/plugins.toml"] = registrytest.RootManifest(
			registrytest.Entry{ID: "app-notes", Name: "Notes", Kind: "app"},
		)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindSchema, perrors.KindOf(violation))
	})

	t.Run("missing root manifest", func(t *testing.T) {
		files := registrytest.ValidV3()
		delete(files, "manifests/plugins.toml")

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindLoad, perrors.KindOf(violation))
	})

	t.Run("empty plugin list passes", func(t *testing.T) {
		reg := registrytest.New(t, map[string]string{
			"manifests/plugins.toml": registrytest.RootManifest(),
		})
		h := newHarness(t, reg, layout.GenerationV3, true)

		require.NoError(t, h.engine.Check(context.Background()))
	})
}

func TestEngine_PluginManifest(t *testing.T) {
	t.Run("versions must be descending by semver precedence", func(t *testing.T) {
		files := registrytest.ValidV3()
		files["manifests/transcribers/transcriber_whisper/plugin.toml"] =
			registrytest.PluginManifest("transcriber_whisper", "1.2.0", "1.10.0")

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindOrdering, perrors.KindOf(violation))
		assert.Equal(t, "transcriber_whisper: Versions must be ordered in descending order.", report.Format(violation))
	})

	t.Run("semver order that is not lexical order passes", func(t *testing.T) {
		files := registrytest.ValidV3()
		dir := "manifests/transcribers/transcriber_whisper/"
		delete(files, dir+"2.0.0/version.toml")
		files[dir+"plugin.toml"] = registrytest.PluginManifest("transcriber_whisper", "1.10.0", "1.2.0")
		files[dir+"1.10.0/version.toml"] = registrytest.VersionManifest("transcriber_whisper", "1.10.0", "",
			registrytest.Packages("transcriber_whisper", "1.10.0", "linux/amd64")...)
		files[dir+"1.2.0/version.toml"] = registrytest.VersionManifest("transcriber_whisper", "1.2.0", "",
			registrytest.Packages("transcriber_whisper", "1.2.0", "linux/amd64")...)
		h := newHarness(t, registrytest.New(t, files), layout.GenerationV3, true)

		assert.NoError(t, h.engine.Check(context.Background()))
	})

	t.Run("pre-releases order below their release", func(t *testing.T) {
		versions := []string{"2.0.0", "2.0.0-rc.10", "2.0.0-rc.2"}
		files := registrytest.ValidV3()
		dir := "manifests/transcribers/transcriber_whisper/"
		files[dir+"plugin.toml"] = registrytest.PluginManifest("transcriber_whisper", versions...)
		for _, v := range versions {
			files[dir+v+"/version.toml"] = registrytest.VersionManifest("transcriber_whisper", v, "",
				registrytest.Packages("transcriber_whisper", v, "linux/amd64")...)
		}
		h := newHarness(t, registrytest.New(t, files), layout.GenerationV3, true)

		result, err := h.engine.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, result.Violations)
		assert.Equal(t, 6, result.Versions)
	})

	t.Run("pre-release numeric identifiers compare numerically", func(t *testing.T) {
		for _, versions := range [][]string{
			{"2.0.0", "2.0.0-rc.2", "2.0.0-rc.10"},
			{"2.0.0-rc.1", "2.0.0"},
		} {
			t.Run(strings.Join(versions, ","), func(t *testing.T) {
				files := registrytest.ValidV3()
				files["manifests/transcribers/transcriber_whisper/plugin.toml"] =
					registrytest.PluginManifest("transcriber_whisper", versions...)

				violation, _ := firstViolation(t, registrytest.New(t, files))
				assert.Equal(t, perrors.KindOrdering, perrors.KindOf(violation))
			})
		}
	})

	t.Run("duplicate versions", func(t *testing.T) {
		files := registrytest.ValidV3()
		files["manifests/apps/app_notes/plugin.toml"] = registrytest.PluginManifest("app_notes", "1.1.0", "1.1.0")

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindUniqueness, perrors.KindOf(violation))
		assert.Equal(t, "app_notes@1.1.0: Duplicate versions are not allowed.", report.Format(violation))
	})

	t.Run("plugin id must match entry", func(t *testing.T) {
		files := registrytest.ValidV3()
		files["manifests/apps/app_notes/plugin.toml"] = registrytest.PluginManifest("app_memo", "1.1.0", "1.0.0")

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindCrossReference, perrors.KindOf(violation))
		assert.Equal(t, "app_notes: Plugin id must match plugin list entry.", report.Format(violation))
	})

	t.Run("plugin id must start with kind", func(t *testing.T) {
		reg := registrytest.New(t, map[string]string{
			"manifests/plugins.toml": registrytest.RootManifest(
				registrytest.Entry{ID: "notes", Name: "Notes", Kind: "app"},
			),
			"manifests/apps/notes/plugin.toml": registrytest.PluginManifest("notes"),
		})

		violation, _ := firstViolation(t, reg)
		assert.Equal(t, perrors.KindCrossReference, perrors.KindOf(violation))
		assert.Equal(t, "notes: Plugin id must start with plugin kind.", report.Format(violation))
	})

	t.Run("missing plugin manifest", func(t *testing.T) {
		files := registrytest.ValidV3()
		delete(files, "manifests/transcribers/transcriber_whisper/plugin.toml")

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindLoad, perrors.KindOf(violation))
		assert.Equal(t, "transcriber_whisper", perrors.StringField(violation, perrors.KeyPlugin))
	})
}

func TestEngine_VersionManifest(t *testing.T) {
	const versionPath = "manifests/apps/app_notes/1.1.0/version.toml"

	t.Run("duplicate arch names plugin and version", func(t *testing.T) {
		files := registrytest.ValidV3()
		files[versionPath] = registrytest.VersionManifest("app_notes", "1.1.0", "1.1.0",
			registrytest.Packages("app_notes", "1.1.0", "linux/amd64", "linux/amd64")...)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindUniqueness, perrors.KindOf(violation))
		assert.Equal(t, "app_notes", perrors.StringField(violation, perrors.KeyPlugin))
		assert.Equal(t, "1.1.0", perrors.StringField(violation, perrors.KeyVersion))
		assert.Equal(t, "app_notes@1.1.0 linux/amd64: Only one package per arch is allowed.", report.Format(violation))
	})

	t.Run("zip packages are rejected", func(t *testing.T) {
		files := registrytest.ValidV3()
		packages := registrytest.Packages("app_notes", "1.1.0", "linux/amd64")
		packages[0].URL = strings.TrimSuffix(packages[0].URL, ".tar.gz") + ".zip"
		files[versionPath] = registrytest.VersionManifest("app_notes", "1.1.0", "1.1.0", packages...)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindSchema, perrors.KindOf(violation))
		assert.Equal(t, "app_notes@1.1.0 linux/amd64: Only packages in the tar.gz format are accepted.", report.Format(violation))
	})

	t.Run("unknown contract version", func(t *testing.T) {
		files := registrytest.ValidV3()
		files[versionPath] = registrytest.VersionManifest("app_notes", "1.1.0", "2.0.0",
			registrytest.Packages("app_notes", "1.1.0", "linux/amd64")...)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindCrossReference, perrors.KindOf(violation))
		assert.Equal(t, "app", perrors.StringField(violation, perrors.KeyContract))
		assert.Equal(t,
			"app_notes@1.1.0: Contract version 2.0.0 is not a valid app contract version (valid: 1.0.0, 1.1.0).",
			report.Format(violation))
	})

	t.Run("version id must match entry", func(t *testing.T) {
		files := registrytest.ValidV3()
		files[versionPath] = registrytest.VersionManifest("app_memo", "1.1.0", "1.1.0",
			registrytest.Packages("app_notes", "1.1.0", "linux/amd64")...)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindCrossReference, perrors.KindOf(violation))
		assert.Equal(t, "app_notes@1.1.0: Plugin version id must match plugin list entry.", report.Format(violation))
	})

	t.Run("version semver must match entry", func(t *testing.T) {
		files := registrytest.ValidV3()
		files[versionPath] = registrytest.VersionManifest("app_notes", "1.1.1", "1.1.0",
			registrytest.Packages("app_notes", "1.1.0", "linux/amd64")...)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindCrossReference, perrors.KindOf(violation))
		assert.Equal(t, "app_notes@1.1.0: Plugin version must match plugin version list entry.", report.Format(violation))
	})

	t.Run("bad digest", func(t *testing.T) {
		files := registrytest.ValidV3()
		packages := registrytest.Packages("app_notes", "1.1.0", "linux/amd64")
		packages[0].SHA256 = "abc"
		files[versionPath] = registrytest.VersionManifest("app_notes", "1.1.0", "1.1.0", packages...)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindSchema, perrors.KindOf(violation))
		assert.Equal(t, "1.1.0", perrors.StringField(violation, perrors.KeyVersion))
	})
}

func TestEngine_Contracts(t *testing.T) {
	t.Run("file name must match contract id", func(t *testing.T) {
		files := registrytest.ValidV3()
		files["contracts/media-provider.toml"] = registrytest.ContractManifest("app",
			registrytest.ContractVersion{Semver: "1.0.0", Commit: registrytest.CommitA},
		)

		violation, _ := firstViolation(t, registrytest.New(t, files))
		assert.Equal(t, perrors.KindCrossReference, perrors.KindOf(violation))
		assert.Equal(t, "app: Contract file name must match contract id.", report.Format(violation))
	})

	t.Run("missing remote definition", func(t *testing.T) {
		reg := registrytest.New(t, registrytest.ValidV3())
		h := newHarness(t, reg, layout.GenerationV3, true)
		h.server.Missing("/" + registrytest.CommitB + "/app.wit")

		result, err := h.engine.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Violations, 1)

		violation := result.Violations[0]
		assert.Equal(t, perrors.KindExternalVerification, perrors.KindOf(violation))
		assert.Equal(t, "app", perrors.StringField(violation, perrors.KeyContract))
		assert.Equal(t, "1.1.0", perrors.StringField(violation, perrors.KeyVersion))
		assert.Contains(t, violation.Error(), "status 404")
	})

	t.Run("empty registry fails each binding lazily", func(t *testing.T) {
		files := registrytest.ValidV3()
		for path := range files {
			if strings.HasPrefix(path, "contracts/") {
				delete(files, path)
			}
		}
		h := newHarness(t, registrytest.New(t, files), layout.GenerationV3, false)

		result, err := h.engine.Run(context.Background())
		require.NoError(t, err)

		// app_notes 1.1.0 and 1.0.0 plus media_provider_tube 0.1.0 bind to a
		// contract; transcriber_whisper does not.
		require.Len(t, result.Violations, 3)
		for _, violation := range result.Violations {
			assert.Equal(t, perrors.KindCrossReference, perrors.KindOf(violation))
			assert.NotEqual(t, "transcriber_whisper", perrors.StringField(violation, perrors.KeyPlugin))
		}
		assert.Contains(t, report.Format(result.Violations[0]), "app_notes@1.1.0: No valid app contract exists")
	})
}

func TestEngine_FailurePolicy(t *testing.T) {
	broken := func() map[string]string {
		files := registrytest.ValidV3()
		files["manifests/plugins.toml"] = registrytest.RootManifest(
			registrytest.Entry{ID: "transcriber_whisper", Name: "Whisper", Kind: "transcriber"},
			registrytest.Entry{ID: "app_notes", Name: "Notes", Kind: "app"},
		)
		packages := registrytest.Packages("app_notes", "1.0.0", "linux/amd64")
		packages[0].URL += ".zip"
		files["manifests/apps/app_notes/1.0.0/version.toml"] =
			registrytest.VersionManifest("app_notes", "1.0.0", "1.0.0", packages...)
		return files
	}

	t.Run("fail fast stops at the first violation", func(t *testing.T) {
		h := newHarness(t, registrytest.New(t, broken()), layout.GenerationV3, true)

		result, err := h.engine.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, perrors.KindOrdering, perrors.KindOf(result.Violations[0]))
		assert.Equal(t, 0, result.Plugins)
	})

	t.Run("accumulate reports every violation", func(t *testing.T) {
		h := newHarness(t, registrytest.New(t, broken()), layout.GenerationV3, false)

		err := h.engine.Check(context.Background())
		assert.ErrorIs(t, err, report.ErrValidationFailed)

		lines := strings.Split(strings.TrimSpace(h.errOut.String()), "\n")
		assert.Equal(t, []string{
			"app_notes: Plugins must be ordered by their id.",
			"app_notes@1.0.0 linux/amd64: Only packages in the tar.gz format are accepted.",
		}, lines)
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := newHarness(t, registrytest.New(t, registrytest.ValidV3()), layout.GenerationV2, true)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.engine.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
