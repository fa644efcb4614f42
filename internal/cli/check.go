package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/plugincheck/internal/config"
	"github.com/harun/plugincheck/internal/logger"
	"github.com/harun/plugincheck/internal/metrics"
	"github.com/harun/plugincheck/internal/tracing"
	"github.com/harun/plugincheck/pkg/contract"
	"github.com/harun/plugincheck/pkg/invariant"
	"github.com/harun/plugincheck/pkg/layout"
	"github.com/harun/plugincheck/pkg/manifest"
	"github.com/harun/plugincheck/pkg/report"
)

const tracerName = "plugincheck/cli"

// app wires the ambient stack around one or more validation runs
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	out     io.Writer
	errOut  io.Writer
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	return a.run(cmd.Context())
}

// newApp loads configuration, applies flag overrides and builds the
// logger, metrics and tracer provider.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: true,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cmd.Context(), tracing.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			SampleRate:     cfg.Tracing.SampleRate,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
		}
	}

	log.Debug().
		Str("config", cfgFile).
		Str("root", cfg.RootDir).
		Str("generation", cfg.SchemaGeneration).
		Msg("Configuration loaded")

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewMetrics(),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
	}, nil
}

// applyFlags overrides config values with explicitly set flags
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("root") {
		cfg.RootDir = rootDir
	}
	if flags.Changed("generation") {
		cfg.SchemaGeneration = generation
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = failFast
	}
}

// run performs one full, independent validation run
func (a *app) run(ctx context.Context) error {
	ctx = tracing.NewRunContext(ctx)
	ctx, span := tracing.StartSpan(ctx, tracerName, "plugincheck.check")
	defer span.End()

	log := tracing.PropagateToLogger(ctx, a.log.Logger)

	engine, err := a.newEngine(log)
	if err != nil {
		return err
	}

	start := time.Now()
	err = engine.Check(ctx)
	a.metrics.ObserveRun(resultOf(err), time.Since(start))

	if a.cfg.Metrics.Textfile != "" {
		if werr := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); werr != nil {
			log.Warn().Err(werr).Str("path", a.cfg.Metrics.Textfile).Msg("Failed to export metrics")
		}
	}

	return err
}

// newEngine assembles the validation pipeline for the configured generation
func (a *app) newEngine(log zerolog.Logger) (*invariant.Engine, error) {
	convention, err := layout.ConventionFor(layout.Generation(a.cfg.SchemaGeneration))
	if err != nil {
		return nil, err
	}

	resolver := layout.NewResolver(a.cfg.RootDir, convention)
	loader, err := manifest.NewLoader(convention.IDStyle(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest loader: %w", err)
	}

	reporter := report.New(a.out, a.errOut)
	verifier := contract.NewHTTPVerifier(contract.HTTPVerifierConfig{
		BaseURL:   a.cfg.Contracts.DefinitionBaseURL,
		Extension: a.cfg.Contracts.DefinitionExtension,
		Timeout:   a.cfg.Contracts.HTTPTimeout,
		Recorder:  a.metrics,
	}, log)
	builder := contract.NewBuilder(resolver, loader, verifier, contract.BuilderConfig{
		Concurrency: a.cfg.Contracts.Concurrency,
		Reporter:    reporter,
		Recorder:    a.metrics,
	}, log)

	return invariant.New(resolver, loader, builder, invariant.Config{
		FailFast: a.cfg.FailFast,
		Reporter: reporter,
		Recorder: a.metrics,
	}, log), nil
}

func (a *app) close(ctx context.Context) {
	if a.cfg.Tracing.Enabled {
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			a.log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
	_ = a.log.Close()
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultPassed
	case errors.Is(err, report.ErrValidationFailed):
		return metrics.ResultFailed
	default:
		return metrics.ResultError
	}
}
