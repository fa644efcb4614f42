// Package invariant walks a plugin registry checkout and enforces the
// cross-document rules no single manifest can check on its own.
//
// A run first builds the contract registry, then visits the root manifest,
// every plugin manifest and every plugin version manifest depth-first in
// file order. Each run re-reads everything; an Engine keeps no state
// between runs.
package invariant

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/plugincheck/pkg/contract"
	"github.com/harun/plugincheck/pkg/layout"
	"github.com/harun/plugincheck/pkg/manifest"
	"github.com/harun/plugincheck/pkg/report"
)

const tracerName = "plugincheck/invariant"

// RegistryBuilder produces the frozen contract registry a run checks
// version bindings against.
type RegistryBuilder interface {
	Build(ctx context.Context) (*contract.Registry, []error)
}

// Config configures an Engine
type Config struct {
	// FailFast stops the run at the first violation. When false every
	// violation is collected and sibling documents are still checked.
	FailFast bool
	Reporter *report.Reporter
	Recorder report.Recorder
}

// Engine orchestrates one validation pass over a registry checkout
type Engine struct {
	resolver *layout.Resolver
	loader   *manifest.Loader
	builder  RegistryBuilder
	failFast bool
	reporter *report.Reporter
	recorder report.Recorder
	logger   zerolog.Logger
}

// Result summarises one run
type Result struct {
	Violations []error
	Contracts  int
	Plugins    int
	Versions   int
	Duration   time.Duration
}

// OK reports whether every invariant held
func (r *Result) OK() bool {
	return len(r.Violations) == 0
}

// New creates an invariant engine
func New(resolver *layout.Resolver, loader *manifest.Loader, builder RegistryBuilder, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Reporter == nil {
		cfg.Reporter = report.Discard()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = report.NopRecorder{}
	}

	return &Engine{
		resolver: resolver,
		loader:   loader,
		builder:  builder,
		failFast: cfg.FailFast,
		reporter: cfg.Reporter,
		recorder: cfg.Recorder,
		logger:   logger.With().Str("component", "invariant-engine").Logger(),
	}
}

// Run performs one full validation pass. Violations are returned in the
// Result; the error is only set when the run itself could not complete,
// e.g. because ctx was cancelled.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	convention := e.resolver.Convention()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "invariant.run",
		trace.WithAttributes(
			attribute.String("registry.root", e.resolver.Root()),
			attribute.String("registry.generation", string(convention.Generation())),
		))
	defer span.End()

	e.logger.Info().
		Str("root", e.resolver.Root()).
		Str("generation", string(convention.Generation())).
		Bool("fail_fast", e.failFast).
		Msg("Starting invariant check")

	r := &run{
		engine:     e,
		ctx:        ctx,
		convention: convention,
		result:     &Result{},
	}
	err := r.check()
	r.result.Duration = time.Since(start)

	if len(r.result.Violations) > 0 {
		span.SetStatus(codes.Error, r.result.Violations[0].Error())
	}

	e.logger.Info().
		Int("contracts", r.result.Contracts).
		Int("plugins", r.result.Plugins).
		Int("versions", r.result.Versions).
		Int("violations", len(r.result.Violations)).
		Dur("duration", r.result.Duration).
		Msg("Invariant check finished")

	return r.result, err
}

// Check runs the engine and reports the outcome. It returns
// report.ErrValidationFailed when any invariant is violated.
func (e *Engine) Check(ctx context.Context) error {
	result, err := e.Run(ctx)
	if err != nil {
		return err
	}
	if !result.OK() {
		return e.reporter.Failure(result.Violations...)
	}
	e.reporter.Success()
	return nil
}
