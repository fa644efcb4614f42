package contract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/harun/plugincheck/pkg/errors"
	"github.com/harun/plugincheck/pkg/manifest"
	"github.com/harun/plugincheck/pkg/report"
)

// Verifier confirms that a contract definition exists at a commit
type Verifier interface {
	Verify(ctx context.Context, id manifest.PluginKind, commit manifest.CommitHash) error
}

// HTTPVerifier checks contract definitions against a remote source of truth
// laid out as <base>/<commit>/<kebab id><ext>.
type HTTPVerifier struct {
	client    *http.Client
	baseURL   string
	extension string
	recorder  report.Recorder
	logger    zerolog.Logger
}

// HTTPVerifierConfig configures an HTTPVerifier
type HTTPVerifierConfig struct {
	BaseURL   string
	Extension string
	Timeout   time.Duration
	Client    *http.Client
	Recorder  report.Recorder
}

// NewHTTPVerifier creates a remote definition verifier
func NewHTTPVerifier(cfg HTTPVerifierConfig, logger zerolog.Logger) *HTTPVerifier {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = report.NopRecorder{}
	}

	return &HTTPVerifier{
		client:    client,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		extension: cfg.Extension,
		recorder:  recorder,
		logger:    logger.With().Str("component", "contract-verifier").Logger(),
	}
}

// DefinitionURL returns the location of the definition of id at commit
func (v *HTTPVerifier) DefinitionURL(id manifest.PluginKind, commit manifest.CommitHash) string {
	return fmt.Sprintf("%s/%s/%s%s", v.baseURL, commit, manifest.Kebab(string(id)), v.extension)
}

// Verify issues a GET for the definition and fails unless it answers 2xx.
// Failures are not retried.
func (v *HTTPVerifier) Verify(ctx context.Context, id manifest.PluginKind, commit manifest.CommitHash) error {
	start := time.Now()
	if v.baseURL == "" {
		v.recorder.ContractCheck("error", time.Since(start))
		return perrors.New(perrors.CodeContractVerifyFailure, "No contract definition base URL is configured")
	}
	url := v.DefinitionURL(id, commit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		v.recorder.ContractCheck("error", time.Since(start))
		return perrors.Wrap(err, perrors.CodeContractVerifyFailure, "failed to build definition request")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.recorder.ContractCheck("unreachable", time.Since(start))
		return perrors.Wrap(err, perrors.CodeContractVerifyFailure,
			fmt.Sprintf("Contract definition at %s is unreachable", url))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	v.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Checked contract definition")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.recorder.ContractCheck("missing", time.Since(start))
		return perrors.New(perrors.CodeContractVerifyFailure,
			fmt.Sprintf("Contract definition not found at %s (status %d)", url, resp.StatusCode))
	}

	v.recorder.ContractCheck("found", time.Since(start))
	return nil
}
