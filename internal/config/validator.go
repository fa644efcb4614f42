package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/harun/plugincheck/pkg/layout"
	"github.com/harun/plugincheck/pkg/watch"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateBaseURL validates the remote contract definition base URL when one
// is set. A missing URL only matters once a contract has to be verified.
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid contracts.definition_base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("contracts.definition_base_url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("contracts.definition_base_url must have a host")
	}

	return nil
}

// ValidateExtension validates the contract definition file extension
func (v *Validator) ValidateExtension(ext string) error {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return fmt.Errorf("contracts.definition_extension must start with a dot, got %q", ext)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSchedule validates the optional watch schedule and its timezone
func (v *Validator) ValidateSchedule(expr, tz string) error {
	if expr != "" {
		if _, err := watch.ParseSchedule(expr); err != nil {
			return fmt.Errorf("watch.schedule: %w", err)
		}
	}
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("watch.timezone: %w", err)
		}
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if strings.TrimSpace(cfg.RootDir) == "" {
		errors = append(errors, fmt.Errorf("root_dir cannot be empty"))
	}
	if _, err := layout.ConventionFor(layout.Generation(cfg.SchemaGeneration)); err != nil {
		errors = append(errors, err)
	}

	// Validate contracts
	if err := v.ValidateBaseURL(cfg.Contracts.DefinitionBaseURL); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateExtension(cfg.Contracts.DefinitionExtension); err != nil {
		errors = append(errors, err)
	}
	if cfg.Contracts.Concurrency <= 0 {
		errors = append(errors, fmt.Errorf("contracts.concurrency must be > 0"))
	}
	if cfg.Contracts.HTTPTimeout < 0 {
		errors = append(errors, fmt.Errorf("contracts.http_timeout must be >= 0"))
	}

	// Validate tracing
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errors = append(errors, fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	// Validate watch mode
	if cfg.Watch.Debounce < 0 {
		errors = append(errors, fmt.Errorf("watch.debounce must be >= 0"))
	}
	if err := v.ValidateSchedule(cfg.Watch.Schedule, cfg.Watch.Timezone); err != nil {
		errors = append(errors, err)
	}

	return errors
}
