package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the plugincheck configuration
type Config struct {
	// Registry checkout to validate
	RootDir string `json:"root_dir" mapstructure:"root_dir"`

	// Manifest schema generation the registry follows
	SchemaGeneration string `json:"schema_generation" mapstructure:"schema_generation"`

	// Stop at the first violation instead of collecting all of them
	FailFast bool `json:"fail_fast" mapstructure:"fail_fast"`

	// Contracts
	Contracts ContractsConfig `json:"contracts" mapstructure:"contracts"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Watch mode
	Watch WatchConfig `json:"watch" mapstructure:"watch"`
}

// ContractsConfig holds remote contract verification settings
type ContractsConfig struct {
	DefinitionBaseURL   string        `json:"definition_base_url" mapstructure:"definition_base_url"`
	DefinitionExtension string        `json:"definition_extension" mapstructure:"definition_extension"`
	HTTPTimeout         time.Duration `json:"http_timeout" mapstructure:"http_timeout"`
	Concurrency         int           `json:"concurrency" mapstructure:"concurrency"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	// Textfile is where run metrics are written in Prometheus text format.
	// Empty disables the export.
	Textfile string `json:"textfile" mapstructure:"textfile"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"`
	Insecure    bool    `json:"insecure" mapstructure:"insecure"`
	SampleRate  float64 `json:"sample_rate" mapstructure:"sample_rate"`
}

// WatchConfig holds settings of the watch command
type WatchConfig struct {
	// Debounce is the quiet period after a file change before a re-run
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	// Schedule is an optional cron expression for periodic re-runs
	Schedule string `json:"schedule" mapstructure:"schedule"`
	Timezone string `json:"timezone" mapstructure:"timezone"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		RootDir:          ".",
		SchemaGeneration: "v3",
		FailFast:         true,
		Contracts: ContractsConfig{
			DefinitionExtension: ".wit",
			HTTPTimeout:         10 * time.Second,
			Concurrency:         4,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "plugincheck",
			SampleRate:  1.0,
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}
	return nil
}
