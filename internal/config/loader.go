package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "PLUGINCHECK"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path means defaults plus
// environment overrides only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment
func (l *Loader) Load() (*Config, error) {
	// Setup viper
	v := viper.New()
	setDefaults(v, DefaultConfig())

	// Read environment variables, e.g. PLUGINCHECK_CONTRACTS_CONCURRENCY
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		// Check if config file exists
		if _, err := os.Stat(l.configPath); err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}

		// Read config file; the format follows the file extension
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("root_dir", cfg.RootDir)
	v.SetDefault("schema_generation", cfg.SchemaGeneration)
	v.SetDefault("fail_fast", cfg.FailFast)
	v.SetDefault("contracts.definition_base_url", cfg.Contracts.DefinitionBaseURL)
	v.SetDefault("contracts.definition_extension", cfg.Contracts.DefinitionExtension)
	v.SetDefault("contracts.http_timeout", cfg.Contracts.HTTPTimeout)
	v.SetDefault("contracts.concurrency", cfg.Contracts.Concurrency)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", cfg.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("watch.schedule", cfg.Watch.Schedule)
	v.SetDefault("watch.timezone", cfg.Watch.Timezone)
}
