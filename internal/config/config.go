// Package config loads sigscan configuration from .sigscan.yml, the
// environment and built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/phobologic/sigscan/internal/visit"
)

// Config is the complete sigscan configuration.
type Config struct {
	// LoggerNamespaces are constants a logger call may be chained off.
	LoggerNamespaces []string `mapstructure:"logger_namespaces" yaml:"logger_namespaces"`
	// MetricClients are constants recognized as metric-client receivers.
	MetricClients []string `mapstructure:"metric_clients" yaml:"metric_clients"`
	// LoggingTraits are modules whose inclusion enables bare log(...) calls.
	LoggingTraits []string `mapstructure:"logging_traits" yaml:"logging_traits"`
	// MetricDefinitionPaths are repo-relative files scanned for metric
	// constant registrations.
	MetricDefinitionPaths []string `mapstructure:"metric_definition_paths" yaml:"metric_definition_paths"`
	// Format selects the report renderer: json or text.
	Format string `mapstructure:"format" yaml:"format"`
	// LogLevel sets diagnostic verbosity: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// ConfigName is the base name of the config file probed under the repo root.
const ConfigName = ".sigscan"

func defaults() map[string]any {
	return map[string]any{
		"logger_namespaces": []string{"Rails", "App", "Application"},
		"metric_clients":    []string{"StatsD", "Statsd", "Prometheus", "Metrics", "Datadog"},
		"logging_traits":    []string{"Loggable", "StructuredLogging"},
		"metric_definition_paths": []string{
			"config/initializers/metrics.rb",
			"config/initializers/prometheus.rb",
			"config/prometheus.rb",
			"lib/metrics.rb",
			"app/lib/metrics.rb",
		},
		"format":    "text",
		"log_level": "warn",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, _ := load(viper.New())
	return cfg
}

// Load reads configuration for a repo. explicitPath, when non-empty, names
// the config file directly; otherwise .sigscan.yml under root is used if
// present. Environment variables with the SIGSCAN_ prefix override file
// values. A missing config file is not an error.
func Load(root, explicitPath string) (*Config, error) {
	v := viper.New()
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
	}
	v.SetEnvPrefix("SIGSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// No repo config means defaults apply; anything else (including a
		// missing explicitly-named file) is reported.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Rules converts the configured allow-lists into visitor rules.
func (c *Config) Rules() *visit.Rules {
	return visit.NewRules(c.LoggerNamespaces, c.MetricClients, c.LoggingTraits)
}
