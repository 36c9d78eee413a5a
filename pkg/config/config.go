// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	config_loader "github.com/sensenet/perfcounters/pkg/config/loader"
	"github.com/sensenet/perfcounters/pkg/log"
)

var (
	ErrUnableToParseConfigFile = errors.New("unable to parse configuration file")
	ErrInvalidConfig           = errors.New("invalid configuration")

	clog = log.WithComponent("Configuration")
)

// Config holds the settings of the performance counters module.
// Every option can be overridden by an environment variable prefixed with SNPC_,
// e.g. SNPC_PERFORMANCE_COUNTERS_ENABLED=true.
type Config struct {
	// PerformanceCountersEnabled switches the whole counters facility on. When disabled
	// every counter operation is a no-op and no category is created.
	// Default: false
	PerformanceCountersEnabled bool `yaml:"performance_counters_enabled" envconfig:"performance_counters_enabled"`

	// CustomPerformanceCounters lists extra counter names created next to the built-in ones.
	// Env var value is a comma separated list.
	// Default: none
	CustomPerformanceCounters []string `yaml:"custom_performance_counters" envconfig:"custom_performance_counters"`

	// CategoryName is the name of the counter category re-created on startup.
	// Default: SenseNet
	CategoryName string `yaml:"performance_counter_category" envconfig:"performance_counter_category"`

	// CategoryHelp is the description attached to the category.
	// Default: Performance counters of Sense/Net
	CategoryHelp string `yaml:"performance_counter_category_help" envconfig:"performance_counter_category_help"`

	// CounterProvider selects where counter categories live: "memory" or "prometheus".
	// Default: prometheus
	CounterProvider string `yaml:"counter_provider" envconfig:"counter_provider"`

	// SystemSampleIntervalSec is the CPU and available memory polling period.
	// Default: 3
	SystemSampleIntervalSec int `yaml:"system_sample_interval_sec" envconfig:"system_sample_interval_sec"`

	Log LogConfig `yaml:"log" envconfig:"log"`

	// HTTPServerEnabled starts the local counters HTTP API.
	// Default: false
	HTTPServerEnabled bool `yaml:"http_server_enabled" envconfig:"http_server_enabled"`

	// HTTPServerHost is the interface the HTTP API listens on.
	// Default: localhost
	HTTPServerHost string `yaml:"http_server_host" envconfig:"http_server_host"`

	// HTTPServerPort is the port the HTTP API listens on.
	// Default: 8004
	HTTPServerPort int `yaml:"http_server_port" envconfig:"http_server_port"`
}

// LogConfig map all logging configuration options
type LogConfig struct {
	Level    string `yaml:"level" envconfig:"level"`
	Format   string `yaml:"format" envconfig:"format"`
	File     string `yaml:"file" envconfig:"file"`
	ToStdout *bool  `yaml:"stdout" envconfig:"stdout"`
}

// IsStdoutEnabled tells whether file output must be copied to stdout.
func (lc LogConfig) IsStdoutEnabled() bool {
	return lc.ToStdout == nil || *lc.ToStdout
}

// NewConfig returns the default Config.
func NewConfig() *Config {
	return &Config{
		PerformanceCountersEnabled: false,
		CategoryName:               DefaultCategoryName,
		CategoryHelp:               DefaultCategoryHelp,
		CounterProvider:            DefaultCounterProvider,
		SystemSampleIntervalSec:    DefaultSystemSampleIntervalSec,
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		HTTPServerHost: DefaultHTTPServerHost,
		HTTPServerPort: DefaultHTTPServerPort,
	}
}

// LoadConfig reads configFile, or the first default config file found, on top of the
// defaults, then applies environment overrides. A missing file is not an error.
func LoadConfig(configFile string) (*Config, error) {
	var filesToCheck []string
	if configFile != "" {
		filesToCheck = append(filesToCheck, configFile)
	}
	filesToCheck = append(filesToCheck, defaultConfigFiles...)

	cfg := NewConfig()
	_, loadedFile, err := config_loader.LoadYamlConfig(cfg, filesToCheck...)
	if err != nil {
		return cfg, fmt.Errorf("%w, %s: %s", ErrUnableToParseConfigFile, loadedFile, err.Error())
	}
	if loadedFile != "" {
		clog.WithField("file", loadedFile).Debug("Configuration file loaded.")
	}

	// After the config file has loaded, override via any environment variables
	configOverride(cfg)

	cfg.Normalize()

	return cfg, cfg.Validate()
}

func configOverride(cfg *Config) {
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		clog.WithError(err).Error("unable to interpret environment variables")
	}
}

// Normalize cleans up values coming from the file or the environment: custom counter
// names are trimmed, empty names are dropped and duplicates are removed keeping the
// first occurrence.
func (c *Config) Normalize() {
	seen := make(map[string]struct{}, len(c.CustomPerformanceCounters))
	names := make([]string, 0, len(c.CustomPerformanceCounters))
	for _, name := range c.CustomPerformanceCounters {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	c.CustomPerformanceCounters = names

	c.CategoryName = strings.TrimSpace(c.CategoryName)
	c.CounterProvider = strings.ToLower(strings.TrimSpace(c.CounterProvider))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate returns all the problems found in the configuration at once.
func (c *Config) Validate() (err error) {
	switch c.CounterProvider {
	case ProviderMemory, ProviderPrometheus:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: unknown counter_provider %q", ErrInvalidConfig, c.CounterProvider))
	}
	if c.CategoryName == "" {
		err = multierr.Append(err, fmt.Errorf("%w: performance_counter_category cannot be empty", ErrInvalidConfig))
	}
	if c.SystemSampleIntervalSec <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: system_sample_interval_sec must be positive, got %d", ErrInvalidConfig, c.SystemSampleIntervalSec))
	}
	if c.HTTPServerEnabled && (c.HTTPServerPort <= 0 || c.HTTPServerPort > 65535) {
		err = multierr.Append(err, fmt.Errorf("%w: http_server_port out of range: %d", ErrInvalidConfig, c.HTTPServerPort))
	}
	if _, lvlErr := logrus.ParseLevel(c.Log.Level); c.Log.Level != "" && lvlErr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level))
	}
	switch c.Log.Format {
	case "", LogFormatText, LogFormatJSON:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format))
	}
	return err
}

// SystemSampleInterval is the CPU and memory polling period.
func (c *Config) SystemSampleInterval() time.Duration {
	return time.Duration(c.SystemSampleIntervalSec) * time.Second
}

// LogInfo logs the loaded configuration at debug level.
func (c *Config) LogInfo() {
	clog.WithFieldsF(func() logrus.Fields {
		return logrus.Fields{
			"performance_counters_enabled": c.PerformanceCountersEnabled,
			"custom_performance_counters":  strings.Join(c.CustomPerformanceCounters, ","),
			"performance_counter_category": c.CategoryName,
			"counter_provider":             c.CounterProvider,
			"system_sample_interval_sec":   c.SystemSampleIntervalSec,
			"http_server_enabled":          c.HTTPServerEnabled,
			"http_server_port":             c.HTTPServerPort,
		}
	}).Debug("Loaded configuration.")
}
