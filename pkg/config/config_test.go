// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sn-perfcounters.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.False(t, cfg.PerformanceCountersEnabled)
	assert.Empty(t, cfg.CustomPerformanceCounters)
	assert.Equal(t, "SenseNet", cfg.CategoryName)
	assert.Equal(t, ProviderPrometheus, cfg.CounterProvider)
	assert.Equal(t, 3*time.Second, cfg.SystemSampleInterval())
	assert.True(t, cfg.Log.IsStdoutEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
performance_counters_enabled: true
custom_performance_counters:
  - CacheHits
  - " CacheMisses "
  - CacheHits
  - ""
performance_counter_category: Repository
counter_provider: Memory
system_sample_interval_sec: 5
log:
  level: debug
  format: json
  stdout: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.PerformanceCountersEnabled)
	assert.Equal(t, []string{"CacheHits", "CacheMisses"}, cfg.CustomPerformanceCounters)
	assert.Equal(t, "Repository", cfg.CategoryName)
	assert.Equal(t, ProviderMemory, cfg.CounterProvider)
	assert.Equal(t, 5*time.Second, cfg.SystemSampleInterval())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)
	assert.False(t, cfg.Log.IsStdoutEnabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
performance_counters_enabled: false
performance_counter_category: FromFile
`)
	t.Setenv("SNPC_PERFORMANCE_COUNTERS_ENABLED", "true")
	t.Setenv("SNPC_CUSTOM_PERFORMANCE_COUNTERS", "A,B,A")
	t.Setenv("SNPC_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.PerformanceCountersEnabled)
	assert.Equal(t, []string{"A", "B"}, cfg.CustomPerformanceCounters)
	assert.Equal(t, "FromFile", cfg.CategoryName)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_Placeholders(t *testing.T) {
	t.Setenv("SNPC_TEST_CATEGORY_NAME", "FromPlaceholder")
	path := writeConfig(t, `performance_counter_category: {{ SNPC_TEST_CATEGORY_NAME }}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "FromPlaceholder", cfg.CategoryName)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, NewConfig().CategoryName, cfg.CategoryName)
}

func TestLoadConfig_ParseError(t *testing.T) {
	path := writeConfig(t, "custom_performance_counters: {not: [a list")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnableToParseConfigFile))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := NewConfig()
	cfg.CounterProvider = "etcd"
	cfg.CategoryName = ""
	cfg.SystemSampleIntervalSec = 0
	cfg.HTTPServerEnabled = true
	cfg.HTTPServerPort = 70000
	cfg.Log.Level = "chatty"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 6)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNormalize(t *testing.T) {
	cfg := NewConfig()
	cfg.CustomPerformanceCounters = []string{"  X", "Y", "X", " "}
	cfg.CounterProvider = " PROMETHEUS "

	cfg.Normalize()

	assert.Equal(t, []string{"X", "Y"}, cfg.CustomPerformanceCounters)
	assert.Equal(t, ProviderPrometheus, cfg.CounterProvider)
}
