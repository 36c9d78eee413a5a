// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package promcounter

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensenet/perfcounters/pkg/config"
	"github.com/sensenet/perfcounters/pkg/counter"
)

func TestProvider_ExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProvider(reg)

	cat, err := p.CreateCategory("SenseNet", "Performance counters of Sense/Net", counter.DefaultCounters)
	require.NoError(t, err)
	require.Len(t, cat.Counters(), len(counter.DefaultCounters))

	gap := cat.Counters()[0]
	require.NoError(t, gap.IncrementBy(5))
	require.NoError(t, gap.Decrement())

	expected := `
# HELP sense_net_gap_size Performance counters of Sense/Net
# TYPE sense_net_gap_size gauge
sense_net_gap_size{counter="GapSize",type="NumberOfItems32"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sense_net_gap_size"))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, len(counter.DefaultCounters), count)
}

func TestProvider_DeleteUnregisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProvider(reg)

	cat, err := p.CreateCategory("SenseNet", "", counter.DefaultCounters)
	require.NoError(t, err)

	exists, err := p.CategoryExists("SenseNet")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, p.DeleteCategory("SenseNet"))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, errors.Is(cat.Counters()[0].Increment(), counter.ErrCategoryDeleted))
	assert.True(t, errors.Is(p.DeleteCategory("SenseNet"), counter.ErrCategoryNotFound))

	// the same category can be registered again
	_, err = p.CreateCategory("SenseNet", "", counter.DefaultCounters)
	assert.NoError(t, err)
}

func TestProvider_CreateExisting(t *testing.T) {
	p := NewProvider(prometheus.NewRegistry())

	_, err := p.CreateCategory("SenseNet", "", counter.DefaultCounters)
	require.NoError(t, err)

	_, err = p.CreateCategory("SenseNet", "", counter.DefaultCounters)
	assert.True(t, errors.Is(err, counter.ErrCategoryExists))
}

func TestProvider_RegistrationConflictRollsBack(t *testing.T) {
	reg := prometheus.NewRegistry()
	// squat on a metric name the category needs, with a different help text
	require.NoError(t, reg.Register(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sense_net_incoming_messages",
		Help: "someone else",
	})))
	p := NewProvider(reg)

	_, err := p.CreateCategory("SenseNet", "", counter.DefaultCounters)
	require.Error(t, err)

	exists, err := p.CategoryExists("SenseNet")
	require.NoError(t, err)
	assert.False(t, exists)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "counters registered before the conflict are rolled back")
}

func TestProvider_WithManager(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := config.NewConfig()
	cfg.PerformanceCountersEnabled = true
	cfg.CustomPerformanceCounters = []string{"CacheHits"}

	m := counter.NewManager(cfg, NewProvider(reg), nil)
	require.NoError(t, m.IncrementBy("CacheHits", 3))

	expected := `
# HELP sense_net_cache_hits Performance counters of Sense/Net
# TYPE sense_net_cache_hits gauge
sense_net_cache_hits{counter="CacheHits",type="NumberOfItems32"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sense_net_cache_hits"))
}

func TestMetricName(t *testing.T) {
	tests := map[string]string{
		"GapSize":          "gap_size",
		"SenseNet":         "sense_net",
		"IncomingMessages": "incoming_messages",
		"  ":               "unnamed",
	}
	for in, want := range tests {
		assert.Equal(t, want, MetricName(in), in)
	}
}
