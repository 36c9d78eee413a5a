// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensenet/perfcounters/pkg/config"
	"github.com/sensenet/perfcounters/pkg/counter"
	"github.com/sensenet/perfcounters/pkg/counter/promcounter"
	"github.com/sensenet/perfcounters/pkg/log"
)

func TestNewProvider(t *testing.T) {
	cfg := config.NewConfig()

	cfg.CounterProvider = config.ProviderMemory
	provider, gatherer := newProvider(cfg)
	assert.IsType(t, &counter.MemoryProvider{}, provider)
	assert.Nil(t, gatherer)

	cfg.CounterProvider = config.ProviderPrometheus
	provider, gatherer = newProvider(cfg)
	assert.IsType(t, &promcounter.Provider{}, provider)
	require.NotNil(t, gatherer)

	families, err := gatherer.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "runtime collectors are registered")
}

func TestServiceArgs(t *testing.T) {
	prev := configFile
	defer func() { configFile = prev }()

	configFile = ""
	assert.Empty(t, serviceArgs())

	configFile = "sn-perfcounters.yml"
	args := serviceArgs()
	require.Len(t, args, 2)
	assert.Equal(t, "-config", args[0])
	assert.True(t, filepath.IsAbs(args[1]))
}

func TestConfigureLogRedirection(t *testing.T) {
	memLog := log.NewMemLogger(&discard{})
	log.SetOutput(memLog)
	log.Info("before redirection")

	stdout := false
	file := filepath.Join(t.TempDir(), "perfcounters.log")
	closeLog := configureLogRedirection(&config.LogConfig{File: file, ToStdout: &stdout}, memLog)
	log.Info("after redirection")
	closeLog()

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "before redirection")
	assert.Contains(t, string(content), "after redirection")
}

type discard struct{}

func (discard) Write(b []byte) (int, error) { return len(b), nil }
