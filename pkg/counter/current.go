// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package counter

import (
	"sync"
	"sync/atomic"

	"github.com/sensenet/perfcounters/pkg/config"
)

type setup struct {
	cfg      *config.Config
	provider Provider
	sampler  SystemSampler
}

var (
	currentMu sync.Mutex
	current   atomic.Pointer[Manager]
	// read by the package functions before touching the singleton
	configured atomic.Pointer[setup]
)

// Configure sets what the process wide Manager is built from. It returns false, and
// changes nothing, when the Manager has already been built.
// Without Configure the Manager uses config.NewConfig (counters disabled).
func Configure(cfg *config.Config, provider Provider, sampler SystemSampler) bool {
	currentMu.Lock()
	defer currentMu.Unlock()

	if current.Load() != nil {
		return false
	}
	configured.Store(&setup{cfg: cfg, provider: provider, sampler: sampler})
	return true
}

func loadSetup() *setup {
	if s := configured.Load(); s != nil {
		return s
	}
	return &setup{cfg: config.NewConfig(), provider: NewMemoryProvider()}
}

// Current returns the process wide Manager, building it on first use.
func Current() *Manager {
	if m := current.Load(); m != nil {
		return m
	}

	currentMu.Lock()
	defer currentMu.Unlock()

	if m := current.Load(); m != nil {
		return m
	}
	s := loadSetup()
	m := NewManager(s.cfg, s.provider, s.sampler)
	current.Store(m)
	return m
}

func enabled() bool {
	if m := current.Load(); m != nil {
		return m.Enabled()
	}
	return loadSetup().cfg.PerformanceCountersEnabled
}

// Increment adds one to the named counter of the process wide Manager.
func Increment(name string) error {
	if !enabled() {
		return nil
	}
	return Current().Increment(name)
}

// IncrementBy adds value to the named counter of the process wide Manager.
func IncrementBy(name string, value int64) error {
	if !enabled() {
		return nil
	}
	return Current().IncrementBy(name, value)
}

// Decrement subtracts one from the named counter of the process wide Manager.
func Decrement(name string) error {
	if !enabled() {
		return nil
	}
	return Current().Decrement(name)
}

// Reset sets the named counter of the process wide Manager to zero.
func Reset(name string) error {
	if !enabled() {
		return nil
	}
	return Current().Reset(name)
}

// SetRawValue sets the named counter of the process wide Manager to value.
func SetRawValue(name string, value int64) error {
	if !enabled() {
		return nil
	}
	return Current().SetRawValue(name, value)
}

// CounterNames lists the counters of the process wide Manager.
func CounterNames() []string {
	return Current().CounterNames()
}

// GetCPUUsage returns the cached CPU usage percentage.
func GetCPUUsage() float64 {
	return Current().CPUUsage()
}

// GetAvailableRAM returns the cached available memory in KBytes.
func GetAvailableRAM() float64 {
	return Current().AvailableRAM()
}
