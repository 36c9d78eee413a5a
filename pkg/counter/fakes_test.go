// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package counter

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sensenet/perfcounters/pkg/config"
	"github.com/sensenet/perfcounters/pkg/log"
)

var errBroken = errors.New("counter is broken")

// failingHandle fails every write and counts the attempts.
type failingHandle struct {
	name  string
	calls atomic.Int32
}

func (h *failingHandle) Name() string    { return h.name }
func (h *failingHandle) Type() Type      { return NumberOfItems32 }
func (h *failingHandle) RawValue() int64 { return 0 }

func (h *failingHandle) Increment() error {
	h.calls.Add(1)
	return errBroken
}

func (h *failingHandle) IncrementBy(int64) error {
	h.calls.Add(1)
	return errBroken
}

func (h *failingHandle) Decrement() error {
	h.calls.Add(1)
	return errBroken
}

func (h *failingHandle) SetRawValue(int64) error {
	h.calls.Add(1)
	return errBroken
}

type fakeSampler struct {
	startErr error
	started  atomic.Int32
	stopped  atomic.Int32
	cpu      float64
	ram      float64
}

func (s *fakeSampler) Start() error {
	s.started.Add(1)
	return s.startErr
}

func (s *fakeSampler) Stop()                 { s.stopped.Add(1) }
func (s *fakeSampler) CPUUsage() float64     { return s.cpu }
func (s *fakeSampler) AvailableRAM() float64 { return s.ram }

// brokenProvider fails to create categories.
type brokenProvider struct {
	*MemoryProvider
}

func (brokenProvider) CreateCategory(string, string, []Definition) (Category, error) {
	return nil, errBroken
}

func enabledConfig(custom ...string) *config.Config {
	cfg := config.NewConfig()
	cfg.PerformanceCountersEnabled = true
	cfg.CustomPerformanceCounters = custom
	return cfg
}

// syncBuffer is a log output safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()

	out := &syncBuffer{}
	log.SetOutput(out)
	return out
}
