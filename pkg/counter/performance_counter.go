// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package counter

import (
	"github.com/tevino/abool"

	"github.com/sensenet/perfcounters/pkg/log"
)

var pclog = log.WithComponent("PerformanceCounter")

// PerformanceCounter wraps a Handle and stops using it after the first failure.
// Every operation reports whether the value was actually written.
type PerformanceCounter struct {
	handle     Handle
	accessible *abool.AtomicBool
}

// NewPerformanceCounter wraps handle, which must not be nil.
func NewPerformanceCounter(handle Handle) *PerformanceCounter {
	if handle == nil {
		panic("counter: nil handle")
	}
	return &PerformanceCounter{
		handle:     handle,
		accessible: abool.NewBool(true),
	}
}

// Name of the underlying counter.
func (c *PerformanceCounter) Name() string {
	return c.handle.Name()
}

// Accessible is false once a write to the counter has failed.
func (c *PerformanceCounter) Accessible() bool {
	return c.accessible.IsSet()
}

// RawValue reads the current value of the underlying counter.
func (c *PerformanceCounter) RawValue() int64 {
	return c.handle.RawValue()
}

func (c *PerformanceCounter) Increment() bool {
	return c.apply(c.handle.Increment)
}

func (c *PerformanceCounter) IncrementBy(value int64) bool {
	return c.apply(func() error { return c.handle.IncrementBy(value) })
}

func (c *PerformanceCounter) Decrement() bool {
	return c.apply(c.handle.Decrement)
}

func (c *PerformanceCounter) SetRawValue(value int64) bool {
	return c.apply(func() error { return c.handle.SetRawValue(value) })
}

// Reset sets the raw value to zero.
func (c *PerformanceCounter) Reset() bool {
	return c.SetRawValue(0)
}

func (c *PerformanceCounter) apply(op func() error) bool {
	if !c.accessible.IsSet() {
		return false
	}
	if err := op(); err != nil {
		c.disable(err)
		return false
	}
	return true
}

// disable marks the counter inaccessible; only the caller that flips the flag logs.
func (c *PerformanceCounter) disable(err error) {
	if c.accessible.SetToIf(true, false) {
		pclog.WithCounter(c.handle.Name()).WithError(err).Error("performance counter failed and has been disabled")
	}
}
