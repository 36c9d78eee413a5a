// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"fmt"
	"runtime/debug"

	"github.com/shirou/gopsutil/v3/mem"
)

type MemorySample struct {
	MemoryTotal     float64 `json:"memoryTotalBytes"`
	MemoryAvailable float64 `json:"memoryAvailableBytes"`
	// AvailableKBytes mirrors the "Memory\Available KBytes" system counter.
	AvailableKBytes float64 `json:"memoryAvailableKBytes"`
}

type MemoryMonitor struct {
	vmHarvest func() (*mem.VirtualMemoryStat, error)
}

func NewMemoryMonitor() *MemoryMonitor {
	return &MemoryMonitor{vmHarvest: mem.VirtualMemory}
}

func (mm *MemoryMonitor) Sample() (result *MemorySample, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("panic in MemoryMonitor.Sample: %v\nStack: %s", panicErr, debug.Stack())
		}
	}()

	memory, err := mm.vmHarvest()
	if err != nil {
		return nil, fmt.Errorf("reading virtual memory: %w", err)
	}

	return &MemorySample{
		MemoryTotal:     float64(memory.Total),
		MemoryAvailable: float64(memory.Available),
		AvailableKBytes: float64(memory.Available / 1024),
	}, nil
}
