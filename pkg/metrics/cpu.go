// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/sensenet/perfcounters/pkg/log"
)

//nolint:gochecknoglobals
var (
	cpuLog = log.WithComponent("CPUMonitor")

	errNoCPUTimes = errors.New("no cpu times reported")
)

// CPUSample is the share of processor time spent in each state since the previous sample.
type CPUSample struct {
	CPUPercent       float64 `json:"cpuPercent"`
	CPUUserPercent   float64 `json:"cpuUserPercent"`
	CPUSystemPercent float64 `json:"cpuSystemPercent"`
	CPUIOWaitPercent float64 `json:"cpuIOWaitPercent"`
	CPUIdlePercent   float64 `json:"cpuIdlePercent"`
	CPUStealPercent  float64 `json:"cpuStealPercent"`
}

// CPUMonitor computes the total processor usage from consecutive cpu.Times readings.
// It is not safe for concurrent use.
type CPUMonitor struct {
	last     []cpu.TimesStat
	cpuTimes func(bool) ([]cpu.TimesStat, error)
}

// NewCPUMonitor creates a CPUMonitor reading the aggregated processor times.
func NewCPUMonitor() *CPUMonitor {
	return &CPUMonitor{
		cpuTimes: cpu.Times,
	}
}

// Sample returns the usage since the previous call. The first call only records the
// baseline and returns a zero sample.
func (m *CPUMonitor) Sample() (sample *CPUSample, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("panic in CPUMonitor.Sample: %v\nStack: %s", panicErr, debug.Stack())
		}
	}()

	currentTimes, err := m.cpuTimes(false)
	if err != nil {
		return nil, fmt.Errorf("reading cpu times: %w", err)
	}
	// in container envs we might get an empty array
	if len(currentTimes) == 0 {
		return nil, errNoCPUTimes
	}

	if m.last == nil {
		m.last = currentTimes
		return &CPUSample{}, nil
	}

	delta := cpuDelta(&currentTimes[0], &m.last[0])

	userDelta := delta.User + delta.Nice
	systemDelta := delta.System + delta.Irq + delta.Softirq
	stolenDelta := delta.Steal

	var userPercent, stolenPercent, systemPercent, ioWaitPercent float64

	deltaTotal := delta.User + delta.Nice + delta.System + delta.Idle + delta.Iowait + delta.Irq + delta.Softirq + delta.Steal + delta.Guest + delta.GuestNice
	if deltaTotal != 0 {
		userPercent = userDelta / deltaTotal * 100.0
		stolenPercent = stolenDelta / deltaTotal * 100.0
		systemPercent = systemDelta / deltaTotal * 100.0
		ioWaitPercent = delta.Iowait / deltaTotal * 100.0
	}
	idlePercent := 100 - userPercent - systemPercent - ioWaitPercent - stolenPercent

	sample = &CPUSample{
		CPUPercent:       userPercent + systemPercent + ioWaitPercent + stolenPercent,
		CPUUserPercent:   userPercent,
		CPUSystemPercent: systemPercent,
		CPUIOWaitPercent: ioWaitPercent,
		CPUIdlePercent:   idlePercent,
		CPUStealPercent:  stolenPercent,
	}

	if sample.CPUPercent < 0 {
		cpuLog.WithField("currentTimes", currentTimes).WithField("lastTimes", m.last).Warn("cpuPercent is lower than zero")
	}

	m.last = currentTimes

	return sample, nil
}

func cpuDelta(current, previous *cpu.TimesStat) *cpu.TimesStat {
	var result cpu.TimesStat

	result.CPU = current.CPU
	result.Guest = current.Guest - previous.Guest
	result.GuestNice = current.GuestNice - previous.GuestNice
	result.Idle = current.Idle - previous.Idle
	result.Iowait = current.Iowait - previous.Iowait
	result.Irq = current.Irq - previous.Irq
	result.Nice = current.Nice - previous.Nice
	result.Softirq = current.Softirq - previous.Softirq

	result.Steal = current.Steal - previous.Steal
	// steal time can go backwards on paravirtualized guests during migrations
	if result.Steal < 0 {
		result.Steal = 0
	}
	result.System = current.System - previous.System
	result.User = current.User - previous.User
	return &result
}
