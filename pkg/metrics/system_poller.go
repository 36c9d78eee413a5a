// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package metrics

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"

	"github.com/sensenet/perfcounters/pkg/log"
)

var (
	plog = log.WithComponent("SystemPoller")

	ErrPollerStarted = errors.New("system poller already started")
)

type cpuSampler interface {
	Sample() (*CPUSample, error)
}

type memorySampler interface {
	Sample() (*MemorySample, error)
}

// SystemPoller samples CPU usage and available memory in the background and caches
// the latest values. Polling stops for good on the first sampling failure.
type SystemPoller struct {
	interval time.Duration
	cpu      cpuSampler
	memory   memorySampler

	cpuUsage     atomic.Uint64
	availableRAM atomic.Uint64
	running      *abool.AtomicBool

	mu             sync.Mutex
	stopChannel    chan struct{}
	waitForCleanup *sync.WaitGroup
}

// NewSystemPoller creates a poller sampling the host every interval.
func NewSystemPoller(interval time.Duration) *SystemPoller {
	return newSystemPoller(interval, NewCPUMonitor(), NewMemoryMonitor())
}

func newSystemPoller(interval time.Duration, cpu cpuSampler, memory memorySampler) *SystemPoller {
	return &SystemPoller{
		interval:       interval,
		cpu:            cpu,
		memory:         memory,
		running:        abool.New(),
		waitForCleanup: &sync.WaitGroup{},
	}
}

// Start takes the first samples and launches the polling routine.
func (p *SystemPoller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopChannel != nil {
		return ErrPollerStarted
	}
	if err := p.sample(); err != nil {
		return err
	}

	p.stopChannel = make(chan struct{})
	p.running.Set()
	p.waitForCleanup.Add(1)

	go p.poll(p.stopChannel)

	plog.WithField("interval", p.interval).Debug("Started system poller.")
	return nil
}

func (p *SystemPoller) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer func() {
		ticker.Stop()
		p.waitForCleanup.Done()
	}()

	for {
		select {
		case <-ticker.C:
			if err := p.sample(); err != nil {
				plog.WithError(err).Error("Error when trying to get value of performance counter.")
				p.running.UnSet()
				return
			}
		case <-stop:
			return
		}
	}
}

func (p *SystemPoller) sample() error {
	cpu, err := p.cpu.Sample()
	if err != nil {
		return err
	}
	memory, err := p.memory.Sample()
	if err != nil {
		return err
	}
	p.cpuUsage.Store(math.Float64bits(cpu.CPUPercent))
	p.availableRAM.Store(math.Float64bits(memory.AvailableKBytes))
	return nil
}

// Stop ends the polling routine. It is safe to call more than once.
func (p *SystemPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running.UnSet()
	if p.stopChannel == nil {
		return
	}
	select {
	case <-p.stopChannel:
		return
	default:
	}
	close(p.stopChannel)
	p.waitForCleanup.Wait()
	plog.Debug("Stopped system poller.")
}

// Running tells whether values are still being refreshed.
func (p *SystemPoller) Running() bool {
	return p.running.IsSet()
}

// CPUUsage returns the latest total processor usage in percent.
func (p *SystemPoller) CPUUsage() float64 {
	return math.Float64frombits(p.cpuUsage.Load())
}

// AvailableRAM returns the latest available physical memory in KBytes.
func (p *SystemPoller) AvailableRAM() float64 {
	return math.Float64frombits(p.availableRAM.Load())
}
