// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package counter

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sensenet/perfcounters/pkg/config"
	"github.com/sensenet/perfcounters/pkg/log"
)

// Built-in counter names, always present in the category.
const (
	GapSize                = "GapSize"
	IncomingMessages       = "IncomingMessages"
	TotalMessagesToProcess = "TotalMessagesToProcess"
	DelayingRequests       = "DelayingRequests"
)

// DefaultCounters are created before any custom counter.
var DefaultCounters = []Definition{
	{Name: GapSize, Type: NumberOfItems32},
	{Name: IncomingMessages, Type: NumberOfItems32},
	{Name: TotalMessagesToProcess, Type: NumberOfItems32},
	{Name: DelayingRequests, Type: NumberOfItems32},
}

// SystemSampler caches CPU usage and available memory sampled in the background.
type SystemSampler interface {
	Start() error
	Stop()
	// CPUUsage is the total processor time in percent.
	CPUUsage() float64
	// AvailableRAM is the available physical memory in KBytes.
	AvailableRAM() float64
}

// Manager owns the counter category and dispatches counter operations by name.
type Manager struct {
	enabled      bool
	categoryName string
	categoryHelp string
	custom       []string

	provider Provider
	sampler  SystemSampler

	category Category
	counters []*PerformanceCounter
	byName   map[string]*PerformanceCounter
	// unknown names already reported
	invalid sync.Map

	samplerRunning bool
	stopOnce       sync.Once
	logger         log.Entry
}

// NewManager builds and initializes a Manager. When counters are enabled the category
// is re-created on provider and sampler is started; failures are logged and leave the
// Manager usable with whatever could be set up. sampler may be nil.
func NewManager(cfg *config.Config, provider Provider, sampler SystemSampler) *Manager {
	m := &Manager{
		enabled:      cfg.PerformanceCountersEnabled,
		categoryName: cfg.CategoryName,
		categoryHelp: cfg.CategoryHelp,
		custom:       cfg.CustomPerformanceCounters,
		provider:     provider,
		sampler:      sampler,
		byName:       map[string]*PerformanceCounter{},
		logger:       log.WithComponent("CounterManager"),
	}
	m.initialize()

	if m.enabled {
		m.logger.Info("Performance counters are created: " + strings.Join(m.CounterNames(), ", ") + ".")
	} else {
		m.logger.Info("Performance counters are disabled.")
	}
	return m
}

func (m *Manager) initialize() {
	if !m.enabled {
		return
	}

	if m.sampler != nil {
		if err := m.sampler.Start(); err != nil {
			m.logger.WithError(err).Warn("Performance counters could not be initialized, the values will always be 0.")
		} else {
			m.samplerRunning = true
		}
	}

	if m.provider == nil {
		m.logger.Error("Error during performance counter initialization: no counter provider.")
		return
	}

	category, err := m.createCategory()
	if err != nil {
		m.logger.WithCategory(m.categoryName).WithError(err).Error("Error during performance counter initialization.")
		return
	}

	m.category = category
	for _, h := range category.Counters() {
		pc := NewPerformanceCounter(h)
		m.counters = append(m.counters, pc)
		m.byName[pc.Name()] = pc
	}
}

// createCategory deletes any previous category with the same name and creates it
// again with the built-in counters plus the custom ones not clashing with them.
func (m *Manager) createCategory() (Category, error) {
	exists, err := m.provider.CategoryExists(m.categoryName)
	if err != nil {
		return nil, err
	}
	if exists {
		if err = m.provider.DeleteCategory(m.categoryName); err != nil {
			return nil, err
		}
	}

	return m.provider.CreateCategory(m.categoryName, m.categoryHelp, Definitions(m.custom))
}

// Definitions returns the built-in counter definitions followed by the custom names
// that are neither built-in nor repeated.
func Definitions(custom []string) []Definition {
	defs := make([]Definition, 0, len(DefaultCounters)+len(custom))
	defs = append(defs, DefaultCounters...)

	seen := make(map[string]struct{}, cap(defs))
	for _, d := range DefaultCounters {
		seen[d.Name] = struct{}{}
	}
	for _, name := range custom {
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		defs = append(defs, Definition{Name: name, Type: NumberOfItems32})
	}
	return defs
}

// Enabled reports whether counter operations have any effect.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// CategoryName is the name of the managed category.
func (m *Manager) CategoryName() string {
	return m.categoryName
}

// CounterNames lists the created counters in category order.
func (m *Manager) CounterNames() []string {
	names := make([]string, len(m.counters))
	for i, c := range m.counters {
		names[i] = c.Name()
	}
	return names
}

// Counters returns the created counters in category order.
func (m *Manager) Counters() []*PerformanceCounter {
	counters := make([]*PerformanceCounter, len(m.counters))
	copy(counters, m.counters)
	return counters
}

// Counter looks a counter up without reporting unknown names.
func (m *Manager) Counter(name string) (*PerformanceCounter, bool) {
	c, ok := m.byName[name]
	return c, ok
}

func (m *Manager) Increment(name string) error {
	return m.do(name, func(c *PerformanceCounter) { c.Increment() })
}

func (m *Manager) IncrementBy(name string, value int64) error {
	return m.do(name, func(c *PerformanceCounter) { c.IncrementBy(value) })
}

func (m *Manager) Decrement(name string) error {
	return m.do(name, func(c *PerformanceCounter) { c.Decrement() })
}

func (m *Manager) Reset(name string) error {
	return m.do(name, func(c *PerformanceCounter) { c.Reset() })
}

func (m *Manager) SetRawValue(name string, value int64) error {
	return m.do(name, func(c *PerformanceCounter) { c.SetRawValue(value) })
}

func (m *Manager) do(name string, op func(*PerformanceCounter)) error {
	if !m.enabled {
		return nil
	}
	c, err := m.lookup(name)
	if err != nil {
		return err
	}
	if c != nil {
		op(c)
	}
	return nil
}

// lookup returns nil for unknown names, warning once per name.
func (m *Manager) lookup(name string) (*PerformanceCounter, error) {
	if name == "" {
		return nil, ErrEmptyCounterName
	}
	if c, ok := m.byName[name]; ok {
		return c, nil
	}
	if _, reported := m.invalid.LoadOrStore(name, struct{}{}); !reported {
		m.logger.WithCounter(name).Warn("Performance counter does not exist: " + name)
	}
	return nil, nil
}

// CPUUsage is the last sampled total processor time percentage, 0 before the first sample.
func (m *Manager) CPUUsage() float64 {
	if !m.samplerRunning {
		return 0
	}
	return m.sampler.CPUUsage()
}

// AvailableRAM is the last sampled available memory in KBytes, 0 before the first sample.
func (m *Manager) AvailableRAM() float64 {
	if !m.samplerRunning {
		return 0
	}
	return m.sampler.AvailableRAM()
}

// Start is the service start hook. Initialization already happened in NewManager.
func (m *Manager) Start() bool {
	m.logger.WithFieldsF(func() logrus.Fields {
		return logrus.Fields{"enabled": m.enabled, "counters": len(m.counters)}
	}).Debug("Counter manager started.")
	return true
}

// Shutdown stops the system sampler. Counters stay usable and the category is kept
// so external readers still see the last values.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		if m.samplerRunning {
			m.sampler.Stop()
		}
		m.logger.Debug("Counter manager shut down.")
	})
}
