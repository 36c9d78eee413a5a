// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package promcounter keeps counter categories as Prometheus gauges, so the values
// can be scraped by any Prometheus compatible monitoring tool.
package promcounter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tevino/abool"

	"github.com/sensenet/perfcounters/pkg/counter"
	"github.com/sensenet/perfcounters/pkg/log"
)

var (
	plog              = log.WithComponent("PrometheusCounters")
	invalidMetricChar = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
)

// Provider registers one gauge per counter in a prometheus.Registerer.
type Provider struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	categories map[string]*category
}

// NewProvider returns a Provider registering into registerer.
func NewProvider(registerer prometheus.Registerer) *Provider {
	return &Provider{
		registerer: registerer,
		categories: map[string]*category{},
	}
}

func (p *Provider) CategoryExists(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.categories[name]
	return ok, nil
}

func (p *Provider) DeleteCategory(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.categories[name]
	if !ok {
		return fmt.Errorf("%w: %s", counter.ErrCategoryNotFound, name)
	}
	c.deleted.Set()
	for _, col := range c.collectors {
		p.registerer.Unregister(col)
	}
	delete(p.categories, name)
	plog.WithCategory(name).Debug("Category unregistered.")
	return nil
}

func (p *Provider) CreateCategory(name, help string, defs []counter.Definition) (counter.Category, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.categories[name]; ok {
		return nil, fmt.Errorf("%w: %s", counter.ErrCategoryExists, name)
	}

	c := &category{
		name:    name,
		deleted: abool.New(),
	}
	for _, def := range defs {
		h := counter.NewRawHandle(def, c.deleted)
		col := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   MetricName(name),
			Name:        MetricName(def.Name),
			Help:        helpText(help, name),
			ConstLabels: prometheus.Labels{"counter": def.Name, "type": def.Type.String()},
		}, func() float64 {
			return float64(h.RawValue())
		})
		if err := p.registerer.Register(col); err != nil {
			c.unregister(p.registerer)
			return nil, fmt.Errorf("registering counter %q of category %q: %w", def.Name, name, err)
		}
		c.handles = append(c.handles, h)
		c.collectors = append(c.collectors, col)
	}

	p.categories[name] = c
	plog.WithCategory(name).WithField("counters", len(defs)).Debug("Category registered.")
	return c, nil
}

// MetricName turns a counter or category name into a valid Prometheus name part.
func MetricName(name string) string {
	snake := strcase.ToSnake(strings.TrimSpace(name))
	snake = invalidMetricChar.ReplaceAllString(snake, "_")
	snake = strings.Trim(snake, "_")
	if snake == "" {
		return "unnamed"
	}
	if snake[0] >= '0' && snake[0] <= '9' {
		snake = "_" + snake
	}
	return snake
}

func helpText(help, name string) string {
	if help != "" {
		return help
	}
	return "Performance counters of the " + name + " category"
}

type category struct {
	name       string
	deleted    *abool.AtomicBool
	handles    []*counter.RawHandle
	collectors []prometheus.Collector
}

func (c *category) Name() string {
	return c.name
}

func (c *category) Counters() []counter.Handle {
	handles := make([]counter.Handle, len(c.handles))
	for i, h := range c.handles {
		handles[i] = h
	}
	return handles
}

func (c *category) unregister(r prometheus.Registerer) {
	for _, col := range c.collectors {
		r.Unregister(col)
	}
}
