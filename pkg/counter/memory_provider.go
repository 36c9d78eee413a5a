// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package counter

import (
	"fmt"
	"sync"

	"github.com/tevino/abool"
)

// MemoryProvider keeps categories in process memory. It stands in for the operating
// system counter store where none is available, and backs the tests.
type MemoryProvider struct {
	mu         sync.Mutex
	categories map[string]*memoryCategory
}

// NewMemoryProvider returns an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		categories: map[string]*memoryCategory{},
	}
}

func (p *MemoryProvider) CategoryExists(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.categories[name]
	return ok, nil
}

func (p *MemoryProvider) DeleteCategory(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.categories[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
	}
	c.deleted.Set()
	delete(p.categories, name)
	return nil
}

func (p *MemoryProvider) CreateCategory(name, help string, defs []Definition) (Category, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.categories[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoryExists, name)
	}

	c := &memoryCategory{
		name:    name,
		help:    help,
		deleted: abool.New(),
	}
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if _, ok := seen[def.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCounter, def.Name)
		}
		seen[def.Name] = struct{}{}
		c.handles = append(c.handles, NewRawHandle(def, c.deleted))
	}
	p.categories[name] = c
	return c, nil
}

type memoryCategory struct {
	name    string
	help    string
	deleted *abool.AtomicBool
	handles []*RawHandle
}

func (c *memoryCategory) Name() string {
	return c.name
}

func (c *memoryCategory) Counters() []Handle {
	handles := make([]Handle, len(c.handles))
	for i, h := range c.handles {
		handles[i] = h
	}
	return handles
}
