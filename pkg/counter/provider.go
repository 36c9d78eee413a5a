// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package counter

import (
	"errors"
)

var (
	ErrEmptyCounterName = errors.New("counter name cannot be empty")
	ErrCategoryExists   = errors.New("counter category already exists")
	ErrCategoryNotFound = errors.New("counter category does not exist")
	ErrCategoryDeleted  = errors.New("counter category has been deleted")
	ErrDuplicateCounter = errors.New("duplicate counter in category")
)

// Type is the kind of raw value a counter stores.
type Type int

const (
	// NumberOfItems32 is an instantaneous 32 bit count, it wraps around on overflow.
	NumberOfItems32 Type = iota
	// NumberOfItems64 is an instantaneous 64 bit count.
	NumberOfItems64
)

func (t Type) String() string {
	switch t {
	case NumberOfItems32:
		return "NumberOfItems32"
	case NumberOfItems64:
		return "NumberOfItems64"
	default:
		return "Unknown"
	}
}

// Definition is the creation data of a single counter.
type Definition struct {
	Name string
	Type Type
}

// Provider is the performance-counter subsystem owning the categories.
// Implementations must be safe for concurrent use.
type Provider interface {
	CategoryExists(name string) (bool, error)
	DeleteCategory(name string) error
	// CreateCategory fails with ErrCategoryExists when the name is taken.
	CreateCategory(name, help string, defs []Definition) (Category, error)
}

// Category is a named group of counters created and deleted as a unit.
type Category interface {
	Name() string
	// Counters returns the handles in creation order.
	Counters() []Handle
}

// Handle is a writable raw counter. Mutators fail once the owning category is deleted.
type Handle interface {
	Name() string
	Type() Type
	Increment() error
	IncrementBy(value int64) error
	Decrement() error
	SetRawValue(value int64) error
	RawValue() int64
}

// Truncate applies the wrap-around semantics of the counter type to a raw value.
func (t Type) Truncate(v int64) int64 {
	if t == NumberOfItems32 {
		return int64(int32(v))
	}
	return v
}
