// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package counter

import (
	"fmt"
	"sync/atomic"

	"github.com/tevino/abool"
)

// RawHandle is a Handle storing its value in memory. Writes fail once the
// deleted flag shared with the owning category is set.
type RawHandle struct {
	name    string
	typ     Type
	val     atomic.Int64
	deleted *abool.AtomicBool
}

// NewRawHandle creates a handle for def. deleted may be nil for a handle that can
// never be deleted.
func NewRawHandle(def Definition, deleted *abool.AtomicBool) *RawHandle {
	if deleted == nil {
		deleted = abool.New()
	}
	return &RawHandle{
		name:    def.Name,
		typ:     def.Type,
		deleted: deleted,
	}
}

func (h *RawHandle) Name() string {
	return h.name
}

func (h *RawHandle) Type() Type {
	return h.typ
}

func (h *RawHandle) Increment() error {
	return h.IncrementBy(1)
}

func (h *RawHandle) Decrement() error {
	return h.IncrementBy(-1)
}

func (h *RawHandle) IncrementBy(value int64) error {
	if h.deleted.IsSet() {
		return fmt.Errorf("%w: cannot write %s", ErrCategoryDeleted, h.name)
	}
	for {
		old := h.val.Load()
		if h.val.CompareAndSwap(old, h.typ.Truncate(old+value)) {
			return nil
		}
	}
}

func (h *RawHandle) SetRawValue(value int64) error {
	if h.deleted.IsSet() {
		return fmt.Errorf("%w: cannot write %s", ErrCategoryDeleted, h.name)
	}
	h.val.Store(h.typ.Truncate(value))
	return nil
}

func (h *RawHandle) RawValue() int64 {
	return h.val.Load()
}
