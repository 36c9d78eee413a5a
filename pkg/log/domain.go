// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// counters domain features
package log

import (
	"github.com/sirupsen/logrus"
)

// WithComponent decorates log context with the component name
func WithComponent(name string) Entry {
	return func() *logrus.Entry {
		return w.l.WithField("component", name)
	}
}

// WithComponent decorates entry context with the component name
func (e Entry) WithComponent(name string) Entry {
	return func() *logrus.Entry {
		return e().WithField("component", name)
	}
}

// WithCounter decorates log context with a performance counter name
func WithCounter(name string) Entry {
	return func() *logrus.Entry {
		return w.l.WithField("counter", name)
	}
}

// WithCounter decorates entry context with a performance counter name
func (e Entry) WithCounter(name string) Entry {
	return func() *logrus.Entry {
		return e().WithField("counter", name)
	}
}

// WithCategory decorates entry context with a counter category name
func (e Entry) WithCategory(name string) Entry {
	return func() *logrus.Entry {
		return e().WithField("category", name)
	}
}
