// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCounter(t *testing.T) {
	var output bytes.Buffer
	SetOutput(&output)

	WithCounter("GapSize").Warn("counter is gone")

	written := output.String()
	assert.Contains(t, written, "counter is gone")
	assert.Contains(t, written, "counter=GapSize")
}

func TestEntry_WithComponent_WithCategory_WithCounter(t *testing.T) {
	var output bytes.Buffer
	SetOutput(&output)

	WithComponent("CounterManager").WithCategory("SenseNet").WithCounter("IncomingMessages").Warn("some msg")

	written := output.String()
	assert.Contains(t, written, "component=CounterManager")
	assert.Contains(t, written, "category=SenseNet")
	assert.Contains(t, written, "counter=IncomingMessages")
}
