// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package log

import (
	"io"
	"sync"
)

// MemLogger keeps a copy of everything written before the final log output
// is known, so it can be replayed into the log file later on.
type MemLogger struct {
	mu     sync.Mutex
	buf    []byte
	writer io.Writer
}

func NewMemLogger(writer io.Writer) *MemLogger {
	return &MemLogger{
		writer: writer,
	}
}

func (mem *MemLogger) Write(b []byte) (n int, err error) {
	mem.mu.Lock()
	mem.buf = append(mem.buf, b...)
	mem.mu.Unlock()
	return mem.writer.Write(b)
}

// WriteBuffer replays the buffered output into writer.
func (mem *MemLogger) WriteBuffer(writer io.Writer) (n int, err error) {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	return writer.Write(mem.buf)
}
