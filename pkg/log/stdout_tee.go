// Copyright New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"io"
	"os"
)

// stdoutTeeLogger copies all output to both stdout and the log file. When the
// process runs as a Windows service nothing captures stdout, so the file is
// the only place left to look.
type stdoutTeeLogger struct {
	writer io.Writer
	stdout io.Writer
}

// NewStdoutTeeLogger return an io.Writer that can redirect to stdout if needed.
func NewStdoutTeeLogger(writer io.Writer, stdout bool) io.Writer {
	var out io.Writer
	if stdout {
		out = os.Stdout
	}
	return newTeeLogger(writer, out)
}

func newTeeLogger(writer, stdout io.Writer) io.Writer {
	return &stdoutTeeLogger{
		writer: writer,
		stdout: stdout,
	}
}

func (s *stdoutTeeLogger) Write(b []byte) (n int, err error) {
	if s.stdout != nil {
		_, _ = s.stdout.Write(b)
	}
	return s.writer.Write(b)
}
