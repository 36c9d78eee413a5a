// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package disk opens the files the process writes to.
package disk

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	logDirPerm  os.FileMode = 0o755
	logFilePerm os.FileMode = 0o600
)

// OpenLogFile opens path for appending, creating the file and its missing parent
// directories.
func OpenLogFile(path string) (*os.File, error) {
	if err := mkdirAll(filepath.Dir(path), logDirPerm); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := openFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
