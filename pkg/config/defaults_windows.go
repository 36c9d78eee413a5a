// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//go:build windows
// +build windows

package config

import (
	"os"
	"path/filepath"
)

var defaultConfigFiles = []string{
	"sn-perfcounters.yml",
	filepath.Join(programData(), "SenseNet", "sn-perfcounters.yml"),
}

func programData() string {
	if dir := os.Getenv("ProgramData"); dir != "" {
		return dir
	}
	return `C:\ProgramData`
}
