// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//go:build !windows
// +build !windows

package config

var defaultConfigFiles = []string{
	"sn-perfcounters.yml",
	"/etc/sensenet/sn-perfcounters.yml",
}
