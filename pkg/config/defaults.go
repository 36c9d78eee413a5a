// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package config

const (
	// Plain text log format.
	LogFormatText = "text"
	// JSON log format.
	LogFormatJSON = "json"

	LogLevelInfo  = "info"
	LogLevelDebug = "debug"

	// ProviderMemory keeps the counter categories in process memory.
	ProviderMemory = "memory"
	// ProviderPrometheus exposes the counter categories as Prometheus gauges.
	ProviderPrometheus = "prometheus"

	envPrefix = "snpc"
)

// Default configurable values
var (
	DefaultCategoryName            = "SenseNet"
	DefaultCategoryHelp            = "Performance counters of Sense/Net"
	DefaultCounterProvider         = ProviderPrometheus
	DefaultSystemSampleIntervalSec = 3
	DefaultHTTPServerHost          = "localhost"
	DefaultHTTPServerPort          = 8004
)
