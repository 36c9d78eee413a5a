// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/sensenet/perfcounters/internal/httpapi"
	"github.com/sensenet/perfcounters/internal/service"
	"github.com/sensenet/perfcounters/pkg/config"
	"github.com/sensenet/perfcounters/pkg/counter"
	"github.com/sensenet/perfcounters/pkg/counter/promcounter"
	"github.com/sensenet/perfcounters/pkg/disk"
	"github.com/sensenet/perfcounters/pkg/helpers/recover"
	"github.com/sensenet/perfcounters/pkg/log"
	"github.com/sensenet/perfcounters/pkg/metrics"
)

var (
	configFile   string
	validate     bool
	showVersion  bool
	svcAction    string
	buildVersion = "development"
	gitCommit    = ""
	buildDate    = ""
)

func init() {
	flag.StringVar(&configFile, "config", "", "Overrides default configuration file")
	flag.BoolVar(&validate, "validate", false, "Validate config and exit")
	flag.BoolVar(&showVersion, "version", false, "Shows version details")
	flag.StringVar(&svcAction, "service", "", "Control the system service: install, uninstall, start, stop or restart")
}

var alog = log.WithComponent("SenseNet Performance Counters")

func main() {
	flag.Parse()

	defer recover.PanicHandler(recover.LogAndFail)

	memLog := log.NewMemLogger(os.Stdout)
	log.SetOutput(memLog)

	if showVersion {
		fmt.Printf("Sense/Net performance counters version: %s, GoVersion: %s, GitCommit: %s, BuildDate: %s\n",
			buildVersion, runtime.Version(), gitCommit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(configFile)

	if validate {
		if err != nil {
			alog.Info(fmt.Sprintf("config validation failed with error: %s", err.Error()))
			os.Exit(0)
		}
		alog.Info("config validation finished without errors")
		os.Exit(0)
	}

	if err != nil {
		alog.WithError(err).Error("can't load configuration file")
		os.Exit(1)
	}

	if err = log.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		alog.WithError(err).Error("can't configure logging")
		os.Exit(1)
	}

	// Send logging where it's supposed to go.
	closeLog := configureLogRedirection(&cfg.Log, memLog)
	defer closeLog()

	cfg.LogInfo()

	if err = run(cfg); err != nil {
		alog.WithError(err).Error("Performance counters service returned an error.")
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	provider, gatherer := newProvider(cfg)
	poller := metrics.NewSystemPoller(cfg.SystemSampleInterval())

	counter.Configure(cfg, provider, poller)
	manager := counter.Current()

	var api service.APIServer
	if cfg.HTTPServerEnabled {
		api = httpapi.NewServer(cfg.HTTPServerHost, cfg.HTTPServerPort, manager, gatherer)
	}

	svc, err := service.New(service.NewProgram(manager, api), serviceArgs()...)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	if svcAction != "" {
		if err = service.Control(svc, svcAction); err != nil {
			return err
		}
		alog.WithField("action", svcAction).Info("Service action done.")
		return nil
	}

	return svc.Run()
}

// newProvider returns the category store selected by the configuration, and the
// gatherer to expose on /metrics when there is one.
func newProvider(cfg *config.Config) (counter.Provider, prometheus.Gatherer) {
	if cfg.CounterProvider == config.ProviderMemory {
		return counter.NewMemoryProvider(), nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promcounter.NewProvider(registry), registry
}

// serviceArgs are the arguments the installed service is launched with.
func serviceArgs() []string {
	if configFile == "" {
		return nil
	}
	abs, err := filepath.Abs(configFile)
	if err != nil {
		abs = configFile
	}
	return []string{"-config", abs}
}

// Either route logging to stdout, or copy it to stdout and a log file so nothing is
// lost when running as a service.
func configureLogRedirection(config *config.LogConfig, memLog *log.MemLogger) (closeFn func()) {
	closeFn = func() {}
	if config.File == "" {
		log.SetOutput(os.Stdout)
		return
	}

	logFile, err := disk.OpenLogFile(config.File)
	if err != nil {
		alog.WithField("action", "configureLogRedirection").WithError(err).Error("Can't open log file.")
		os.Exit(1)
	}

	alog.WithFields(logrus.Fields{
		"action":      "configureLogRedirection",
		"logFile":     config.File,
		"logToStdout": config.IsStdoutEnabled(),
	}).Debug("Redirecting output to a file.")

	// Write all previous logs, which are stored in memLog, to the file.
	if _, err = memLog.WriteBuffer(logFile); err != nil {
		log.WithError(err).Debug("Failed writing log to file.")
	}
	log.SetOutput(log.NewStdoutTeeLogger(logFile, config.IsStdoutEnabled()))

	return func() {
		log.SetOutput(io.Discard)
		_ = logFile.Close()
	}
}
