// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/multierr"

	"github.com/sensenet/perfcounters/pkg/log"
)

const (
	svcName        = "sn-perfcounters"
	svcDisplayName = "Sense/Net performance counters"
	svcDescription = "Keeps the Sense/Net performance counter category up to date."
)

var (
	GracefulExitTimeout    = 10 * time.Second
	GracefulExitTimeoutErr = errors.New("graceful stop time exceeded... forcing stop")
	ErrUnknownAction       = errors.New("unknown service action")
	ErrStartFailed         = errors.New("counter manager failed to start")

	slog = log.WithComponent("Service")
)

// Lifecycle is the start and stop hooks of the counter manager.
type Lifecycle interface {
	Start() bool
	Shutdown()
}

// APIServer is a server running until its context is cancelled.
type APIServer interface {
	Serve(ctx context.Context) error
	// Ready is closed once the server accepts connections.
	Ready() <-chan struct{}
}

// Program provides the hooks the service manager uses to start and stop the counters.
type Program struct {
	sync.Mutex // the service manager can call the hooks from different routines.
	manager    Lifecycle
	api        APIServer
	cancel     context.CancelFunc
	apiErrC    chan error
}

// NewProgram creates the service hooks. api may be nil when the HTTP API is disabled.
func NewProgram(manager Lifecycle, api APIServer) *Program {
	return &Program{
		manager: manager,
		api:     api,
	}
}

// New wraps p into a system service. args are passed to the binary when the service
// manager launches it.
func New(p *Program, args ...string) (service.Service, error) {
	cfg := &service.Config{
		Name:        svcName,
		DisplayName: svcDisplayName,
		Description: svcDescription,
		Arguments:   args,
	}
	return service.New(p, cfg)
}

// Control runs one of the service manager actions: install, uninstall, start, stop or restart.
func Control(s service.Service, action string) error {
	for _, known := range service.ControlAction {
		if action == known {
			return service.Control(s, action)
		}
	}
	return fmt.Errorf("%w: %q, valid actions are %v", ErrUnknownAction, action, service.ControlAction)
}

// Start is called when the service manager tells us to start.
func (p *Program) Start(_ service.Service) error {
	p.Lock()
	defer p.Unlock()

	if !p.manager.Start() {
		return ErrStartFailed
	}
	if p.api == nil || p.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.apiErrC = make(chan error, 1)
	go func(errC chan<- error) {
		errC <- p.api.Serve(ctx)
		close(errC)
	}(p.apiErrC)

	select {
	case <-p.api.Ready():
	case err := <-p.apiErrC:
		// the server gave up before becoming ready
		p.cancel()
		p.cancel = nil
		return err
	}

	slog.Info("Service started.")
	return nil
}

// Stop is called when the service manager commands us to stop.
func (p *Program) Stop(_ service.Service) (err error) {
	p.Lock()
	defer p.Unlock()

	slog.Info("Service is stopping.")

	if p.cancel != nil {
		p.cancel()
		err = multierr.Append(err, waitForExitOrTimeout(p.apiErrC))
		p.cancel = nil
	}
	p.manager.Shutdown()

	return err
}

// Shutdown is called in Windows only, when the machine is shutting down.
func (p *Program) Shutdown(s service.Service) error {
	return p.Stop(s)
}

func waitForExitOrTimeout(errC <-chan error) error {
	select {
	case <-time.After(GracefulExitTimeout):
		return GracefulExitTimeoutErr
	case err := <-errC:
		return err
	}
}
