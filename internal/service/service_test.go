// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeManager struct {
	startOK   bool
	started   atomic.Int32
	shutdowns atomic.Int32
}

func (m *fakeManager) Start() bool {
	m.started.Add(1)
	return m.startOK
}

func (m *fakeManager) Shutdown() { m.shutdowns.Add(1) }

type fakeAPI struct {
	startErr error
	stopErr  error
	ready    chan struct{}
	stopped  atomic.Bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{ready: make(chan struct{})}
}

func (a *fakeAPI) Serve(ctx context.Context) error {
	if a.startErr != nil {
		return a.startErr
	}
	close(a.ready)
	<-ctx.Done()
	a.stopped.Store(true)
	return a.stopErr
}

func (a *fakeAPI) Ready() <-chan struct{} { return a.ready }

func TestProgram_StartStop(t *testing.T) {
	defer leaktest.Check(t)()

	m := &fakeManager{startOK: true}
	api := newFakeAPI()
	p := NewProgram(m, api)

	require.NoError(t, p.Start(nil))
	assert.EqualValues(t, 1, m.started.Load())

	require.NoError(t, p.Stop(nil))
	assert.True(t, api.stopped.Load())
	assert.EqualValues(t, 1, m.shutdowns.Load())
}

func TestProgram_WithoutAPI(t *testing.T) {
	m := &fakeManager{startOK: true}
	p := NewProgram(m, nil)

	require.NoError(t, p.Start(nil))
	require.NoError(t, p.Shutdown(nil))
	assert.EqualValues(t, 1, m.shutdowns.Load())
}

func TestProgram_ManagerStartFailure(t *testing.T) {
	api := newFakeAPI()
	p := NewProgram(&fakeManager{}, api)

	assert.ErrorIs(t, p.Start(nil), ErrStartFailed)
	select {
	case <-api.ready:
		t.Fatal("API must not be served when the manager did not start")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestProgram_APIStartFailure(t *testing.T) {
	defer leaktest.Check(t)()

	m := &fakeManager{startOK: true}
	api := newFakeAPI()
	api.startErr = errors.New("address already in use")
	p := NewProgram(m, api)

	assert.EqualError(t, p.Start(nil), "address already in use")
	require.NoError(t, p.Stop(nil))
	assert.EqualValues(t, 1, m.shutdowns.Load())
}

func TestProgram_StopReportsAPIError(t *testing.T) {
	defer leaktest.Check(t)()

	api := newFakeAPI()
	api.stopErr = errors.New("shutdown deadline")
	p := NewProgram(&fakeManager{startOK: true}, api)

	require.NoError(t, p.Start(nil))
	assert.EqualError(t, p.Stop(nil), "shutdown deadline")
}

func TestWaitForExitOrTimeout(t *testing.T) {
	prev := GracefulExitTimeout
	GracefulExitTimeout = 10 * time.Millisecond
	defer func() { GracefulExitTimeout = prev }()

	assert.Equal(t, GracefulExitTimeoutErr, waitForExitOrTimeout(make(chan error)))

	done := make(chan error)
	close(done)
	assert.NoError(t, waitForExitOrTimeout(done))
}

func TestControl_UnknownAction(t *testing.T) {
	err := Control(nil, "reboot")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
