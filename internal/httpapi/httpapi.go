// Copyright 2021 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sensenet/perfcounters/pkg/counter"
	"github.com/sensenet/perfcounters/pkg/log"
)

const (
	componentName              = "CountersAPI"
	countersAPIPath            = "/v1/counters"
	counterAPIPath             = "/v1/counters/:name"
	incrementAPIPath           = "/v1/counters/:name/increment"
	decrementAPIPath           = "/v1/counters/:name/decrement"
	resetAPIPath               = "/v1/counters/:name/reset"
	systemAPIPath              = "/v1/system"
	metricsAPIPath             = "/metrics"
	statusAPIPathReady         = "/v1/status/ready"
	readinessProbeRetryBackoff = 100 * time.Millisecond
	readinessProbeTimeout      = 5 * time.Second
	shutdownTimeout            = 5 * time.Second
	maxBodySize                = 1 << 16
)

var (
	ErrURLUnreachable     = errors.New("cannot reach url")
	errCountersDisabled   = errors.New("performance counters are disabled")
	errUnknownCounter     = errors.New("performance counter does not exist")
	errMissingCounterBody = errors.New("value is required")
)

// Counters is the part of counter.Manager served over HTTP.
type Counters interface {
	Enabled() bool
	CategoryName() string
	Counters() []*counter.PerformanceCounter
	Counter(name string) (*counter.PerformanceCounter, bool)
	IncrementBy(name string, value int64) error
	Decrement(name string) error
	Reset(name string) error
	SetRawValue(name string, value int64) error
	CPUUsage() float64
	AvailableRAM() float64
}

type responseError struct {
	Error string `json:"error"`
}

type counterResponse struct {
	Name       string `json:"name"`
	Value      int64  `json:"value"`
	Accessible bool   `json:"accessible"`
}

type countersResponse struct {
	Enabled  bool              `json:"enabled"`
	Category string            `json:"category"`
	Counters []counterResponse `json:"counters"`
}

type systemResponse struct {
	CPUUsage     float64 `json:"cpuUsage"`
	AvailableRAM float64 `json:"availableRAM"`
}

type setValueRequest struct {
	Value *int64 `json:"value"`
}

// Server is the local counters HTTP API.
type Server struct {
	address   string
	counters  Counters
	gatherer  prometheus.Gatherer
	logger    log.Entry
	readyCh   chan struct{}
	readyOnce sync.Once
	timeout   time.Duration
}

// NewServer creates the API for counters listening on host:port. /metrics is only
// served when gatherer is not nil.
func NewServer(host string, port int, counters Counters, gatherer prometheus.Gatherer) *Server {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	return &Server{
		address:  address,
		counters: counters,
		gatherer: gatherer,
		logger:   log.WithComponent(componentName).WithField("address", address),
		readyCh:  make(chan struct{}),
		timeout:  readinessProbeTimeout,
	}
}

// Address the server listens on.
func (s *Server) Address() string {
	return s.address
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET(statusAPIPathReady, s.handleReady)
	router.GET(countersAPIPath, s.handleList)
	router.GET(counterAPIPath, s.handleGet)
	router.PUT(counterAPIPath, s.handleSet)
	router.POST(incrementAPIPath, s.handleIncrement)
	router.POST(decrementAPIPath, s.handleWrite(func(name string, _ *http.Request) error {
		return s.counters.Decrement(name)
	}))
	router.POST(resetAPIPath, s.handleWrite(func(name string, _ *http.Request) error {
		return s.counters.Reset(name)
	}))
	router.GET(systemAPIPath, s.handleSystem)
	if s.gatherer != nil {
		router.Handler(http.MethodGet, metricsAPIPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return router
}

// Serve listens until ctx is cancelled, then shuts the server down gracefully.
// It returns early with an error when the server cannot start.
func (s *Server) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.timeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		defer close(serverErr)
		s.logger.Debug("Counters API starting listening.")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := s.waitUntilReadyOrError(serverErr); err != nil {
		s.logger.WithError(err).Error("unable to start counters API")
		_ = server.Close()
		return err
	}
	s.markReady()
	s.logger.Info("Counters API started.")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	for range serverErr {
	}
	s.logger.Debug("Counters API stopped.")
	return err
}

// Ready is closed once Serve is accepting connections. It stays open when Serve fails.
func (s *Server) Ready() <-chan struct{} {
	return s.readyCh
}

// WaitUntilReady blocks until Serve is accepting connections.
func (s *Server) WaitUntilReady() {
	<-s.readyCh
}

func (s *Server) markReady() {
	s.readyOnce.Do(func() { close(s.readyCh) })
}

// waitUntilReadyOrError probes the ready endpoint until it answers, the server fails
// or the timeout expires.
func (s *Server) waitUntilReadyOrError(serverErrCh <-chan error) error {
	client := http.Client{Timeout: readinessProbeRetryBackoff * 10}
	url := fmt.Sprintf("http://%s%s", s.address, statusAPIPathReady)
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		if s.isGetSuccessful(client, url) {
			return nil
		}
		select {
		case err, ok := <-serverErrCh:
			if err != nil {
				return err
			}
			if !ok {
				return errors.Wrapf(ErrURLUnreachable, "server stopped before %s was ready", url)
			}
		case <-timer.C:
			return errors.Wrapf(ErrURLUnreachable, "error reading url: %s", url)
		default:
		}
		time.Sleep(readinessProbeRetryBackoff)
	}
}

func (s *Server) isGetSuccessful(c http.Client, url string) bool {
	req, err := http.NewRequest(http.MethodGet, url, bytes.NewReader([]byte{}))
	if err != nil {
		s.logger.Warnf("cannot create request for %s, error: %s", url, err)
		return false
	}
	resp, err := c.Do(req)
	if err != nil {
		s.logger.WithError(err).Debug("counters API readiness probe failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	counters := s.counters.Counters()
	resp := countersResponse{
		Enabled:  s.counters.Enabled(),
		Category: s.counters.CategoryName(),
		Counters: make([]counterResponse, 0, len(counters)),
	}
	for _, c := range counters {
		resp.Counters = append(resp.Counters, toResponse(c))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	c, ok := s.counters.Counter(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.Wrap(errUnknownCounter, name))
		return
	}
	s.writeJSON(w, http.StatusOK, toResponse(c))
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.handleWrite(func(name string, r *http.Request) error {
		by := int64(1)
		if raw := r.URL.Query().Get("by"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return badRequest{errors.Wrapf(err, "invalid by parameter %q", raw)}
			}
			by = v
		}
		return s.counters.IncrementBy(name, by)
	})(w, r, ps)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.handleWrite(func(name string, r *http.Request) error {
		var req setValueRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
			return badRequest{errors.Wrap(err, "cannot decode request body")}
		}
		if req.Value == nil {
			return badRequest{errMissingCounterBody}
		}
		return s.counters.SetRawValue(name, *req.Value)
	})(w, r, ps)
}

// handleWrite runs op against an existing counter of an enabled manager and answers
// with the counter state afterwards.
func (s *Server) handleWrite(op func(name string, r *http.Request) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		name := ps.ByName("name")
		if !s.counters.Enabled() {
			s.writeError(w, http.StatusConflict, errCountersDisabled)
			return
		}
		c, ok := s.counters.Counter(name)
		if !ok {
			s.writeError(w, http.StatusNotFound, errors.Wrap(errUnknownCounter, name))
			return
		}
		if err := op(name, r); err != nil {
			var br badRequest
			if errors.As(err, &br) {
				s.writeError(w, http.StatusBadRequest, br.err)
				return
			}
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.logger.WithFields(logrus.Fields{"counter": name, "path": r.URL.Path}).Debug("Counter updated.")
		s.writeJSON(w, http.StatusOK, toResponse(c))
	}
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, systemResponse{
		CPUUsage:     s.counters.CPUUsage(),
		AvailableRAM: s.counters.AvailableRAM(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		s.logger.WithError(err).Warn("couldn't encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if _, err = w.Write(b); err != nil {
		s.logger.WithError(err).Warn("cannot write HTTP response body")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, responseError{Error: err.Error()})
}

func toResponse(c *counter.PerformanceCounter) counterResponse {
	return counterResponse{
		Name:       c.Name(),
		Value:      c.RawValue(),
		Accessible: c.Accessible(),
	}
}

type badRequest struct {
	err error
}

func (b badRequest) Error() string {
	return b.err.Error()
}
