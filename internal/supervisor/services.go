// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// WorkerRunner is the subset of internal/worker.Worker this package
// depends on, kept as an interface so supervisor tests never need a
// real database or peer client.
type WorkerRunner interface {
	Run(ctx context.Context)
}

// WorkerService adapts a WorkerRunner to suture.Service. Run already
// blocks until its context is cancelled and never returns an error, so
// Serve simply forwards cancellation.
type WorkerService struct {
	runner WorkerRunner
}

// NewWorkerService wraps runner for the worker layer supervisor.
func NewWorkerService(runner WorkerRunner) *WorkerService {
	return &WorkerService{runner: runner}
}

// Serve runs the worker's tick loop until ctx is cancelled.
func (s *WorkerService) Serve(ctx context.Context) error {
	s.runner.Run(ctx)
	return ctx.Err()
}

// HTTPServerService adapts an *http.Server to suture.Service: ListenAndServe
// runs in the foreground, and context cancellation triggers a bounded
// graceful shutdown.
type HTTPServerService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server for the api layer supervisor.
// shutdownTimeout bounds how long in-flight requests are given to finish
// once the context is cancelled; zero falls back to 10s.
func NewHTTPServerService(server *http.Server, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve starts the HTTP server and blocks until it stops or ctx is
// cancelled, in which case it attempts a graceful shutdown.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return ctx.Err()
	}
}
