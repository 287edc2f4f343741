// Package api provides the HTTP surface of the search engine: the
// /search contract plus a liveness probe.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/klappy/bible-search-engine/pkg/core"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second

	// writeTimeout must exceed the hard search deadline plus
	// serialization slack, or the server would cut off legitimately slow
	// responses.
	writeTimeout = 10 * time.Second
)

// API is the HTTP server that exposes the search orchestrator.
type API struct {
	svc    Service
	config Config
}

// Config holds the configuration for the API server.
type Config struct {
	Listen string `mapstructure:"listen"`
}

// Service is the orchestrator-facing contract.
type Service interface {
	Search(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error)
}

// New creates a new API instance with the provided configuration and
// search service. It validates the configuration and returns an error if
// the listen address is not specified.
func New(cfg Config, svc Service) (*API, error) {
	if cfg.Listen == "" {
		return nil, fmt.Errorf("listen address must be specified")
	}

	return &API{config: cfg, svc: svc}, nil
}

// Run starts the API server on the configured address and handles graceful
// shutdown. When the context is cancelled, in-flight requests are given a
// grace period to complete before the server is forcefully closed.
func (a *API) Run(ctx context.Context) error {
	s := &http.Server{
		Addr:              a.config.Listen,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		Handler:           a.newMux(),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		slog.WarnContext(ctx, "shutting down API server")

		if err := s.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "graceful shutdown failed, forcing close", "error", err)

			if closeErr := s.Close(); closeErr != nil {
				slog.ErrorContext(ctx, "forced close failed", "error", closeErr)
			}
		}
	}()

	if err := s.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}
