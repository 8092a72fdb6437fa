// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianPlanner/services/planner/config"
	"github.com/AleutianAI/AleutianPlanner/services/planner/storage/badger"
	"github.com/AleutianAI/AleutianPlanner/services/planner/telemetry"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 15 * time.Second

// Server owns the planner service, its result store and its router.
//
// Description:
//
//	New opens the result store when storage is enabled, creates the
//	service metrics from the global meter provider, and builds the router.
//	Telemetry exporters are initialised by the caller before New so the
//	metrics and the otelgin middleware bind to them.
//
// Thread Safety: Run may be called once. Close is idempotent.
type Server struct {
	config  config.Config
	db      *badger.DB
	service *Service
	router  *gin.Engine
	logger  *slog.Logger
}

// New creates a Server.
//
// Inputs:
//   - cfg: The validated configuration.
//   - logger: The process logger. Nil uses slog.Default().
//
// Outputs:
//   - *Server: The server. Call Close when done.
//   - error: Storage or metrics initialisation failure.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{config: cfg, logger: logger}

	var store *badger.ResultStore
	if cfg.Storage.Enabled {
		dbCfg := cfg.Storage.Badger
		dbCfg.Logger = logger
		db, err := badger.Open(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("open result store: %w", err)
		}
		s.db = db
		store, err = badger.NewResultStore(db)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create result store: %w", err)
		}
	}

	metrics, err := telemetry.NewMetrics(otel.Meter(cfg.Telemetry.ServiceName))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	s.service = NewService(cfg, store, metrics, logger)
	s.router = s.initRouter(metrics)
	return s, nil
}

// initRouter creates the Gin engine, applies middleware, and registers
// all routes.
func (s *Server) initRouter(metrics *telemetry.Metrics) *gin.Engine {
	gin.SetMode(s.config.Server.GinMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.config.Telemetry.ServiceName))
	router.Use(RequestIDMiddleware())
	router.Use(BodyLimitMiddleware(s.config.Server.MaxBodyBytes))
	router.Use(telemetry.MetricsMiddleware(metrics))
	router.Use(telemetry.RequestLogger(s.logger))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}
	RegisterRoutes(router.Group("/v1"), NewHandlers(s.service, s.logger))
	return router
}

// Service returns the planner service.
func (s *Server) Service() *Service {
	return s.service
}

// Router returns the HTTP router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// Outputs:
//   - error: A listen failure or a shutdown failure. Nil after a clean
//     shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting planner server", "addr", s.config.Server.Addr, "storage", s.service.StorageEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down planner server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the result store.
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
