/*
 * Copyright 2025 SchemaHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schemahub/schemahub/internal/config"
	"github.com/schemahub/schemahub/internal/logging"
	"github.com/schemahub/schemahub/internal/metrics"
	"github.com/schemahub/schemahub/internal/middleware"
	"github.com/schemahub/schemahub/internal/registry"
)

// Server is the HTTP front end of the schema registry
type Server struct {
	config     *config.Config
	registry   *registry.Registry
	logger     *logging.Logger
	metrics    *metrics.Provider
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, reg *registry.Registry, logger *logging.Logger, provider *metrics.Provider) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   cfg,
		registry: reg,
		logger:   logger.WithComponent("server"),
		metrics:  provider,
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// buildRouter assembles middleware and routes
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(s.logger))
	if s.config.Metrics.Enabled {
		router.Use(middleware.Metrics(s.metrics))
	}
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)
	if s.config.Metrics.Enabled {
		router.GET(s.config.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		schemas := v1.Group("/schemas")
		{
			schemas.POST("/upload",
				middleware.RequestSizeLimit(s.config.Server.MaxUploadBytes),
				s.handleUpload)
			schemas.GET("/latest", s.handleGetLatest)
			schemas.GET("/versions", s.handleListVersions)
			schemas.GET("/:id/content", s.handleGetContent)
		}

		v1.GET("/applications", s.handleListApplications)
		v1.GET("/applications/:application/services", s.handleListServices)
	}

	return router
}

// Router exposes the gin engine for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start begins listening for HTTP requests; it blocks until shutdown
func (s *Server) Start() error {
	s.logger.Infof("Starting schema registry server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down schema registry server")
	return s.httpServer.Shutdown(ctx)
}
