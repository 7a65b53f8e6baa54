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
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schemahub/schemahub/internal/document"
	"github.com/schemahub/schemahub/internal/errors"
	"github.com/schemahub/schemahub/internal/registry"
	"github.com/schemahub/schemahub/internal/types"
)

// handleHealth reports liveness
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleReady reports readiness, including metadata store connectivity
func (s *Server) handleReady(c *gin.Context) {
	if err := s.registry.HealthCheck(c.Request.Context()); err != nil {
		regErr := errors.Wrap(errors.ErrServiceUnavailable, "metadata store unavailable", err)
		c.JSON(regErr.GetHTTPStatus(), regErr.ToErrorResponse())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
	})
}

// handleUpload accepts a multipart schema upload. The replace_existing
// form field only changes the response message; storage is append-only
// either way.
func (s *Server) handleUpload(c *gin.Context) {
	start := time.Now()

	application := c.PostForm("application")
	if application == "" {
		s.respondWithBadRequest(c, "application form field is required")
		return
	}
	service := c.PostForm("service")
	replaceExisting := c.PostForm("replace_existing") == "true"

	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.respondWithBadRequest(c, "file form field is required")
		return
	}

	format, err := document.FormatFromFilename(fileHeader.Filename)
	if err != nil {
		s.respondWithUploadRejection(c, string(errors.ErrUnsupportedFormat),
			"Only JSON and YAML files are supported")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.respondWithError(c, errors.NewInternalError("failed to open uploaded file", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondWithError(c, errors.NewInternalError("failed to read uploaded file", err))
		return
	}

	result, err := s.registry.Upload(c.Request.Context(), registry.UploadRequest{
		Application:     application,
		Service:         service,
		FileName:        fileHeader.Filename,
		Content:         content,
		ReplaceExisting: replaceExisting,
	})
	if err != nil {
		if s.config.Metrics.Enabled {
			s.metrics.ObserveUpload("error", string(format), int64(len(content)), time.Since(start))
		}
		s.respondWithError(c, err)
		return
	}

	if !result.Success {
		if s.config.Metrics.Enabled {
			s.metrics.ObserveUpload("rejected", string(format), int64(len(content)), time.Since(start))
		}
		s.respondWithUploadRejection(c, result.Code, result.Message)
		return
	}

	if s.config.Metrics.Enabled {
		s.metrics.ObserveUpload("success", string(format), result.Record.FileSize, time.Since(start))
	}

	info := result.Record.Info()
	version := result.Version
	c.JSON(http.StatusOK, types.UploadResponse{
		Success:    true,
		Message:    result.Message,
		SchemaInfo: &info,
		Version:    &version,
	})
}

// handleGetLatest returns the latest schema version for a scope
func (s *Server) handleGetLatest(c *gin.Context) {
	application := c.Query("application")
	if application == "" {
		s.respondWithBadRequest(c, "application query parameter is required")
		return
	}
	service := c.Query("service")

	detail, err := s.registry.GetLatest(c.Request.Context(), application, service)
	if err != nil {
		s.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail.Info())
}

// handleListVersions returns all schema versions for a scope, newest first
func (s *Server) handleListVersions(c *gin.Context) {
	application := c.Query("application")
	if application == "" {
		s.respondWithBadRequest(c, "application query parameter is required")
		return
	}
	service := c.Query("service")

	details, err := s.registry.ListVersions(c.Request.Context(), application, service)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	// A known scope with no committed versions is still 404 on this
	// endpoint; the scope entity alone is not a listable resource.
	if len(details) == 0 {
		s.respondWithError(c, errors.NewNotFoundError("schema"))
		return
	}

	versions := make([]types.SchemaInfo, 0, len(details))
	for _, detail := range details {
		versions = append(versions, detail.Record.Info())
	}

	c.JSON(http.StatusOK, types.VersionListResponse{
		Application: application,
		Service:     service,
		Versions:    versions,
		Count:       len(versions),
	})
}

// handleGetContent returns one stored schema version with its document
func (s *Server) handleGetContent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		s.respondWithBadRequest(c, "schema id must be a positive integer")
		return
	}

	record, content, err := s.registry.GetContent(c.Request.Context(), uint(id))
	if err != nil {
		s.respondWithError(c, err)
		return
	}

	doc, err := document.DecodeAs(content, document.Format(record.FileFormat))
	if err != nil {
		s.respondWithError(c, errors.NewInternalError("stored schema file is unreadable", err))
		return
	}

	c.JSON(http.StatusOK, types.ContentResponse{
		SchemaInfo: record.Info(),
		Content:    doc,
	})
}

// handleListApplications returns all known applications
func (s *Server) handleListApplications(c *gin.Context) {
	apps, err := s.registry.ListApplications(c.Request.Context())
	if err != nil {
		s.respondWithError(c, err)
		return
	}

	infos := make([]types.ApplicationInfo, 0, len(apps))
	for _, app := range apps {
		infos = append(infos, app.Info())
	}

	c.JSON(http.StatusOK, types.ApplicationListResponse{
		Applications: infos,
		Count:        len(infos),
	})
}

// handleListServices returns all services of one application
func (s *Server) handleListServices(c *gin.Context) {
	application := c.Param("application")

	svcs, err := s.registry.ListServices(c.Request.Context(), application)
	if err != nil {
		s.respondWithError(c, err)
		return
	}

	infos := make([]types.ServiceInfo, 0, len(svcs))
	for _, svc := range svcs {
		infos = append(infos, svc.Info())
	}

	c.JSON(http.StatusOK, types.ServiceListResponse{
		Application: application,
		Services:    infos,
		Count:       len(infos),
	})
}
