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
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/schemahub/schemahub/internal/blob"
	"github.com/schemahub/schemahub/internal/config"
	"github.com/schemahub/schemahub/internal/logging"
	"github.com/schemahub/schemahub/internal/metrics"
	"github.com/schemahub/schemahub/internal/registry"
	"github.com/schemahub/schemahub/internal/storage"
	"github.com/schemahub/schemahub/internal/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Storage.BlobRoot = t.TempDir()
	cfg.Logging.Level = "error"

	logger := logging.NewLogger(cfg.Logging)
	store := storage.NewMemoryStore(storage.MemoryConfig{})
	reg := registry.NewRegistry(store, blob.NewFileStore(), blob.NewLayout(cfg.Storage.BlobRoot), logger)

	return NewServer(cfg, reg, logger, metrics.NewProvider())
}

func multipartUpload(t *testing.T, application, service, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.WriteField("application", application); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	if service != "" {
		if err := writer.WriteField("service", service); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schemas/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doJSON(t *testing.T, srv *Server, req *http.Request, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

func validSchema() []byte {
	return []byte(`{"openapi": "3.0.0", "info": {"title": "petstore"}, "paths": {}}`)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/ready", nil), nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestUploadEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp types.UploadResponse
	w := doJSON(t, srv, multipartUpload(t, "checkout", "", "api.json", validSchema()), &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Message)
	}
	if resp.Version == nil || *resp.Version != 1 {
		t.Errorf("expected version 1, got %v", resp.Version)
	}
	if resp.SchemaInfo == nil || !resp.SchemaInfo.IsLatest {
		t.Error("expected latest schema info in response")
	}
	if resp.Message != "Schema uploaded successfully for checkout" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestUploadEndpointServiceScope(t *testing.T) {
	srv := newTestServer(t)

	var resp types.UploadResponse
	w := doJSON(t, srv, multipartUpload(t, "checkout", "payments", "api.yaml",
		[]byte("openapi: 3.0.0\ninfo:\n  title: payments\npaths: {}\n")), &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Message != "Schema uploaded successfully for checkout/payments" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestUploadEndpointMissingApplication(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "api.json")
	part.Write(validSchema())
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schemas/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := doJSON(t, srv, req, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUploadEndpointUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t)

	var resp types.UploadResponse
	w := doJSON(t, srv, multipartUpload(t, "checkout", "", "api.txt", validSchema()), &resp)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp.Message != "Only JSON and YAML files are supported" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestUploadEndpointValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	var resp types.UploadResponse
	w := doJSON(t, srv, multipartUpload(t, "checkout", "", "api.json",
		[]byte(`{"openapi": "3.0.0", "info": {}}`)), &resp)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp.Success {
		t.Error("expected rejection")
	}
	if resp.Message != "Schema validation failed: Missing 'paths' field" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestUploadEndpointEmptyFile(t *testing.T) {
	srv := newTestServer(t)

	var resp types.UploadResponse
	w := doJSON(t, srv, multipartUpload(t, "checkout", "", "api.json", nil), &resp)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp.Message != "File is empty" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestLatestEndpoint(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 2; i++ {
		doJSON(t, srv, multipartUpload(t, "checkout", "", "api.json", validSchema()), nil)
	}

	var resp types.SchemaResponse
	w := doJSON(t, srv,
		httptest.NewRequest(http.MethodGet, "/api/v1/schemas/latest?application=checkout", nil), &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.SchemaInfo.Version != 2 {
		t.Errorf("expected latest version 2, got %d", resp.SchemaInfo.Version)
	}
	if resp.Application.Name != "checkout" {
		t.Errorf("expected application checkout, got %q", resp.Application.Name)
	}
}

func TestLatestEndpointMissingApplication(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/schemas/latest", nil), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLatestEndpointNotFound(t *testing.T) {
	srv := newTestServer(t)

	var resp types.ErrorResponse
	w := doJSON(t, srv,
		httptest.NewRequest(http.MethodGet, "/api/v1/schemas/latest?application=ghost", nil), &resp)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %q", resp.Error.Code)
	}
}

func TestVersionsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		doJSON(t, srv, multipartUpload(t, "checkout", "", "api.json", validSchema()), nil)
	}

	var resp types.VersionListResponse
	w := doJSON(t, srv,
		httptest.NewRequest(http.MethodGet, "/api/v1/schemas/versions?application=checkout", nil), &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Count != 3 {
		t.Fatalf("expected 3 versions, got %d", resp.Count)
	}
	if resp.Versions[0].Version != 3 {
		t.Errorf("expected newest first, got version %d", resp.Versions[0].Version)
	}
}

func TestVersionsEndpointEmptyScope(t *testing.T) {
	srv := newTestServer(t)

	// The application exists through a service-scoped upload, but the
	// application-level scope itself has no versions
	doJSON(t, srv, multipartUpload(t, "checkout", "payments", "api.json", validSchema()), nil)

	var resp types.ErrorResponse
	w := doJSON(t, srv,
		httptest.NewRequest(http.MethodGet, "/api/v1/schemas/versions?application=checkout", nil), &resp)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for empty scope, got %d", w.Code)
	}
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %q", resp.Error.Code)
	}
}

func TestContentEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var uploadResp types.UploadResponse
	doJSON(t, srv, multipartUpload(t, "checkout", "", "api.json", validSchema()), &uploadResp)

	var resp types.ContentResponse
	path := fmt.Sprintf("/api/v1/schemas/%d/content", uploadResp.SchemaInfo.ID)
	w := doJSON(t, srv, httptest.NewRequest(http.MethodGet, path, nil), &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Content["openapi"] != "3.0.0" {
		t.Errorf("expected openapi field, got %v", resp.Content["openapi"])
	}
}

func TestContentEndpointBadID(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/schemas/abc/content", nil), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestContentEndpointNotFound(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/schemas/999/content", nil), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestApplicationsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, multipartUpload(t, "billing", "", "api.json", validSchema()), nil)
	doJSON(t, srv, multipartUpload(t, "checkout", "payments", "api.json", validSchema()), nil)

	var resp types.ApplicationListResponse
	w := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil), &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 applications, got %d", resp.Count)
	}
	if resp.Applications[0].Name != "billing" {
		t.Errorf("expected alphabetical order, got %q first", resp.Applications[0].Name)
	}
}

func TestServicesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	doJSON(t, srv, multipartUpload(t, "checkout", "payments", "api.json", validSchema()), nil)

	var resp types.ServiceListResponse
	w := doJSON(t, srv,
		httptest.NewRequest(http.MethodGet, "/api/v1/applications/checkout/services", nil), &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Count != 1 || resp.Services[0].Name != "payments" {
		t.Errorf("expected payments service, got %+v", resp.Services)
	}
}

func TestServicesEndpointUnknownApplication(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv,
		httptest.NewRequest(http.MethodGet, "/api/v1/applications/ghost/services", nil), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on response")
	}

	// An incoming request ID is echoed back
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "test-id-123" {
		t.Errorf("expected echoed request ID, got %q", got)
	}
}
