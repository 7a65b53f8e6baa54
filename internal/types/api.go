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

// Package types defines the wire-level request and response structures
// shared by the HTTP server and the admin CLI.
package types

import "time"

// ErrorDetail carries structured error information in API responses
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// SchemaInfo describes one persisted schema version
type SchemaInfo struct {
	ID            uint                   `json:"id"`
	Version       int                    `json:"version"`
	FileName      string                 `json:"file_name"`
	FilePath      string                 `json:"file_path"`
	FileFormat    string                 `json:"file_format"`
	FileSize      int64                  `json:"file_size"`
	Checksum      string                 `json:"checksum"`
	IsLatest      bool                   `json:"is_latest"`
	ApplicationID uint                   `json:"application_id"`
	ServiceID     *uint                  `json:"service_id,omitempty"`
	DocInfo       map[string]interface{} `json:"doc_info,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ApplicationInfo describes a registered application scope
type ApplicationInfo struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ServiceInfo describes a registered service scope within an application
type ServiceInfo struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ApplicationID uint      `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// UploadResponse is returned by POST /api/v1/schemas/upload
type UploadResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	SchemaInfo *SchemaInfo `json:"schema_info,omitempty"`
	Version    *int        `json:"version,omitempty"`
}

// SchemaResponse is returned by GET /api/v1/schemas/latest
type SchemaResponse struct {
	SchemaInfo  SchemaInfo      `json:"schema_info"`
	Application ApplicationInfo `json:"application"`
	Service     *ServiceInfo    `json:"service,omitempty"`
}

// VersionListResponse is returned by GET /api/v1/schemas/versions
type VersionListResponse struct {
	Application string       `json:"application"`
	Service     string       `json:"service,omitempty"`
	Versions    []SchemaInfo `json:"versions"`
	Count       int          `json:"count"`
}

// ContentResponse is returned by GET /api/v1/schemas/:id/content
type ContentResponse struct {
	SchemaInfo SchemaInfo             `json:"schema_info"`
	Content    map[string]interface{} `json:"content"`
}

// ApplicationListResponse is returned by GET /api/v1/applications
type ApplicationListResponse struct {
	Applications []ApplicationInfo `json:"applications"`
	Count        int               `json:"count"`
}

// ServiceListResponse is returned by GET /api/v1/applications/:application/services
type ServiceListResponse struct {
	Application string        `json:"application"`
	Services    []ServiceInfo `json:"services"`
	Count       int           `json:"count"`
}
