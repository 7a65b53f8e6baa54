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

package registry

import (
	"github.com/schemahub/schemahub/internal/storage"
	"github.com/schemahub/schemahub/internal/types"
)

// UploadRequest carries one schema document into the registry
type UploadRequest struct {
	Application     string
	Service         string // empty for application-level scope
	FileName        string
	Content         []byte
	ReplaceExisting bool
}

// UploadResult is the outcome of an upload attempt. Failed validation is
// reported here rather than as an error so callers can surface the message
// verbatim.
type UploadResult struct {
	Success bool
	Message string
	Code    string
	Version int
	Record  *storage.SchemaVersion
}

// SchemaDetail pairs a stored version with its scope entities
type SchemaDetail struct {
	Record      *storage.SchemaVersion
	Application *storage.Application
	Service     *storage.Service // nil for application-level records
}

// Info converts the detail to its wire representation
func (d *SchemaDetail) Info() types.SchemaResponse {
	resp := types.SchemaResponse{
		SchemaInfo:  d.Record.Info(),
		Application: d.Application.Info(),
	}
	if d.Service != nil {
		svcInfo := d.Service.Info()
		resp.Service = &svcInfo
	}
	return resp
}
