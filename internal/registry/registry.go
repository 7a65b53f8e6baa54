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
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/schemahub/schemahub/internal/blob"
	"github.com/schemahub/schemahub/internal/document"
	"github.com/schemahub/schemahub/internal/errors"
	"github.com/schemahub/schemahub/internal/logging"
	"github.com/schemahub/schemahub/internal/storage"
)

// maxCommitRetries bounds the recompute-and-retry loop on version conflicts
const maxCommitRetries = 3

// Registry coordinates document validation, blob persistence, and the
// version ledger. Upload is the only mutating operation; everything else
// is a read path.
type Registry struct {
	store  storage.MetadataStore
	blobs  blob.Store
	layout blob.Layout
	logger *logging.Logger

	// Per-scope upload locks. Serializing uploads within one scope keeps
	// the common case conflict-free; the ledger's commit-time verification
	// covers racers from other processes.
	scopeLocks sync.Map // scope key -> *sync.Mutex
}

// NewRegistry creates a new registry instance
func NewRegistry(store storage.MetadataStore, blobs blob.Store, layout blob.Layout, logger *logging.Logger) *Registry {
	return &Registry{
		store:  store,
		blobs:  blobs,
		layout: layout,
		logger: logger.WithComponent("registry"),
	}
}

// Upload validates, persists, and versions one schema document. Validation
// failures are reported in the result with Success false; errors are
// reserved for infrastructure failures.
func (r *Registry) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	start := time.Now()

	result, err := r.upload(ctx, req)

	version := 0
	status := "rejected"
	if result != nil {
		version = result.Version
		if result.Success {
			status = "committed"
		} else if result.Code != "" {
			status = result.Code
		}
	}
	if err != nil {
		status = string(errors.CodeOf(err))
	}
	r.logger.LogUpload(req.Application, req.Service, version, status, time.Since(start), err)

	return result, err
}

func (r *Registry) upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Application == "" {
		return nil, errors.New(errors.ErrInvalidRequestFormat, "application name is required")
	}
	if len(req.Content) == 0 {
		return rejected(errors.ErrEmptyInput, "File is empty"), nil
	}

	format, err := document.FormatFromFilename(req.FileName)
	if err != nil {
		return resultFromError(err)
	}

	doc, err := document.DecodeAs(req.Content, format)
	if err != nil {
		return resultFromError(err)
	}

	if err := document.Validate(doc); err != nil {
		return resultFromError(err)
	}

	app, err := r.store.GetOrCreateApplication(ctx, req.Application)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to resolve application", err)
	}

	var serviceID *uint
	if req.Service != "" {
		svc, err := r.store.GetOrCreateService(ctx, req.Service, app.ID)
		if err != nil {
			return nil, errors.NewPersistenceError("failed to resolve service", err)
		}
		serviceID = &svc.ID
	}

	// Canonical encoding: the stored bytes, checksum, and size come from
	// the re-encoded document, not the uploaded raw bytes.
	content, err := document.Encode(doc, format)
	if err != nil {
		return nil, err
	}
	checksum := document.Checksum(content)

	record, err := r.commit(ctx, req, app.ID, serviceID, format, content, checksum, document.Info(doc))
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		Success: true,
		Message: uploadMessage(req),
		Version: record.Version,
		Record:  record,
	}, nil
}

// commit writes the blob and commits the ledger record, retrying on version
// conflicts. The blob path embeds the version number, so a conflict means
// the written blob is stale: it is removed and rewritten under the
// recomputed version.
func (r *Registry) commit(ctx context.Context, req UploadRequest, applicationID uint, serviceID *uint, format document.Format, content []byte, checksum string, docInfo map[string]interface{}) (*storage.SchemaVersion, error) {
	lock := r.scopeLock(applicationID, serviceID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		version, err := r.store.NextVersion(ctx, applicationID, serviceID)
		if err != nil {
			return nil, errors.NewPersistenceError("failed to allocate version", err)
		}

		path := r.layout.ResolvePath(req.Application, req.Service, req.FileName, version, format)
		if err := r.blobs.Write(ctx, path, content); err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("failed to write schema file: %s", path), err)
		}

		record := &storage.SchemaVersion{
			Version:       version,
			FileName:      req.FileName,
			FilePath:      path,
			FileFormat:    string(format),
			FileSize:      int64(len(content)),
			Checksum:      checksum,
			ApplicationID: applicationID,
			ServiceID:     serviceID,
		}
		if err := record.SetDocInfo(docInfo); err != nil {
			r.cleanupBlob(ctx, path)
			return nil, errors.NewInternalError("failed to serialize document info", err)
		}

		err = r.store.CommitNewLatest(ctx, record)
		if err == nil {
			return record, nil
		}

		// The blob on disk belongs to a version that will never commit
		r.cleanupBlob(ctx, path)

		if stderrors.Is(err, storage.ErrVersionConflict) {
			lastErr = err
			continue
		}
		return nil, errors.NewPersistenceError("failed to commit schema version", err)
	}

	return nil, errors.NewPersistenceError(
		fmt.Sprintf("failed to commit schema version after %d attempts", maxCommitRetries), lastErr)
}

// cleanupBlob removes an orphaned blob, logging rather than failing on error
func (r *Registry) cleanupBlob(ctx context.Context, path string) {
	if err := r.blobs.Delete(ctx, path); err != nil {
		r.logger.Errorf(err, "failed to remove orphaned schema file: %s", path)
	}
}

// scopeLock returns the upload mutex for one scope
func (r *Registry) scopeLock(applicationID uint, serviceID *uint) *sync.Mutex {
	key := fmt.Sprintf("%d", applicationID)
	if serviceID != nil {
		key = fmt.Sprintf("%d/%d", applicationID, *serviceID)
	}
	actual, _ := r.scopeLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// uploadMessage builds the user-facing success message
func uploadMessage(req UploadRequest) string {
	scope := req.Application
	if req.Service != "" {
		scope = req.Application + "/" + req.Service
	}
	if req.ReplaceExisting {
		return fmt.Sprintf("Schema replaced successfully for %s", scope)
	}
	return fmt.Sprintf("Schema uploaded successfully for %s", scope)
}

// rejected builds a failed UploadResult
func rejected(code errors.ErrorCode, message string) *UploadResult {
	return &UploadResult{
		Success: false,
		Message: message,
		Code:    string(code),
	}
}

// resultFromError maps a user-correctable validation error to a failed
// result; infrastructure errors pass through. Structural rejections carry
// the "Schema validation failed:" prefix on the wire.
func resultFromError(err error) (*UploadResult, error) {
	if regErr, ok := errors.AsRegistryError(err); ok && regErr.IsUserError() {
		message := regErr.Message
		if regErr.Code == errors.ErrSchemaValidationFailed {
			message = "Schema validation failed: " + message
		}
		return rejected(regErr.Code, message), nil
	}
	return nil, err
}

// GetLatest returns the latest schema version for a scope
func (r *Registry) GetLatest(ctx context.Context, application, service string) (*SchemaDetail, error) {
	app, svc, err := r.resolveScope(ctx, application, service)
	if err != nil {
		return nil, err
	}

	record, err := r.store.GetLatest(ctx, app.ID, serviceIDOf(svc))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("schema")
		}
		return nil, errors.NewPersistenceError("failed to get latest schema", err)
	}

	return &SchemaDetail{Record: record, Application: app, Service: svc}, nil
}

// ListVersions returns all schema versions for a scope, newest first
func (r *Registry) ListVersions(ctx context.Context, application, service string) ([]*SchemaDetail, error) {
	app, svc, err := r.resolveScope(ctx, application, service)
	if err != nil {
		return nil, err
	}

	records, err := r.store.ListVersions(ctx, app.ID, serviceIDOf(svc))
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list schema versions", err)
	}

	details := make([]*SchemaDetail, 0, len(records))
	for _, record := range records {
		details = append(details, &SchemaDetail{Record: record, Application: app, Service: svc})
	}
	return details, nil
}

// GetContent returns one stored schema version and its file content
func (r *Registry) GetContent(ctx context.Context, id uint) (*storage.SchemaVersion, []byte, error) {
	record, err := r.store.GetVersion(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil, errors.NewNotFoundError("schema")
		}
		return nil, nil, errors.NewPersistenceError("failed to get schema version", err)
	}

	content, err := r.blobs.Read(ctx, record.FilePath)
	if err != nil {
		return nil, nil, errors.NewStorageError(
			fmt.Sprintf("failed to read schema file: %s", record.FilePath), err)
	}

	return record, content, nil
}

// ListApplications returns all known applications
func (r *Registry) ListApplications(ctx context.Context) ([]*storage.Application, error) {
	apps, err := r.store.ListApplications(ctx)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list applications", err)
	}
	return apps, nil
}

// ListServices returns all services of one application
func (r *Registry) ListServices(ctx context.Context, application string) ([]*storage.Service, error) {
	app, err := r.store.FindApplication(ctx, application)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("application %q", application))
		}
		return nil, errors.NewPersistenceError("failed to find application", err)
	}

	svcs, err := r.store.ListServices(ctx, app.ID)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list services", err)
	}
	return svcs, nil
}

// HealthCheck verifies the metadata store is reachable
func (r *Registry) HealthCheck(ctx context.Context) error {
	return r.store.HealthCheck(ctx)
}

// resolveScope looks up an existing application and optional service; it
// never creates them. Read paths on unknown scopes return NOT_FOUND.
func (r *Registry) resolveScope(ctx context.Context, application, service string) (*storage.Application, *storage.Service, error) {
	if application == "" {
		return nil, nil, errors.New(errors.ErrInvalidRequestFormat, "application name is required")
	}

	app, err := r.store.FindApplication(ctx, application)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil, errors.NewNotFoundError(fmt.Sprintf("application %q", application))
		}
		return nil, nil, errors.NewPersistenceError("failed to find application", err)
	}

	if service == "" {
		return app, nil, nil
	}

	svc, err := r.store.FindService(ctx, service, app.ID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil, errors.NewNotFoundError(fmt.Sprintf("service %q", service))
		}
		return nil, nil, errors.NewPersistenceError("failed to find service", err)
	}
	return app, svc, nil
}

// serviceIDOf returns the service's ID pointer, or nil for the
// application-level scope.
func serviceIDOf(svc *storage.Service) *uint {
	if svc == nil {
		return nil
	}
	return &svc.ID
}
