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
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/schemahub/schemahub/internal/blob"
	"github.com/schemahub/schemahub/internal/config"
	"github.com/schemahub/schemahub/internal/document"
	"github.com/schemahub/schemahub/internal/errors"
	"github.com/schemahub/schemahub/internal/logging"
	"github.com/schemahub/schemahub/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return newTestRegistryWith(t, storage.NewMemoryStore(storage.MemoryConfig{}), blob.NewFileStore())
}

func newTestRegistryWith(t *testing.T, store storage.MetadataStore, blobs blob.Store) *Registry {
	t.Helper()
	logger := logging.NewLogger(config.LoggingConfig{Level: "error"})
	return NewRegistry(store, blobs, blob.NewLayout(t.TempDir()), logger)
}

func validJSON() []byte {
	return []byte(`{"openapi": "3.0.0", "info": {"title": "petstore", "version": "1.0"}, "paths": {}}`)
}

func uploadReq(application, service string) UploadRequest {
	return UploadRequest{
		Application: application,
		Service:     service,
		FileName:    "api.json",
		Content:     validJSON(),
	}
}

func TestUploadAssignsSequentialVersions(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		result, err := reg.Upload(ctx, uploadReq("checkout", ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Success {
			t.Fatalf("expected success, got %q", result.Message)
		}
		if result.Version != want {
			t.Errorf("expected version %d, got %d", want, result.Version)
		}
	}

	latest, err := reg.GetLatest(ctx, "checkout", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Record.Version != 3 {
		t.Errorf("expected latest version 3, got %d", latest.Record.Version)
	}
	if !latest.Record.IsLatest {
		t.Error("expected latest flag on newest record")
	}
}

func TestUploadSingleLatestPerScope(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := reg.Upload(ctx, uploadReq("checkout", "")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	details, err := reg.ListVersions(ctx, "checkout", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	latestCount := 0
	for _, detail := range details {
		if detail.Record.IsLatest {
			latestCount++
		}
	}
	if latestCount != 1 {
		t.Errorf("expected exactly one latest record, got %d", latestCount)
	}
}

func TestUploadChecksumMatchesStoredFile(t *testing.T) {
	reg := newTestRegistry(t)

	result, err := reg.Upload(context.Background(), uploadReq("checkout", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(result.Record.FilePath)
	if err != nil {
		t.Fatalf("failed to read stored file: %v", err)
	}
	if got := document.Checksum(content); got != result.Record.Checksum {
		t.Errorf("checksum mismatch: record %s, file %s", result.Record.Checksum, got)
	}
	if int64(len(content)) != result.Record.FileSize {
		t.Errorf("size mismatch: record %d, file %d", result.Record.FileSize, len(content))
	}
}

func TestUploadStoresCanonicalContent(t *testing.T) {
	reg := newTestRegistry(t)

	// Compact input; stored bytes must be the canonical re-encoding, so
	// a semantically identical upload yields an identical checksum.
	first, err := reg.Upload(context.Background(), UploadRequest{
		Application: "checkout",
		FileName:    "api.json",
		Content:     []byte(`{"paths":{},"openapi":"3.0.0","info":{"title":"t"}}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := reg.Upload(context.Background(), UploadRequest{
		Application: "checkout",
		FileName:    "api.json",
		Content:     []byte(`{"openapi":"3.0.0","paths":{},"info":{"title":"t"}}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Record.Checksum != second.Record.Checksum {
		t.Error("expected identical checksums for semantically identical documents")
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	reg := newTestRegistry(t)

	result, err := reg.Upload(context.Background(), UploadRequest{
		Application: "checkout",
		FileName:    "api.json",
		Content:     nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected rejection")
	}
	if result.Message != "File is empty" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if result.Code != string(errors.ErrEmptyInput) {
		t.Errorf("expected EMPTY_INPUT, got %s", result.Code)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	reg := newTestRegistry(t)

	result, err := reg.Upload(context.Background(), UploadRequest{
		Application: "checkout",
		FileName:    "api.txt",
		Content:     validJSON(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected rejection")
	}
	if result.Code != string(errors.ErrUnsupportedFormat) {
		t.Errorf("expected UNSUPPORTED_FORMAT, got %s", result.Code)
	}
}

func TestUploadRejectsNonUTF8(t *testing.T) {
	reg := newTestRegistry(t)

	result, err := reg.Upload(context.Background(), UploadRequest{
		Application: "checkout",
		FileName:    "api.json",
		Content:     []byte{0xff, 0xfe, 0x01},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected rejection")
	}
	if result.Code != string(errors.ErrEncodingError) {
		t.Errorf("expected ENCODING_ERROR, got %s", result.Code)
	}
}

func TestUploadRejectsInvalidDocument(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	result, err := reg.Upload(ctx, UploadRequest{
		Application: "checkout",
		FileName:    "api.json",
		Content:     []byte(`{"openapi": "3.0.0", "info": {}}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected rejection")
	}
	if result.Message != "Schema validation failed: Missing 'paths' field" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if result.Code != string(errors.ErrSchemaValidationFailed) {
		t.Errorf("expected SCHEMA_VALIDATION_FAILED, got %s", result.Code)
	}

	// A rejected upload must not create the scope
	if _, err := reg.GetLatest(ctx, "checkout", ""); errors.CodeOf(err) != errors.ErrNotFound {
		t.Errorf("expected NOT_FOUND after rejected upload, got %v", err)
	}
}

func TestUploadScopeIndependence(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Upload(ctx, uploadReq("checkout", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reg.Upload(ctx, uploadReq("checkout", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := reg.Upload(ctx, uploadReq("checkout", "payments"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Version != 1 {
		t.Errorf("expected service scope to start at version 1, got %d", result.Version)
	}

	appLatest, err := reg.GetLatest(ctx, "checkout", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appLatest.Record.Version != 2 {
		t.Errorf("expected application latest 2, got %d", appLatest.Record.Version)
	}
}

func TestUploadReplaceMessage(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	req := uploadReq("checkout", "payments")
	req.ReplaceExisting = true

	result, err := reg.Upload(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "Schema replaced successfully for checkout/payments" {
		t.Errorf("unexpected message: %q", result.Message)
	}

	// ReplaceExisting changes the message only, never the version sequence
	if result.Version != 1 {
		t.Errorf("expected version 1, got %d", result.Version)
	}
}

func TestUploadConcurrentSameScope(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	const workers = 8
	versions := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := reg.Upload(ctx, uploadReq("checkout", ""))
			if err != nil {
				t.Errorf("worker %d: unexpected error: %v", i, err)
				return
			}
			versions[i] = result.Version
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, v := range versions {
		if seen[v] {
			t.Errorf("duplicate version %d", v)
		}
		seen[v] = true
	}
	for want := 1; want <= workers; want++ {
		if !seen[want] {
			t.Errorf("missing version %d", want)
		}
	}
}

func TestGetLatestUnknownApplication(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.GetLatest(context.Background(), "ghost", "")
	if errors.CodeOf(err) != errors.ErrNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetLatestUnknownService(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Upload(ctx, uploadReq("checkout", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := reg.GetLatest(ctx, "checkout", "ghost")
	if errors.CodeOf(err) != errors.ErrNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetContentRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	result, err := reg.Upload(ctx, uploadReq("checkout", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, content, err := reg.GetContent(ctx, result.Record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ID != result.Record.ID {
		t.Errorf("expected record %d, got %d", result.Record.ID, record.ID)
	}

	doc, err := document.DecodeAs(content, document.Format(record.FileFormat))
	if err != nil {
		t.Fatalf("stored content unreadable: %v", err)
	}
	if doc["openapi"] != "3.0.0" {
		t.Errorf("expected openapi 3.0.0, got %v", doc["openapi"])
	}
}

func TestGetContentUnknownID(t *testing.T) {
	reg := newTestRegistry(t)

	_, _, err := reg.GetContent(context.Background(), 999)
	if errors.CodeOf(err) != errors.ErrNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListScopes(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Upload(ctx, uploadReq("billing", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reg.Upload(ctx, uploadReq("checkout", "payments")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	apps, err := reg.ListApplications(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(apps))
	}

	svcs, err := reg.ListServices(ctx, "checkout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svcs) != 1 || svcs[0].Name != "payments" {
		t.Errorf("expected payments service, got %+v", svcs)
	}

	if _, err := reg.ListServices(ctx, "ghost"); errors.CodeOf(err) != errors.ErrNotFound {
		t.Errorf("expected NOT_FOUND for unknown application, got %v", err)
	}
}

// failingBlobStore rejects all writes
type failingBlobStore struct {
	blob.Store
}

func (failingBlobStore) Write(ctx context.Context, path string, content []byte) error {
	return fmt.Errorf("disk full")
}

func TestUploadBlobWriteFailure(t *testing.T) {
	store := storage.NewMemoryStore(storage.MemoryConfig{})
	reg := newTestRegistryWith(t, store, failingBlobStore{Store: blob.NewFileStore()})
	ctx := context.Background()

	_, err := reg.Upload(ctx, uploadReq("checkout", ""))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.CodeOf(err) != errors.ErrStorageIO {
		t.Errorf("expected STORAGE_IO_ERROR, got %v", err)
	}

	// No metadata may be recorded for the failed upload
	app, appErr := store.FindApplication(ctx, "checkout")
	if appErr != nil {
		t.Fatalf("unexpected error: %v", appErr)
	}
	if _, err := store.GetLatest(ctx, app.ID, nil); !stderrors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no committed version, got %v", err)
	}
}

// conflictingStore forces NextVersion to hand out a stale value once
type conflictingStore struct {
	storage.MetadataStore
	mu       sync.Mutex
	conflict bool
}

func (cs *conflictingStore) NextVersion(ctx context.Context, applicationID uint, serviceID *uint) (int, error) {
	next, err := cs.MetadataStore.NextVersion(ctx, applicationID, serviceID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.conflict {
		cs.conflict = true
		return next + 1, nil // stale preview, commit will reject it
	}
	return next, err
}

func TestUploadRetriesOnVersionConflict(t *testing.T) {
	inner := storage.NewMemoryStore(storage.MemoryConfig{})
	reg := newTestRegistryWith(t, &conflictingStore{MetadataStore: inner}, blob.NewFileStore())
	ctx := context.Background()

	result, err := reg.Upload(ctx, uploadReq("checkout", ""))
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if result.Version != 1 {
		t.Errorf("expected version 1 after retry, got %d", result.Version)
	}

	// The blob written under the stale version must be gone
	stale := strings.Replace(result.Record.FilePath, "_v1.", "_v2.", 1)
	if _, statErr := os.Stat(stale); !os.IsNotExist(statErr) {
		t.Errorf("expected stale blob %s to be removed", stale)
	}
	if _, statErr := os.Stat(result.Record.FilePath); statErr != nil {
		t.Errorf("expected committed blob to exist: %v", statErr)
	}
}

// brokenCommitStore fails every commit with a non-conflict error
type brokenCommitStore struct {
	storage.MetadataStore
}

func (brokenCommitStore) CommitNewLatest(ctx context.Context, record *storage.SchemaVersion) error {
	return fmt.Errorf("connection lost")
}

func TestUploadCommitFailureCleansBlob(t *testing.T) {
	inner := storage.NewMemoryStore(storage.MemoryConfig{})
	reg := newTestRegistryWith(t, brokenCommitStore{MetadataStore: inner}, blob.NewFileStore())
	ctx := context.Background()

	_, err := reg.Upload(ctx, uploadReq("checkout", ""))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.CodeOf(err) != errors.ErrPersistenceFailed {
		t.Errorf("expected PERSISTENCE_ERROR, got %v", err)
	}

	// The orphaned blob must have been removed
	root := reg.layout.Root()
	entries, readErr := os.ReadDir(root)
	if readErr != nil {
		t.Fatalf("unexpected error: %v", readErr)
	}
	for _, entry := range entries {
		sub, _ := os.ReadDir(root + "/" + entry.Name())
		if len(sub) != 0 {
			t.Errorf("expected no blobs left under %s", entry.Name())
		}
	}
}
