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

package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the durable byte persistence the registry writes canonical
// content through. Implementations must make intermediate directories on
// write and must treat deletion of a missing path as success.
type Store interface {
	Write(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// FileStore implements Store on the local filesystem
type FileStore struct{}

// NewFileStore creates a filesystem-backed blob store
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Write persists content at path, creating intermediate directories
// idempotently.
func (fs *FileStore) Write(ctx context.Context, path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	return nil
}

// Read returns the bytes stored at path
func (fs *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return content, nil
}

// Delete removes the blob at path. A missing blob is not an error.
func (fs *FileStore) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Exists reports whether a blob is present at path
func (fs *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat blob: %w", err)
}
