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

package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned by CommitNewLatest when the record's
// version is no longer the next sequential version for its scope. Callers
// recompute the version and retry.
var ErrVersionConflict = errors.New("version conflict")

// MetadataStore defines the metadata persistence contract consumed by the
// registry. It owns the version ledger: version-number allocation and the
// single-latest-pointer invariant per scope.
type MetadataStore interface {
	// Scope entities, created lazily on first upload
	GetOrCreateApplication(ctx context.Context, name string) (*Application, error)
	GetOrCreateService(ctx context.Context, name string, applicationID uint) (*Service, error)
	FindApplication(ctx context.Context, name string) (*Application, error)
	FindService(ctx context.Context, name string, applicationID uint) (*Service, error)
	ListApplications(ctx context.Context) ([]*Application, error)
	ListServices(ctx context.Context, applicationID uint) ([]*Service, error)

	// Version ledger operations. CommitNewLatest atomically verifies that
	// record.Version is still max(version)+1 for the scope, clears the
	// latest flag on every existing record in the scope, and inserts the
	// record with IsLatest set. A stale version yields ErrVersionConflict.
	NextVersion(ctx context.Context, applicationID uint, serviceID *uint) (int, error)
	CommitNewLatest(ctx context.Context, record *SchemaVersion) error

	// Read paths; all observe a consistent snapshot
	GetLatest(ctx context.Context, applicationID uint, serviceID *uint) (*SchemaVersion, error)
	ListVersions(ctx context.Context, applicationID uint, serviceID *uint) ([]*SchemaVersion, error)
	GetVersion(ctx context.Context, id uint) (*SchemaVersion, error)

	// Maintenance operations
	Close() error
	HealthCheck(ctx context.Context) error
}

// Config defines configuration for metadata store implementations
type Config struct {
	Type string `yaml:"type" json:"type"` // "memory" or "database"

	// Memory store config
	Memory *MemoryConfig `yaml:"memory,omitempty" json:"memory,omitempty"`

	// Database store config
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`
}

// MemoryConfig configures the in-memory store
type MemoryConfig struct {
	MaxVersionsPerScope int `yaml:"max_versions_per_scope" json:"max_versions_per_scope"` // 0 = unlimited
}

// DatabaseConfig configures the database store
type DatabaseConfig struct {
	Driver           string `yaml:"driver" json:"driver"`
	ConnectionString string `yaml:"connection_string" json:"connection_string"`
	MaxConnections   int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleTime      int    `yaml:"max_idle_time" json:"max_idle_time"`
	AutoMigrate      bool   `yaml:"auto_migrate" json:"auto_migrate"`
}
