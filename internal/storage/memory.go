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
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements MetadataStore using in-memory maps. Used for
// tests and development mode; a single mutex serializes commits, which
// satisfies the ledger's atomicity requirements trivially.
type MemoryStore struct {
	config       MemoryConfig
	mu           sync.RWMutex
	applications map[string]*Application
	services     map[uint]map[string]*Service // applicationID -> name -> service
	versions     map[string][]*SchemaVersion  // scope key -> records in commit order
	nextAppID    uint
	nextSvcID    uint
	nextVerID    uint
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore(config MemoryConfig) *MemoryStore {
	return &MemoryStore{
		config:       config,
		applications: make(map[string]*Application),
		services:     make(map[uint]map[string]*Service),
		versions:     make(map[string][]*SchemaVersion),
		nextAppID:    1,
		nextSvcID:    1,
		nextVerID:    1,
	}
}

func scopeKey(applicationID uint, serviceID *uint) string {
	if serviceID != nil {
		return fmt.Sprintf("%d/%d", applicationID, *serviceID)
	}
	return fmt.Sprintf("%d", applicationID)
}

// GetOrCreateApplication returns the named application, creating it on
// first use.
func (ms *MemoryStore) GetOrCreateApplication(ctx context.Context, name string) (*Application, error) {
	if name == "" {
		return nil, fmt.Errorf("application name cannot be empty")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if app, exists := ms.applications[name]; exists {
		cp := *app
		return &cp, nil
	}

	now := time.Now().UTC()
	app := &Application{
		ID:        ms.nextAppID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ms.nextAppID++
	ms.applications[name] = app
	cp := *app
	return &cp, nil
}

// GetOrCreateService returns the named service within an application,
// creating it on first use.
func (ms *MemoryStore) GetOrCreateService(ctx context.Context, name string, applicationID uint) (*Service, error) {
	if name == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	byName, ok := ms.services[applicationID]
	if !ok {
		byName = make(map[string]*Service)
		ms.services[applicationID] = byName
	}
	if svc, exists := byName[name]; exists {
		cp := *svc
		return &cp, nil
	}

	now := time.Now().UTC()
	svc := &Service{
		ID:            ms.nextSvcID,
		Name:          name,
		ApplicationID: applicationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ms.nextSvcID++
	byName[name] = svc
	cp := *svc
	return &cp, nil
}

// FindApplication returns the named application or ErrNotFound
func (ms *MemoryStore) FindApplication(ctx context.Context, name string) (*Application, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	app, exists := ms.applications[name]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *app
	return &cp, nil
}

// FindService returns the named service within an application or ErrNotFound
func (ms *MemoryStore) FindService(ctx context.Context, name string, applicationID uint) (*Service, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	svc, exists := ms.services[applicationID][name]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

// ListApplications returns all applications ordered by name
func (ms *MemoryStore) ListApplications(ctx context.Context) ([]*Application, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	apps := make([]*Application, 0, len(ms.applications))
	for _, app := range ms.applications {
		cp := *app
		apps = append(apps, &cp)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}

// ListServices returns all services of an application ordered by name
func (ms *MemoryStore) ListServices(ctx context.Context, applicationID uint) ([]*Service, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	svcs := make([]*Service, 0, len(ms.services[applicationID]))
	for _, svc := range ms.services[applicationID] {
		cp := *svc
		svcs = append(svcs, &cp)
	}
	sort.Slice(svcs, func(i, j int) bool { return svcs[i].Name < svcs[j].Name })
	return svcs, nil
}

// NextVersion returns 1 + max(existing version numbers) for the scope
func (ms *MemoryStore) NextVersion(ctx context.Context, applicationID uint, serviceID *uint) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.maxVersionLocked(applicationID, serviceID) + 1, nil
}

func (ms *MemoryStore) maxVersionLocked(applicationID uint, serviceID *uint) int {
	max := 0
	for _, rec := range ms.versions[scopeKey(applicationID, serviceID)] {
		if rec.Version > max {
			max = rec.Version
		}
	}
	return max
}

// CommitNewLatest atomically commits a new schema version as the scope's
// latest. See MetadataStore for the contract.
func (ms *MemoryStore) CommitNewLatest(ctx context.Context, record *SchemaVersion) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.Version < 1 {
		return fmt.Errorf("record version must be positive, got %d", record.Version)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := scopeKey(record.ApplicationID, record.ServiceID)

	if ms.config.MaxVersionsPerScope > 0 && len(ms.versions[key]) >= ms.config.MaxVersionsPerScope {
		return fmt.Errorf("storage capacity exceeded: max %d versions per scope", ms.config.MaxVersionsPerScope)
	}

	if record.Version != ms.maxVersionLocked(record.ApplicationID, record.ServiceID)+1 {
		return ErrVersionConflict
	}

	for _, rec := range ms.versions[key] {
		rec.IsLatest = false
	}

	record.ID = ms.nextVerID
	ms.nextVerID++
	record.IsLatest = true
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	cp := *record
	ms.versions[key] = append(ms.versions[key], &cp)
	return nil
}

// GetLatest returns the scope's latest record or ErrNotFound
func (ms *MemoryStore) GetLatest(ctx context.Context, applicationID uint, serviceID *uint) (*SchemaVersion, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, rec := range ms.versions[scopeKey(applicationID, serviceID)] {
		if rec.IsLatest {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListVersions returns all records of a scope ordered by version descending
func (ms *MemoryStore) ListVersions(ctx context.Context, applicationID uint, serviceID *uint) ([]*SchemaVersion, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	records := ms.versions[scopeKey(applicationID, serviceID)]
	out := make([]*SchemaVersion, 0, len(records))
	for _, rec := range records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// GetVersion returns one record by ID or ErrNotFound
func (ms *MemoryStore) GetVersion(ctx context.Context, id uint) (*SchemaVersion, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, records := range ms.versions {
		for _, rec := range records {
			if rec.ID == id {
				cp := *rec
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

// Close is a no-op for the memory store
func (ms *MemoryStore) Close() error {
	return nil
}

// HealthCheck always succeeds for the memory store
func (ms *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}
