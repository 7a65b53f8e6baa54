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
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DatabaseStore implements MetadataStore on a relational database via gorm
type DatabaseStore struct {
	config DatabaseConfig
	db     *gorm.DB
}

// NewDatabaseStore creates a new database store instance. If dbOverride is
// non-nil, it is used (for testing).
func NewDatabaseStore(config DatabaseConfig, dbOverride ...*gorm.DB) (*DatabaseStore, error) {
	var db *gorm.DB
	var err error
	if len(dbOverride) > 0 && dbOverride[0] != nil {
		db = dbOverride[0]
	} else {
		db, err = gorm.Open(
			postgres.New(postgres.Config{
				DriverName: config.Driver,
				DSN:        config.ConnectionString,
			}),
			&gorm.Config{},
		)
		if err != nil {
			return nil, err
		}

		// Set connection pool settings
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if config.MaxConnections > 0 {
			sqlDB.SetMaxOpenConns(config.MaxConnections)
		}
		if config.MaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Second)
		}

		if config.AutoMigrate {
			if err := db.AutoMigrate(&Application{}, &Service{}, &SchemaVersion{}); err != nil {
				return nil, fmt.Errorf("failed to migrate schema registry tables: %w", err)
			}
		}
	}
	return &DatabaseStore{
		config: config,
		db:     db,
	}, nil
}

// scopeWhere narrows a query to one (application, optional service) scope.
// Application-level records carry a NULL service_id.
func scopeWhere(q *gorm.DB, applicationID uint, serviceID *uint) *gorm.DB {
	q = q.Where("application_id = ?", applicationID)
	if serviceID != nil {
		return q.Where("service_id = ?", *serviceID)
	}
	return q.Where("service_id IS NULL")
}

// GetOrCreateApplication returns the named application, creating it on
// first use.
func (ds *DatabaseStore) GetOrCreateApplication(ctx context.Context, name string) (*Application, error) {
	if name == "" {
		return nil, fmt.Errorf("application name cannot be empty")
	}

	var app Application
	err := ds.db.WithContext(ctx).Where("name = ?", name).First(&app).Error
	if err == nil {
		return &app, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up application: %w", err)
	}

	app = Application{Name: name}
	if createErr := ds.db.WithContext(ctx).Create(&app).Error; createErr != nil {
		// A concurrent upload may have created it between the lookup and
		// the insert; re-read before giving up.
		if isUniqueViolation(createErr) {
			if err := ds.db.WithContext(ctx).Where("name = ?", name).First(&app).Error; err == nil {
				return &app, nil
			}
		}
		return nil, fmt.Errorf("failed to create application: %w", createErr)
	}
	return &app, nil
}

// GetOrCreateService returns the named service within an application,
// creating it on first use.
func (ds *DatabaseStore) GetOrCreateService(ctx context.Context, name string, applicationID uint) (*Service, error) {
	if name == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}

	var svc Service
	err := ds.db.WithContext(ctx).
		Where("name = ? AND application_id = ?", name, applicationID).
		First(&svc).Error
	if err == nil {
		return &svc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up service: %w", err)
	}

	svc = Service{Name: name, ApplicationID: applicationID}
	if createErr := ds.db.WithContext(ctx).Create(&svc).Error; createErr != nil {
		if isUniqueViolation(createErr) {
			if err := ds.db.WithContext(ctx).
				Where("name = ? AND application_id = ?", name, applicationID).
				First(&svc).Error; err == nil {
				return &svc, nil
			}
		}
		return nil, fmt.Errorf("failed to create service: %w", createErr)
	}
	return &svc, nil
}

// FindApplication returns the named application or ErrNotFound
func (ds *DatabaseStore) FindApplication(ctx context.Context, name string) (*Application, error) {
	var app Application
	if err := ds.db.WithContext(ctx).Where("name = ?", name).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up application: %w", err)
	}
	return &app, nil
}

// FindService returns the named service within an application or ErrNotFound
func (ds *DatabaseStore) FindService(ctx context.Context, name string, applicationID uint) (*Service, error) {
	var svc Service
	if err := ds.db.WithContext(ctx).
		Where("name = ? AND application_id = ?", name, applicationID).
		First(&svc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up service: %w", err)
	}
	return &svc, nil
}

// ListApplications returns all applications ordered by name
func (ds *DatabaseStore) ListApplications(ctx context.Context) ([]*Application, error) {
	var apps []*Application
	if err := ds.db.WithContext(ctx).Order("name").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// ListServices returns all services of an application ordered by name
func (ds *DatabaseStore) ListServices(ctx context.Context, applicationID uint) ([]*Service, error) {
	var svcs []*Service
	if err := ds.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("name").
		Find(&svcs).Error; err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return svcs, nil
}

// NextVersion returns 1 + max(existing version numbers) for the scope, or 1
// for an empty scope. The value is advisory; CommitNewLatest re-verifies it
// inside the commit transaction.
func (ds *DatabaseStore) NextVersion(ctx context.Context, applicationID uint, serviceID *uint) (int, error) {
	var max int
	err := scopeWhere(ds.db.WithContext(ctx).Model(&SchemaVersion{}), applicationID, serviceID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute next version: %w", err)
	}
	return max + 1, nil
}

// CommitNewLatest atomically commits a new schema version as the scope's
// latest. Within one transaction it re-verifies that record.Version is
// still max+1 for the scope, clears the latest flag on all existing
// records, and inserts the record with IsLatest set. A stale version, or a
// unique-index violation from a concurrent racer, yields
// ErrVersionConflict so the caller can recompute and retry.
func (ds *DatabaseStore) CommitNewLatest(ctx context.Context, record *SchemaVersion) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.Version < 1 {
		return fmt.Errorf("record version must be positive, got %d", record.Version)
	}

	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var max int
		if err := scopeWhere(tx.Model(&SchemaVersion{}), record.ApplicationID, record.ServiceID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&max).Error; err != nil {
			return fmt.Errorf("failed to verify next version: %w", err)
		}
		if record.Version != max+1 {
			return ErrVersionConflict
		}

		if err := scopeWhere(tx.Model(&SchemaVersion{}), record.ApplicationID, record.ServiceID).
			Where("is_latest = ?", true).
			Update("is_latest", false).Error; err != nil {
			return fmt.Errorf("failed to clear latest flag: %w", err)
		}

		record.IsLatest = true
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to insert schema version: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || isUniqueViolation(err) {
			record.ID = 0 // allow a clean re-insert on retry
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

// GetLatest returns the scope's record with IsLatest set, or ErrNotFound
// for an empty or unknown scope.
func (ds *DatabaseStore) GetLatest(ctx context.Context, applicationID uint, serviceID *uint) (*SchemaVersion, error) {
	var record SchemaVersion
	err := scopeWhere(ds.db.WithContext(ctx), applicationID, serviceID).
		Where("is_latest = ?", true).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return &record, nil
}

// ListVersions returns all records of a scope ordered by version descending
func (ds *DatabaseStore) ListVersions(ctx context.Context, applicationID uint, serviceID *uint) ([]*SchemaVersion, error) {
	var records []*SchemaVersion
	err := scopeWhere(ds.db.WithContext(ctx), applicationID, serviceID).
		Order("version DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return records, nil
}

// GetVersion returns one record by primary key, or ErrNotFound
func (ds *DatabaseStore) GetVersion(ctx context.Context, id uint) (*SchemaVersion, error) {
	var record SchemaVersion
	if err := ds.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	return &record, nil
}

// Close closes the underlying database connection
func (ds *DatabaseStore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck verifies database connectivity
func (ds *DatabaseStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// isUniqueViolation reports whether err is a unique-constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// Fallback for mocked or non-postgres drivers
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
