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
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/schemahub/schemahub/internal/types"
)

// Application model. Applications are created lazily on first upload and
// never deleted by the registry.
type Application struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()" json:"updated_at"`

	// Relationships
	Services []Service       `gorm:"foreignKey:ApplicationID" json:"-"`
	Versions []SchemaVersion `gorm:"foreignKey:ApplicationID" json:"-"`
}

// Service model, unique by name within its application
type Service struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Name          string    `gorm:"size:255;not null;uniqueIndex:idx_services_app_name" json:"name"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	ApplicationID uint      `gorm:"not null;uniqueIndex:idx_services_app_name" json:"application_id"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null;default:now()" json:"updated_at"`

	// Relationships
	Versions []SchemaVersion `gorm:"foreignKey:ServiceID" json:"-"`
}

// SchemaVersion model, one persisted document revision. Records are never
// mutated after commit except for the IsLatest flag, which the ledger flips
// when a newer record in the same scope becomes latest.
type SchemaVersion struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Version       int            `gorm:"not null;uniqueIndex:idx_scope_version" json:"version"`
	FileName      string         `gorm:"size:255;not null" json:"file_name"`
	FilePath      string         `gorm:"size:500;not null" json:"file_path"`
	FileFormat    string         `gorm:"size:10;not null" json:"file_format"` // json or yaml
	FileSize      int64          `gorm:"not null" json:"file_size"`
	Checksum      string         `gorm:"size:64;not null" json:"checksum"` // hex SHA-256
	IsLatest      bool           `gorm:"not null;default:false;index" json:"is_latest"`
	ApplicationID uint           `gorm:"not null;uniqueIndex:idx_scope_version" json:"application_id"`
	ServiceID     *uint          `gorm:"uniqueIndex:idx_scope_version" json:"service_id,omitempty"`
	DocInfo       datatypes.JSON `gorm:"type:jsonb" json:"doc_info,omitempty"`
	CreatedAt     time.Time      `gorm:"type:timestamptz;not null;default:now()" json:"created_at"`
}

// TableName specify table name
func (Application) TableName() string {
	return "applications"
}

func (Service) TableName() string {
	return "services"
}

func (SchemaVersion) TableName() string {
	return "schema_versions"
}

// SetDocInfo stores the document's info object as JSON
func (v *SchemaVersion) SetDocInfo(info map[string]interface{}) error {
	if info == nil {
		v.DocInfo = nil
		return nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	v.DocInfo = datatypes.JSON(data)
	return nil
}

// GetDocInfo returns the stored document info object, or nil
func (v *SchemaVersion) GetDocInfo() (map[string]interface{}, error) {
	if len(v.DocInfo) == 0 {
		return nil, nil
	}
	var info map[string]interface{}
	err := json.Unmarshal(v.DocInfo, &info)
	return info, err
}

// Info converts the model to its wire representation
func (v *SchemaVersion) Info() types.SchemaInfo {
	docInfo, _ := v.GetDocInfo()
	return types.SchemaInfo{
		ID:            v.ID,
		Version:       v.Version,
		FileName:      v.FileName,
		FilePath:      v.FilePath,
		FileFormat:    v.FileFormat,
		FileSize:      v.FileSize,
		Checksum:      v.Checksum,
		IsLatest:      v.IsLatest,
		ApplicationID: v.ApplicationID,
		ServiceID:     v.ServiceID,
		DocInfo:       docInfo,
		CreatedAt:     v.CreatedAt,
	}
}

// Info converts the model to its wire representation
func (a *Application) Info() types.ApplicationInfo {
	return types.ApplicationInfo{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
}

// Info converts the model to its wire representation
func (s *Service) Info() types.ServiceInfo {
	return types.ServiceInfo{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		ApplicationID: s.ApplicationID,
		CreatedAt:     s.CreatedAt,
	}
}
