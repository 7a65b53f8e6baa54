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
	"fmt"
	"strings"
)

// NewMetadataStore creates a new metadata store based on the configuration
func NewMetadataStore(config Config) (MetadataStore, error) {
	storeType := strings.ToLower(config.Type)
	if storeType == "" {
		storeType = "memory" // Default to memory store
	}

	switch storeType {
	case "memory":
		memConfig := MemoryConfig{}
		if config.Memory != nil {
			memConfig = *config.Memory
		}
		return NewMemoryStore(memConfig), nil

	case "database":
		dbConfig := DatabaseConfig{}
		if config.Database != nil {
			dbConfig = *config.Database
		}
		return NewDatabaseStore(dbConfig)

	default:
		return nil, fmt.Errorf("unsupported metadata store type: %s", config.Type)
	}
}

// DefaultConfig returns a default metadata store configuration
func DefaultConfig() Config {
	return Config{
		Type:   "memory",
		Memory: &MemoryConfig{},
	}
}
