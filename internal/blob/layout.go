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

// Package blob provides the deterministic on-disk layout for persisted
// schema content and the byte store that writes it.
package blob

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/schemahub/schemahub/internal/document"
)

// Layout maps (application, optional service, filename, version, format)
// to a deterministic blob path under a root directory:
//
//	<root>/<application>/[<service>/]<basename>_v<version>.<ext>
//
// Uniqueness follows from version uniqueness per scope, which the version
// ledger guarantees.
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at root
func NewLayout(root string) Layout {
	return Layout{root: root}
}

// Root returns the storage root directory
func (l Layout) Root() string {
	return l.root
}

// ScopeDir returns the directory holding a scope's blobs
func (l Layout) ScopeDir(application, service string) string {
	if service != "" {
		return filepath.Join(l.root, application, service)
	}
	return filepath.Join(l.root, application)
}

// ResolvePath returns the blob path for one schema version. Only the base
// name of fileName is used; its extension is replaced by the canonical
// extension of format.
func (l Layout) ResolvePath(application, service, fileName string, version int, format document.Format) string {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	versioned := fmt.Sprintf("%s_v%d.%s", base, version, format.Extension())
	return filepath.Join(l.ScopeDir(application, service), versioned)
}
