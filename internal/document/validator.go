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

package document

import (
	"strings"

	"github.com/schemahub/schemahub/internal/errors"
)

// Validate performs shallow OpenAPI conformance checks on a decoded
// document. Checks run in a fixed order and short-circuit on the first
// failure:
//
//  1. an "openapi" or "swagger" key must be present
//  2. an "info" key must be present
//  3. a "paths" key must be present
//  4. if "openapi" is present its value must be a string starting with
//     "2." or "3."
//
// This is a gate against obviously-wrong uploads, not an OpenAPI spec
// validator. No path or operation objects are inspected.
func Validate(doc Document) error {
	_, hasOpenAPI := doc["openapi"]
	_, hasSwagger := doc["swagger"]
	if !hasOpenAPI && !hasSwagger {
		return errors.New(errors.ErrSchemaValidationFailed, "Missing 'openapi' or 'swagger' field")
	}

	if _, ok := doc["info"]; !ok {
		return errors.New(errors.ErrSchemaValidationFailed, "Missing 'info' field")
	}

	if _, ok := doc["paths"]; !ok {
		return errors.New(errors.ErrSchemaValidationFailed, "Missing 'paths' field")
	}

	if hasOpenAPI {
		version, ok := doc["openapi"].(string)
		if !ok || (!strings.HasPrefix(version, "3.") && !strings.HasPrefix(version, "2.")) {
			return errors.Newf(errors.ErrSchemaValidationFailed,
				"Unsupported OpenAPI version: %v", doc["openapi"])
		}
	}

	return nil
}

// Info returns the document's top-level "info" object when present and
// shaped like a map, or nil. Used to surface title/version metadata on
// stored records.
func Info(doc Document) map[string]interface{} {
	info, ok := doc["info"].(map[string]interface{})
	if !ok {
		return nil
	}
	return info
}
