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

// Package document decodes, validates and canonically re-encodes uploaded
// schema documents. Format selection is driven by the filename extension,
// never by content sniffing.
package document

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/schemahub/schemahub/internal/errors"
)

// Format identifies the serialization format of a schema document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Extension returns the canonical file extension for the format (without dot)
func (f Format) Extension() string {
	return string(f)
}

// Valid reports whether f is a known format
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatYAML
}

// Document is the generic decoded representation of a schema: a tree of
// scalars, maps and sequences. Validation operates on this shape rather
// than a typed OpenAPI model.
type Document map[string]interface{}

// FormatFromFilename maps a filename extension to a Format.
// Accepted: .json, .yaml, .yml. Anything else is an UNSUPPORTED_FORMAT error.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", errors.Newf(errors.ErrUnsupportedFormat,
			"unsupported file format: %s", filepath.Ext(name))
	}
}

// Decode parses raw bytes into a Document using the format declared by the
// filename extension. Returns the detected format alongside the document.
func Decode(raw []byte, filename string) (Document, Format, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, "", err
	}

	doc, err := DecodeAs(raw, format)
	if err != nil {
		return nil, format, err
	}
	return doc, format, nil
}

// DecodeAs parses raw bytes using an already-known format, as recorded on a
// stored version.
func DecodeAs(raw []byte, format Format) (Document, error) {
	if !utf8.Valid(raw) {
		return nil, errors.New(errors.ErrEncodingError, "file must be UTF-8 encoded")
	}

	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrapf(errors.ErrParseError, err, "invalid JSON format: %v", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrapf(errors.ErrParseError, err, "invalid YAML format: %v", err)
		}
	default:
		return nil, errors.Newf(errors.ErrUnsupportedFormat, "unsupported format: %s", format)
	}
	return doc, nil
}

// Encode serializes a document to its canonical byte form for the given
// format. The output is deterministic: JSON uses sorted keys and two-space
// indentation, YAML uses block style with two-space indentation. Checksums
// and stored blobs are always computed over these bytes.
func Encode(doc Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, errors.Wrap(errors.ErrInternalError, "failed to encode JSON document", err)
		}
		return data, nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]interface{}(doc)); err != nil {
			return nil, errors.Wrap(errors.ErrInternalError, "failed to encode YAML document", err)
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(errors.ErrInternalError, "failed to finalize YAML document", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, errors.Newf(errors.ErrUnsupportedFormat, "unsupported format: %s", format)
	}
}
