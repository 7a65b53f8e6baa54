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

package errors

import (
	"fmt"
	"time"

	"github.com/schemahub/schemahub/internal/types"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Upload validation errors (user-correctable)
	ErrEmptyInput             ErrorCode = "EMPTY_INPUT"
	ErrUnsupportedFormat      ErrorCode = "UNSUPPORTED_FORMAT"
	ErrEncodingError          ErrorCode = "ENCODING_ERROR"
	ErrParseError             ErrorCode = "PARSE_ERROR"
	ErrSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrInvalidRequestFormat   ErrorCode = "INVALID_REQUEST_FORMAT"
	ErrRequestTooLarge        ErrorCode = "REQUEST_TOO_LARGE"

	// Resource errors
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Infrastructure errors
	ErrStorageIO          ErrorCode = "STORAGE_IO_ERROR"
	ErrPersistenceFailed  ErrorCode = "PERSISTENCE_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// RegistryError represents a structured registry error
type RegistryError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"` // Internal cause, not exposed in JSON
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// ToErrorResponse converts RegistryError to types.ErrorResponse
func (e *RegistryError) ToErrorResponse() types.ErrorResponse {
	return types.ErrorResponse{
		Error: types.ErrorDetail{
			Code:      string(e.Code),
			Message:   e.Message,
			Details:   e.Details,
			Timestamp: e.Timestamp,
			RequestID: e.RequestID,
		},
	}
}

// New creates a new RegistryError
func New(code ErrorCode, message string) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates a new RegistryError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap creates a new RegistryError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// Wrapf creates a new RegistryError wrapping an existing error with formatted message
func Wrapf(code ErrorCode, cause error, format string, args ...interface{}) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails adds details to a RegistryError
func (e *RegistryError) WithDetails(details map[string]interface{}) *RegistryError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to a RegistryError
func (e *RegistryError) WithRequestID(requestID string) *RegistryError {
	e.RequestID = requestID
	return e
}

// IsUserError reports whether the error is an expected, user-correctable
// condition rather than an infrastructure failure.
func (e *RegistryError) IsUserError() bool {
	switch e.Code {
	case ErrEmptyInput, ErrUnsupportedFormat, ErrEncodingError,
		ErrParseError, ErrSchemaValidationFailed, ErrInvalidRequestFormat,
		ErrRequestTooLarge:
		return true
	default:
		return false
	}
}

// GetHTTPStatus returns the appropriate HTTP status code for the error
func (e *RegistryError) GetHTTPStatus() int {
	switch e.Code {
	case ErrEmptyInput, ErrUnsupportedFormat, ErrEncodingError,
		ErrParseError, ErrSchemaValidationFailed, ErrInvalidRequestFormat:
		return 400 // Bad Request

	case ErrNotFound:
		return 404 // Not Found

	case ErrRequestTooLarge:
		return 413 // Request Entity Too Large

	case ErrStorageIO, ErrPersistenceFailed, ErrInternalError:
		return 500 // Internal Server Error

	case ErrServiceUnavailable:
		return 503 // Service Unavailable

	default:
		return 500 // Default to Internal Server Error
	}
}

// Common error constructors for convenience

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *RegistryError {
	return Newf(ErrNotFound, "%s not found", resource)
}

// NewStorageError creates a blob storage error
func NewStorageError(message string, cause error) *RegistryError {
	return Wrap(ErrStorageIO, message, cause)
}

// NewPersistenceError creates a metadata persistence error
func NewPersistenceError(message string, cause error) *RegistryError {
	return Wrap(ErrPersistenceFailed, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *RegistryError {
	return Wrap(ErrInternalError, message, cause)
}

// IsRegistryError checks if an error is a RegistryError
func IsRegistryError(err error) bool {
	_, ok := err.(*RegistryError)
	return ok
}

// AsRegistryError converts an error to RegistryError if possible
func AsRegistryError(err error) (*RegistryError, bool) {
	if regErr, ok := err.(*RegistryError); ok {
		return regErr, true
	}
	return nil, false
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR for
// unclassified errors.
func CodeOf(err error) ErrorCode {
	if regErr, ok := AsRegistryError(err); ok {
		return regErr.Code
	}
	return ErrInternalError
}
