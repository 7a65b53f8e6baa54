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

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schemahub/schemahub/internal/errors"
	"github.com/schemahub/schemahub/internal/types"
)

// requestID extracts the request ID assigned by the middleware
func requestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// respondWithError sends a structured error response. Registry errors keep
// their code and status; anything else becomes a generic 500.
func (s *Server) respondWithError(c *gin.Context, err error) {
	regErr, ok := errors.AsRegistryError(err)
	if !ok {
		regErr = errors.NewInternalError("internal server error", err)
	}
	regErr = regErr.WithRequestID(requestID(c))

	if s.config.Metrics.Enabled {
		s.metrics.ObserveError(string(regErr.Code))
	}
	if !regErr.IsUserError() {
		s.logger.WithField("request_id", regErr.RequestID).Error("request error", err)
	}

	c.JSON(regErr.GetHTTPStatus(), regErr.ToErrorResponse())
}

// respondWithUploadRejection sends a 400 carrying the rejection message in
// the upload envelope, so clients always parse one shape from the upload
// endpoint.
func (s *Server) respondWithUploadRejection(c *gin.Context, code, message string) {
	if s.config.Metrics.Enabled {
		s.metrics.ObserveError(code)
	}
	c.JSON(http.StatusBadRequest, types.UploadResponse{
		Success: false,
		Message: message,
	})
}

// respondWithBadRequest sends a 400 in the standard error envelope
func (s *Server) respondWithBadRequest(c *gin.Context, message string) {
	if s.config.Metrics.Enabled {
		s.metrics.ObserveError(string(errors.ErrInvalidRequestFormat))
	}
	c.JSON(http.StatusBadRequest, types.ErrorResponse{
		Error: types.ErrorDetail{
			Code:      string(errors.ErrInvalidRequestFormat),
			Message:   message,
			Timestamp: time.Now().UTC(),
			RequestID: requestID(c),
		},
	})
}
