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

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schemahub/schemahub/internal/errors"
	"github.com/schemahub/schemahub/internal/logging"
	"github.com/schemahub/schemahub/internal/metrics"
	"github.com/schemahub/schemahub/internal/types"
)

// RequestID assigns a request ID to each request, honoring an incoming
// X-Request-ID header when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// Logger logs each request with method, path, status, and latency
func Logger(logger *logging.Logger) gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if requestID, exists := c.Get("request_id"); exists {
			fields["request_id"] = requestID
		}

		entry := log.WithFields(fields)
		if c.Writer.Status() >= 500 {
			entry.Error("request failed", nil)
		} else {
			entry.Info("request completed")
		}
	}
}

// Metrics records per-request counters and latency. The route template is
// used as the path label to keep cardinality bounded.
func Metrics(provider *metrics.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		provider.HTTPRequestsInFlight.Inc()

		c.Next()

		provider.HTTPRequestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		provider.ObserveHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}

// CORS adds permissive cross-origin headers
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SecurityHeaders adds standard security headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Next()
	}
}

// RequestSizeLimit rejects request bodies larger than maxBytes
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			regErr := errors.Newf(errors.ErrRequestTooLarge,
				"request body exceeds limit of %d bytes", maxBytes)
			if requestID, exists := c.Get("request_id"); exists {
				if id, ok := requestID.(string); ok {
					regErr = regErr.WithRequestID(id)
				}
			}
			c.AbortWithStatusJSON(regErr.GetHTTPStatus(), regErr.ToErrorResponse())
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// Recovery converts panics into structured 500 responses
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Errorf(nil, "panic recovered: %v", rec)
				c.AbortWithStatusJSON(http.StatusInternalServerError, types.ErrorResponse{
					Error: types.ErrorDetail{
						Code:      string(errors.ErrInternalError),
						Message:   "internal server error",
						Timestamp: time.Now().UTC(),
					},
				})
			}
		}()
		c.Next()
	}
}
