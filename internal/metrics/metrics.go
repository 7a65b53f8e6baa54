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

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider exposes the registry's Prometheus metrics
type Provider struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	UploadsTotal    *prometheus.CounterVec
	UploadDuration  prometheus.Histogram
	UploadSizeBytes prometheus.Histogram

	ErrorsTotal *prometheus.CounterVec
}

// NewProvider creates a metrics provider with its own registry
func NewProvider() *Provider {
	registry := prometheus.NewRegistry()

	p := &Provider{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemahub_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schemahub_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "schemahub_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemahub_uploads_total",
				Help: "Total number of schema upload attempts",
			},
			[]string{"status", "format"},
		),
		UploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "schemahub_upload_duration_seconds",
				Help:    "Schema upload latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		UploadSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "schemahub_upload_size_bytes",
				Help:    "Size of uploaded schema files in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 10),
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemahub_errors_total",
				Help: "Total number of errors by code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		p.HTTPRequestsTotal,
		p.HTTPRequestDuration,
		p.HTTPRequestsInFlight,
		p.UploadsTotal,
		p.UploadDuration,
		p.UploadSizeBytes,
		p.ErrorsTotal,
	)

	return p
}

// Handler returns an http.Handler serving the metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed HTTP request
func (p *Provider) ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	p.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	p.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveUpload records one schema upload attempt
func (p *Provider) ObserveUpload(status, format string, size int64, duration time.Duration) {
	p.UploadsTotal.WithLabelValues(status, format).Inc()
	p.UploadDuration.Observe(duration.Seconds())
	if size > 0 {
		p.UploadSizeBytes.Observe(float64(size))
	}
}

// ObserveError records one error by code
func (p *Provider) ObserveError(code string) {
	p.ErrorsTotal.WithLabelValues(code).Inc()
}
