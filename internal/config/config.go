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

package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete registry configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	healthCheckMode bool
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// StorageConfig contains metadata and blob storage settings
type StorageConfig struct {
	Type     string          `yaml:"type"` // "memory" or "database"
	BlobRoot string          `yaml:"blob_root"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Driver           string `yaml:"driver"`
	ConnectionString string `yaml:"connection_string"`
	MaxConnections   int    `yaml:"max_connections"`
	MaxIdleTime      int    `yaml:"max_idle_time"` // seconds
	AutoMigrate      bool   `yaml:"auto_migrate"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxUploadBytes: 10 << 20, // 10 MiB
		},
		Storage: StorageConfig{
			Type:     "memory",
			BlobRoot: "./data/schemas",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from file, environment variables, and flags
func Load() (*Config, error) {
	config := DefaultConfig()

	// Command line flags
	configFile := flag.String("config", "", "Path to configuration file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	storageType := flag.String("storage", "", "Metadata store type: memory or database")
	blobRoot := flag.String("blob-root", "", "Root directory for persisted schema files")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	flag.Parse()

	// Store health check flag for main to use
	config.healthCheckMode = *healthCheck

	// Load from config file if specified
	if *configFile != "" {
		if err := config.loadFromFile(*configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	// Override with command line flags (highest precedence)
	if *port != 0 {
		config.Server.Port = *port
	}
	if *storageType != "" {
		config.Storage.Type = *storageType
	}
	if *blobRoot != "" {
		config.Storage.BlobRoot = *blobRoot
	}
	if *logLevel != "" {
		config.Logging.Level = *logLevel
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func (c *Config) loadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if host := os.Getenv("SCHEMAHUB_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SCHEMAHUB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if maxUpload := os.Getenv("SCHEMAHUB_MAX_UPLOAD_BYTES"); maxUpload != "" {
		if n, err := strconv.ParseInt(maxUpload, 10, 64); err == nil {
			c.Server.MaxUploadBytes = n
		}
	}
	if storageType := os.Getenv("SCHEMAHUB_STORAGE_TYPE"); storageType != "" {
		c.Storage.Type = storageType
	}
	if blobRoot := os.Getenv("SCHEMAHUB_BLOB_ROOT"); blobRoot != "" {
		c.Storage.BlobRoot = blobRoot
	}
	if dsn := os.Getenv("SCHEMAHUB_DATABASE_URL"); dsn != "" {
		if c.Storage.Database == nil {
			c.Storage.Database = &DatabaseConfig{Driver: "pgx", AutoMigrate: true}
		}
		c.Storage.Database.ConnectionString = dsn
	}
	if level := os.Getenv("SCHEMAHUB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if enabled := os.Getenv("SCHEMAHUB_METRICS_ENABLED"); enabled != "" {
		c.Metrics.Enabled = enabled == "true" || enabled == "1"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}

	switch strings.ToLower(c.Storage.Type) {
	case "memory":
	case "database":
		if c.Storage.Database == nil || c.Storage.Database.ConnectionString == "" {
			return fmt.Errorf("database storage requires a connection string")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Storage.BlobRoot == "" {
		return fmt.Errorf("blob root directory cannot be empty")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// ListenAddress returns the host:port the server should bind to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HealthCheckMode reports whether the -health-check flag was given
func (c *Config) HealthCheckMode() bool {
	return c.healthCheckMode
}
