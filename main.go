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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schemahub/schemahub/internal/blob"
	"github.com/schemahub/schemahub/internal/config"
	"github.com/schemahub/schemahub/internal/logging"
	"github.com/schemahub/schemahub/internal/metrics"
	"github.com/schemahub/schemahub/internal/registry"
	"github.com/schemahub/schemahub/internal/server"
	"github.com/schemahub/schemahub/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if cfg.HealthCheckMode() {
		os.Exit(runHealthCheck(cfg))
	}

	logger := logging.NewLogger(cfg.Logging)
	log := logger.WithComponent("main")

	store, err := storage.NewMetadataStore(storeConfig(cfg))
	if err != nil {
		log.Fatal("Failed to initialize metadata store", err)
	}
	defer store.Close()

	layout := blob.NewLayout(cfg.Storage.BlobRoot)
	blobs := blob.NewFileStore()

	reg := registry.NewRegistry(store, blobs, layout, logger)
	provider := metrics.NewProvider()

	srv := server.NewServer(cfg, reg, logger, provider)

	// Run the server in the background so signals can drive shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("Server failed", err)
		}
	case sig := <-sigCh:
		log.Infof("Received signal %s, shutting down", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	log.Info("Schema registry stopped")
}

// storeConfig maps the application configuration to the storage layer's
func storeConfig(cfg *config.Config) storage.Config {
	sc := storage.Config{Type: cfg.Storage.Type}
	if cfg.Storage.Database != nil {
		sc.Database = &storage.DatabaseConfig{
			Driver:           cfg.Storage.Database.Driver,
			ConnectionString: cfg.Storage.Database.ConnectionString,
			MaxConnections:   cfg.Storage.Database.MaxConnections,
			MaxIdleTime:      cfg.Storage.Database.MaxIdleTime,
			AutoMigrate:      cfg.Storage.Database.AutoMigrate,
		}
	}
	return sc
}

// runHealthCheck probes a running instance, for container health checks
func runHealthCheck(cfg *config.Config) int {
	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Println("Health check passed")
	return 0
}
