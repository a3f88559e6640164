// Package main is the entry point for the product registry API.
//
// main stays small: read the configuration, build the logger and the
// optional object-storage client, then hand everything to internal/server.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/product-registry/internal/config"
	"github.com/sakif/product-registry/internal/server"
	"github.com/sakif/product-registry/internal/storage"
	"github.com/sakif/product-registry/internal/storage/minio"
)

func main() {
	// A logger exists before the config so config errors are logged too.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// A SQLite file needs its directory; postgres and ":memory:" don't.
	if !cfg.IsPostgres() && !strings.HasPrefix(cfg.DatabaseURL, ":memory:") {
		dbDir := filepath.Dir(cfg.DatabaseURL)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// Object storage is optional. Without it the server starts but
	// /upload/img answers 503.
	var uploader storage.Uploader
	if cfg.StorageEnabled() {
		up, err := minio.New(minio.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		}, logger)
		if err != nil {
			logger.Error("failed to create storage client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		uploader = up
	} else {
		logger.Warn("S3_ENDPOINT not set, uploads are disabled")
	}

	srv, err := server.New(cfg, logger, uploader)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
