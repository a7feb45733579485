// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tailorfit/tailorfit/internal/config"
	"github.com/tailorfit/tailorfit/internal/rest"
	"github.com/tailorfit/tailorfit/internal/scan"
	"github.com/tailorfit/tailorfit/internal/session"
	"github.com/tailorfit/tailorfit/internal/store/postgres"
	"github.com/tailorfit/tailorfit/pkg/health"
	"github.com/tailorfit/tailorfit/pkg/passkey"
	"github.com/tailorfit/tailorfit/pkg/ratelimit"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/tailorfit/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tailorfit server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	if envConfig := os.Getenv("TAILORFIT_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Starting server",
		"config", *configPath,
		"version", version,
		"rp_id", cfg.WebAuthn.RPID,
		"storage", cfg.Storage.Backend,
		"blobs", cfg.Storage.Blobs)

	ctx := context.Background()

	checker := health.NewChecker()

	// Metadata stores: durable Postgres or process-local memory.
	var (
		users passkey.UserStore
		creds passkey.CredentialStore
		scans scan.ScanStore
	)
	if cfg.Storage.Backend == "postgres" {
		store, err := postgres.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()
		users = store.Users()
		creds = store.Credentials()
		scans = store.Scans()
		checker.Register("database", store.Ping)
	} else {
		users = passkey.NewMemoryUserStore()
		creds = passkey.NewMemoryCredentialStore()
		scans = scan.NewMemoryScanStore()
	}

	// Pending challenges are transient per-session state; they never need to
	// outlive the process.
	challenges := passkey.NewMemoryChallengeStore()

	passkeys, err := passkey.NewService(passkey.ServiceParams{
		Config:          &cfg.WebAuthn,
		UserStore:       users,
		CredentialStore: creds,
		ChallengeStore:  challenges,
	})
	if err != nil {
		logger.Error("Failed to create passkey service", slog.Any("error", err))
		os.Exit(1)
	}

	var blobs scan.BlobStore
	if cfg.Storage.Blobs == "s3" {
		blobs, err = scan.NewS3Store(ctx, scan.S3Config{
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
		})
	} else {
		blobs, err = scan.NewDiskStore(cfg.Storage.UploadsDir)
	}
	if err != nil {
		logger.Error("Failed to create blob store", slog.Any("error", err))
		os.Exit(1)
	}

	scanService, err := scan.NewService(scans, blobs)
	if err != nil {
		logger.Error("Failed to create scan service", slog.Any("error", err))
		os.Exit(1)
	}

	sessions, err := session.NewManager(session.Config{
		Secret: []byte(cfg.Session.Secret),
		Issuer: cfg.Session.Issuer,
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.Secure,
	})
	if err != nil {
		logger.Error("Failed to create session manager", slog.Any("error", err))
		os.Exit(1)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	defer limiter.Stop()

	server, err := rest.NewServer(&rest.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Passkeys:       passkeys,
		Scans:          scanService,
		Sessions:       sessions,
		Health:         checker,
		RateLimit:      limiter,
		Logger:         logger,
		Version:        version,
		MaxScanBytes:   cfg.Server.MaxScanBytes,
		SecureCookies:  cfg.Session.Secure,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})
	if err != nil {
		logger.Error("Failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx := setupSignalHandler()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		logger.Error("Server error", slog.Any("error", err))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(stopCtx); err != nil {
		logger.Error("Error during server shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		cancel()
	}()

	return ctx
}
