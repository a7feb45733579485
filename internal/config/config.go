// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package config loads the server configuration from a YAML file with
// environment variable overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tailorfit/tailorfit/pkg/passkey"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebAuthn  passkey.Config  `yaml:"webauthn"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxScanBytes caps a single scan upload. Default: 16 MiB.
	MaxScanBytes int64 `yaml:"max_scan_bytes"`
}

// SessionConfig controls the identity session cookie
type SessionConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
	Secure bool          `yaml:"secure"`
}

// StorageConfig selects the metadata store and the scan blob store
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend"`

	// DSN is the Postgres connection string, required for the postgres
	// backend.
	DSN string `yaml:"dsn"`

	// Blobs is "disk" or "s3".
	Blobs string `yaml:"blobs"`

	// UploadsDir is the root directory for the disk blob store.
	UploadsDir string `yaml:"uploads_dir"`

	// S3 configures the S3 blob store.
	S3 S3Config `yaml:"s3"`
}

// S3Config contains S3 blob store settings
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RateLimitConfig throttles the anonymous ceremony endpoints per client IP
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// SetDefaults fills unset fields with their defaults
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8443
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxScanBytes == 0 {
		c.Server.MaxScanBytes = 16 << 20
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.Blobs == "" {
		c.Storage.Blobs = "disk"
	}
	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = "uploads"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	c.WebAuthn.SetDefaults()
}

// applyEnvOverrides applies environment variable overrides to the
// configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("TAILORFIT_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("TAILORFIT_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid TAILORFIT_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid TAILORFIT_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	if level := os.Getenv("TAILORFIT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("TAILORFIT_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if secret := os.Getenv("TAILORFIT_SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}
	if dsn := os.Getenv("TAILORFIT_DATABASE_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if dir := os.Getenv("TAILORFIT_UPLOADS_DIR"); dir != "" {
		cfg.Storage.UploadsDir = dir
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Storage.S3.Region = region
	}
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
		cfg.Storage.S3.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.Storage.S3.SecretKey = secretKey
	}
	if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
		cfg.Storage.S3.Endpoint = endpoint
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if err := c.WebAuthn.Validate(); err != nil {
		return fmt.Errorf("webauthn: %w", err)
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session secret must be specified")
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or postgres)", c.Storage.Backend)
	}

	switch c.Storage.Blobs {
	case "disk":
		if c.Storage.UploadsDir == "" {
			return fmt.Errorf("uploads_dir is required for the disk blob store")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 blob store")
		}
	default:
		return fmt.Errorf("invalid blob store: %s (must be disk or s3)", c.Storage.Blobs)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("rate limit requests_per_minute must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
