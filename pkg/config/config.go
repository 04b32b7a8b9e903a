package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ingest-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3550"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// MigrationsPath is the directory containing SQL migration files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Database configuration (PostgreSQL registry + blob store)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (secondary staging store)
	Redis RedisConfig `yaml:"redis"`

	// Ingestion pipeline limits and capabilities
	Ingest IngestConfig `yaml:"ingest"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"veldt"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ingest_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL builds a connection string for pgx and the migration runner.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection configuration for the staging store.
// An empty host disables Redis entirely.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// IngestConfig holds ingestion pipeline limits and capability flags.
type IngestConfig struct {
	// MaxFileBytes is the hard size ceiling. Uploads over this are
	// rejected before any asset or audit state is created.
	MaxFileBytes int64 `yaml:"max_file_bytes" env:"INGEST_MAX_FILE_BYTES" env-default:"262144000"` // 250 MiB

	// StreamingThresholdBytes triggers an advisory warning recommending
	// streaming ingestion. It does not change control flow.
	StreamingThresholdBytes int64 `yaml:"streaming_threshold_bytes" env:"INGEST_STREAMING_THRESHOLD_BYTES" env-default:"104857600"` // 100 MiB

	// SecondaryStoreEnabled turns on the best-effort staging write for the
	// downstream worker. Fixed at construction time so the branch is
	// statically auditable.
	SecondaryStoreEnabled bool `yaml:"secondary_store_enabled" env:"INGEST_SECONDARY_STORE_ENABLED" env-default:"false"`

	// StagingTTLMinutes is how long staged payloads are kept in Redis.
	StagingTTLMinutes int `yaml:"staging_ttl_minutes" env:"INGEST_STAGING_TTL_MINUTES" env-default:"60"`

	// DefaultIndustry is applied when upload metadata omits one.
	DefaultIndustry string `yaml:"default_industry" env:"INGEST_DEFAULT_INDUSTRY" env-default:"GENERAL"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. If config.yaml does not exist, configuration comes from the
// environment alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	err := cleanenv.ReadConfig("config.yaml", cfg)
	if os.IsNotExist(err) {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if cfg.Ingest.MaxFileBytes <= 0 {
		return nil, fmt.Errorf("ingest.max_file_bytes must be positive, got %d", cfg.Ingest.MaxFileBytes)
	}
	if cfg.Ingest.StreamingThresholdBytes > cfg.Ingest.MaxFileBytes {
		return nil, fmt.Errorf("ingest.streaming_threshold_bytes (%d) exceeds max_file_bytes (%d)",
			cfg.Ingest.StreamingThresholdBytes, cfg.Ingest.MaxFileBytes)
	}

	return cfg, nil
}
