package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Matching  MatchingConfig  `yaml:"matching"`
	Overrides OverridesConfig `yaml:"overrides"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int      `yaml:"port"`
	Host            string   `yaml:"host"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the configured lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig is optional; without an address, locks fall back to
// PostgreSQL advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// MatchingConfig tunes the matching boundary.
type MatchingConfig struct {
	// RestoreOverrides replays the manual-override file before every
	// automatic run so operator decisions win over automatic guesses.
	RestoreOverrides bool `yaml:"restore_overrides"`
	LockTTLSeconds   int  `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the single-flight lock TTL as a duration
func (c MatchingConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// OverridesConfig selects where the manual-override file lives.
type OverridesConfig struct {
	Type       string `yaml:"type"` // "local" or "aws"
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Key      string `yaml:"s3_key"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c OverridesConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// IngestConfig controls CSV intake.
type IngestConfig struct {
	SituationPrefix string `yaml:"situation_prefix"`
	MaxFileMB       int    `yaml:"max_file_mb"`
}

// LoggingConfig holds structured logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact returns the effective PII redaction flag (on unless disabled).
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with only defaults applied. Used when no
// config file exists (CLI runs against DATABASE_URL alone).
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Server.ShutdownSeconds == 0 {
		cfg.Server.ShutdownSeconds = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Matching.LockTTLSeconds == 0 {
		cfg.Matching.LockTTLSeconds = 300
	}
	if cfg.Overrides.Type == "" {
		cfg.Overrides.Type = "local"
	}
	if cfg.Overrides.LocalPath == "" {
		cfg.Overrides.LocalPath = "data/manual_overrides.properties"
	}
	if cfg.Overrides.S3Key == "" {
		cfg.Overrides.S3Key = "overrides/manual_overrides.properties"
	}
	if cfg.Overrides.AWSRegion == "" {
		cfg.Overrides.AWSRegion = "us-west-2"
	}
	if cfg.Ingest.SituationPrefix == "" {
		cfg.Ingest.SituationPrefix = "situation_"
	}
	if cfg.Ingest.MaxFileMB == 0 {
		cfg.Ingest.MaxFileMB = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// A missing config file is not an error; defaults plus env are used.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("OVERRIDES_TYPE"); v != "" {
		cfg.Overrides.Type = v
	}
	if v := os.Getenv("OVERRIDES_PATH"); v != "" {
		cfg.Overrides.LocalPath = v
	}
	if v := os.Getenv("OVERRIDES_S3_BUCKET"); v != "" {
		cfg.Overrides.S3Bucket = v
	}
	if v := os.Getenv("OVERRIDES_S3_REGION"); v != "" {
		cfg.Overrides.AWSRegion = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
