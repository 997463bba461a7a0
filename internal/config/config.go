// Package config loads service configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

const (
	// DefaultReadTimeout is the default HTTP read timeout.
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default HTTP write timeout.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultWorkerConcurrency is the default worker pool size.
	DefaultWorkerConcurrency = 5
	// DefaultPersistEvery is how many records are processed between
	// progress writes to the job store.
	DefaultPersistEvery = 10
	// DefaultMaxBatchSize is the largest accepted record batch per job.
	DefaultMaxBatchSize = 10000
)

// Config is the root service configuration.
type Config struct {
	Debug     bool                    `yaml:"debug"`
	Server    ServerConfig            `yaml:"server"`
	Database  DatabaseConfig          `yaml:"database"`
	Redis     RedisConfig             `yaml:"redis"`
	Workers   WorkerConfig            `yaml:"workers"`
	Providers []domain.ProviderConfig `yaml:"providers"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the Postgres job/credential store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig configures the Redis queue/cache transport.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// WorkerConfig configures the enrichment worker pool.
type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	PersistEvery int           `yaml:"persist_every"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

// Load reads, defaults, env-overrides and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and returns an error if it is unusable.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}
	if c.Workers.Concurrency <= 0 {
		return fmt.Errorf("workers.concurrency must be positive, got %d", c.Workers.Concurrency)
	}
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d].id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("providers[%d]: duplicate provider id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.BaseURL == "" {
			return fmt.Errorf("providers[%d] (%s): base_url is required", i, p.ID)
		}
		for _, op := range p.Operations {
			if !op.IsValid() {
				return fmt.Errorf("providers[%d] (%s): unknown operation %q", i, p.ID, op)
			}
		}
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8075"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "enrichment"
	}
	if cfg.Workers.Concurrency == 0 {
		cfg.Workers.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Workers.PersistEvery == 0 {
		cfg.Workers.PersistEvery = DefaultPersistEvery
	}
	if cfg.Workers.MaxBatchSize == 0 {
		cfg.Workers.MaxBatchSize = DefaultMaxBatchSize
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].RateLimit.RequestsPerSecond == 0 {
			cfg.Providers[i].RateLimit.RequestsPerSecond = 5
		}
		if cfg.Providers[i].RateLimit.Burst == 0 {
			cfg.Providers[i].RateLimit.Burst = cfg.Providers[i].RateLimit.RequestsPerSecond
		}
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("ENRICHMENT_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DATABASE_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers.Concurrency = n
		}
	}
}

// parseBool parses common boolean string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
