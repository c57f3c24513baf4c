// Package config loads orchestrator configuration from environment variables,
// following the prefix + typed-accessor pattern used across the rest of this
// codebase rather than a config file parser.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates a new environment configuration loader.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// WorkerConfig bounds the worker pool's concurrency and fairness policy.
type WorkerConfig struct {
	MaxWorkers    int
	MaxPerAccount int
	PollInterval  time.Duration
}

// RPCConfig bounds the third-party RPC client's retry/backoff policy.
type RPCConfig struct {
	MaxRetries    int
	RetryBaseDelay time.Duration
	CallTimeout   time.Duration
}

// StoreConfig configures the durable Postgres store.
type StoreConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig configures the Redis session cache.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// HTTPConfig configures the echo HTTP boundary.
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AppConfig is the frozen configuration value read once at startup and
// threaded explicitly through the program rather than imported as a singleton.
type AppConfig struct {
	LogLevel    string
	PreviewTTL  time.Duration
	Worker      WorkerConfig
	RPC         RPCConfig
	Store       StoreConfig
	Cache       CacheConfig
	HTTP        HTTPConfig
}

// LoadAppConfig loads the full application configuration using the given
// environment variable prefix (e.g. "GPHOTOCTL").
func LoadAppConfig(prefix string) AppConfig {
	env := NewEnvConfig(prefix)
	return AppConfig{
		LogLevel:   env.GetString("LOG_LEVEL", "info"),
		PreviewTTL: time.Duration(env.GetInt("PREVIEW_TTL_MINUTES", 30)) * time.Minute,
		Worker: WorkerConfig{
			MaxWorkers:    env.GetInt("WORKER_MAX_WORKERS", 4),
			MaxPerAccount: env.GetInt("WORKER_MAX_PER_ACCOUNT", 1),
			PollInterval:  durationFromSeconds(env.GetFloat("POLL_INTERVAL_SECONDS", 1.0)),
		},
		RPC: RPCConfig{
			MaxRetries:     env.GetInt("RPC_MAX_RETRIES", 3),
			RetryBaseDelay: time.Duration(env.GetInt("RPC_RETRY_BASE_DELAY_MS", 1500)) * time.Millisecond,
			CallTimeout:    env.GetDuration("RPC_CALL_TIMEOUT", 120*time.Second),
		},
		Store: StoreConfig{
			DatabaseURL:     env.GetString("DATABASE_URL", "postgres://localhost:5432/gphotoctl?sslmode=disable"),
			MaxOpenConns:    env.GetInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    env.GetInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.GetDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Cache: CacheConfig{
			RedisURL: env.GetString("REDIS_URL", "redis://localhost:6379/0"),
			TTL:      env.GetDuration("SESSION_CACHE_TTL", 10*time.Minute),
		},
		HTTP: HTTPConfig{
			Addr:            env.GetString("HTTP_ADDR", ":8080"),
			ReadTimeout:     env.GetDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.GetDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: env.GetDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Validator provides configuration validation utilities.
type Validator struct {
	errors []string
}

func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

func (v *Validator) Errors() []string {
	return v.errors
}

func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
	}
	return nil
}

// Validate checks the loaded configuration for obviously invalid values.
func (c AppConfig) Validate() error {
	v := NewValidator()
	v.RequirePositiveInt("Worker.MaxWorkers", c.Worker.MaxWorkers)
	v.RequirePositiveInt("Worker.MaxPerAccount", c.Worker.MaxPerAccount)
	v.RequirePositiveInt("RPC.MaxRetries", c.RPC.MaxRetries)
	v.RequireString("Store.DatabaseURL", c.Store.DatabaseURL)
	return v.Validate()
}
