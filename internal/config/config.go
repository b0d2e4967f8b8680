package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the approvals service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	OTel     OTelConfig
	Cache    CacheConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the PostgreSQL store. An empty URL means in-memory storage.
type DatabaseConfig struct {
	URL string
}

type LogConfig struct {
	Level           string
	ErrorSampleRate int
}

type OTelConfig struct {
	Enabled     bool
	ServiceName string
}

// CacheConfig controls the selection candidate cache. Its invalidation is local
// to the process, so it defaults to off when a database is shared by replicas.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type MetricsConfig struct {
	Namespace string
}

// LoadConfig loads configuration from file using viper.
// Environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.error_sample_rate", 1)
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "approvals")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("metrics.namespace", "approvals")

	// Bind environment variables with APPROVALS_ prefix
	v.SetEnvPrefix("APPROVALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DATABASE_URL is honoured for compatibility with the migrate tool
	if err := v.BindEnv("database.url", "APPROVALS_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	// Unset, the cache follows the storage: on in memory, off on PostgreSQL
	cacheEnabled := v.GetString("database.url") == ""
	if v.IsSet("cache.enabled") {
		cacheEnabled = v.GetBool("cache.enabled")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Log: LogConfig{
			Level:           v.GetString("log.level"),
			ErrorSampleRate: v.GetInt("log.error_sample_rate"),
		},
		OTel: OTelConfig{
			Enabled:     v.GetBool("otel.enabled"),
			ServiceName: v.GetString("otel.service_name"),
		},
		Cache: CacheConfig{
			Enabled: cacheEnabled,
			TTL:     v.GetDuration("cache.ttl"),
		},
		Metrics: MetricsConfig{
			Namespace: v.GetString("metrics.namespace"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Log.ErrorSampleRate < 1 {
		return fmt.Errorf("log.error_sample_rate must be at least 1, got %d", cfg.Log.ErrorSampleRate)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", cfg.Cache.TTL)
	}
	if cfg.OTel.Enabled && strings.TrimSpace(cfg.OTel.ServiceName) == "" {
		return fmt.Errorf("otel.service_name is required when otel is enabled")
	}
	return nil
}

// validateNoSecretsInConfig keeps connection strings out of config files.
// They may carry credentials and must come from the environment.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("database.url") || v.InConfig("database.password") {
		return fmt.Errorf("database credentials not allowed in config files (use APPROVALS_DATABASE_URL environment variable)")
	}
	return nil
}
