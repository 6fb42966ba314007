// Package config loads feed-hub configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database Database
	Redis    RedisConfig
	Queue    QueueConfig
	Fetch    FetchConfig
	Refresh  RefreshConfig
	HTTP     HTTPConfig
	Auth     AuthConfig
}

type Database struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RedisConfig struct {
	URL string
}

type QueueConfig struct {
	StreamKey    string
	GroupName    string
	Workers      int
	BatchSize    int64
	BlockTimeout time.Duration
}

type FetchConfig struct {
	Timeout time.Duration
}

type RefreshConfig struct {
	// Interval is the cron cadence for the all-feeds sweep. The sweep also
	// runs once at process startup.
	Interval time.Duration
	// SweepTimeout bounds a single all-feeds sweep.
	SweepTimeout time.Duration
}

type HTTPConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
}

type AuthConfig struct {
	// TokenSecret signs and verifies the bearer tokens presented on the
	// websocket handshake.
	TokenSecret string
}

func Load() (*Config, error) {
	cfg := &Config{
		Database: Database{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			Name:     getEnvOrDefault("DB_NAME", "feedhub"),
			User:     getEnvRequired("FEED_HUB_DB_USER"),
			Password: getEnvRequired("FEED_HUB_DB_PASSWORD"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "prefer"),
		},
		Redis: RedisConfig{
			URL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		},
		Queue: QueueConfig{
			StreamKey:    getEnvOrDefault("JOB_STREAM_KEY", "feedhub:jobs"),
			GroupName:    getEnvOrDefault("JOB_GROUP_NAME", "feed-hub-workers"),
			Workers:      getEnvInt("JOB_WORKERS", 4),
			BatchSize:    int64(getEnvInt("JOB_BATCH_SIZE", 10)),
			BlockTimeout: getEnvDuration("JOB_BLOCK_TIMEOUT", 5*time.Second),
		},
		Fetch: FetchConfig{
			Timeout: getEnvDuration("FEED_FETCH_TIMEOUT", 30*time.Second),
		},
		Refresh: RefreshConfig{
			Interval:     getEnvDuration("FEED_REFRESH_INTERVAL", 30*time.Minute),
			SweepTimeout: getEnvDuration("FEED_REFRESH_SWEEP_TIMEOUT", 20*time.Minute),
		},
		HTTP: HTTPConfig{
			Addr:              getEnvOrDefault("HTTP_ADDR", ":9400"),
			ReadHeaderTimeout: getEnvDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			TokenSecret: getEnvRequired("AUTH_TOKEN_SECRET"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that getEnv helpers cannot.
func (c *Config) Validate() error {
	if c.Queue.Workers < 1 {
		return fmt.Errorf("JOB_WORKERS must be at least 1, got %d", c.Queue.Workers)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("FEED_FETCH_TIMEOUT must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Refresh.Interval < time.Minute {
		return fmt.Errorf("FEED_REFRESH_INTERVAL must be at least 1m, got %s", c.Refresh.Interval)
	}
	return nil
}

// ConnectionString returns the keyword/value pgx connection string.
func (d *Database) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func getEnvRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
