package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultBaseURL = "http://api.citybik.es/v2/networks"

type Config struct {
	Database DatabaseConfig
	Fetch    FetchConfig
	Cache    CacheConfig
	Enrich   EnrichConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DatabaseConfig is optional; run history is only recorded when Host is set.
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	RunRetention  time.Duration
	PruneInterval time.Duration
}

// FetchConfig drives the directory and per-network HTTP calls.
type FetchConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxAttempts   int
	BackoffFactor float64
	RatePerSecond float64
}

type CacheConfig struct {
	Dir string
	TTL time.Duration // zero keeps entries forever
}

type EnrichConfig struct {
	Workers         int
	PassTimeout     time.Duration // zero disables the overall deadline
	SnapshotPath    string
	RefreshInterval time.Duration
}

type ServerConfig struct {
	Addr string
}

type LoggingConfig struct {
	Level      string
	FilePath   string
	DiscordURL string
}

// Load reads configuration from the environment, loading .env first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	backoff, err := getFloatEnv("FETCH_BACKOFF_FACTOR", 1.5)
	if err != nil {
		return nil, err
	}
	rate, err := getFloatEnv("FETCH_RATE_PER_SEC", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", ""),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", ""),
			DBName:        getEnv("DB_NAME", "bikeshare"),
			RunRetention:  getDurationEnv("RUN_RETENTION", 30*24*time.Hour),
			PruneInterval: getDurationEnv("RUN_PRUNE_INTERVAL", 24*time.Hour),
		},
		Fetch: FetchConfig{
			BaseURL:       strings.TrimRight(getEnv("CITYBIKES_BASE_URL", DefaultBaseURL), "/"),
			Timeout:       getDurationEnv("HTTP_TIMEOUT", 10*time.Second),
			MaxAttempts:   getIntEnv("FETCH_MAX_ATTEMPTS", 5),
			BackoffFactor: backoff,
			RatePerSecond: rate,
		},
		Cache: CacheConfig{
			Dir: getEnv("CACHE_DIR", "network_cache"),
			TTL: getDurationEnv("CACHE_TTL", 0),
		},
		Enrich: EnrichConfig{
			Workers:         getIntEnv("FETCH_WORKERS", 8),
			PassTimeout:     getDurationEnv("ENRICH_PASS_TIMEOUT", 0),
			SnapshotPath:    getEnv("SNAPSHOT_PATH", "cached_station_data.csv"),
			RefreshInterval: getDurationEnv("REFRESH_INTERVAL", 15*time.Minute),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE", "bikeshare.log"),
			DiscordURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Fetch.BaseURL == "" {
		return fmt.Errorf("CITYBIKES_BASE_URL cannot be empty")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be positive, got %d", c.Fetch.MaxAttempts)
	}
	if c.Fetch.BackoffFactor < 1 {
		return fmt.Errorf("FETCH_BACKOFF_FACTOR must be at least 1, got %g", c.Fetch.BackoffFactor)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Enrich.Workers <= 0 {
		return fmt.Errorf("FETCH_WORKERS must be positive, got %d", c.Enrich.Workers)
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("CACHE_DIR cannot be empty")
	}
	return nil
}

// Enabled reports whether a database was configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
