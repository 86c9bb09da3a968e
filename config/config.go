// Package config loads the application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Supabase  SupabaseConfig
	Rates     RatesConfig
	Assistant AssistantConfig
	Redis     RedisConfig
	Sync      SyncConfig
	Logging   LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DatabaseConfig points at the hosted postgres database.
type DatabaseConfig struct {
	URL string
}

// SupabaseConfig holds the hosted backend endpoints and keys.
type SupabaseConfig struct {
	URL           string
	AnonKey       string
	ServiceKey    string
	JWTSecret     string
	StorageBucket string
}

// RatesConfig configures the exchange rate source.
type RatesConfig struct {
	URL      string
	Path     string // JSONPath to the code->rate object
	Interval time.Duration
}

// AssistantConfig configures the language model upstream.
type AssistantConfig struct {
	APIKey string
	Model  string
}

// RedisConfig configures alert delivery. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// SyncConfig controls the state synchronizer.
type SyncConfig struct {
	LoadTimeout          time.Duration
	ConnectivityInterval time.Duration
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level       string
	Development bool
}

const (
	defaultHost                 = "0.0.0.0"
	defaultPort                 = 8080
	defaultReadTimeout          = 10 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 60 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
	defaultRatesURL             = "https://api.exchangerate-api.com/v4/latest/USD"
	defaultRatesPath            = "$.rates"
	defaultRatesInterval        = time.Hour
	defaultModel                = "gemini-2.5-flash"
	defaultStorageBucket        = "profile-photos"
	defaultRedisChannel         = "finntra:alerts"
	defaultLoadTimeout          = 30 * time.Second
	defaultConnectivityInterval = 30 * time.Second
	defaultLoggingLevel         = "info"
)

// Load reads the dotenv files when present, .env by default, then
// configuration from environment variables, applying defaults. Variables
// already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	// a missing .env is the normal case in production.
	_ = godotenv.Load(files...)

	cfg := Config{
		HTTP: HTTPConfig{
			Host:           valueOrDefault("SERVER_HOST", defaultHost),
			AllowedOrigins: parseList(os.Getenv("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Supabase: SupabaseConfig{
			URL:           strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			AnonKey:       os.Getenv("SUPABASE_ANON_KEY"),
			ServiceKey:    os.Getenv("SUPABASE_SERVICE_KEY"),
			JWTSecret:     os.Getenv("SUPABASE_JWT_SECRET"),
			StorageBucket: valueOrDefault("STORAGE_BUCKET", defaultStorageBucket),
		},
		Rates: RatesConfig{
			URL:  valueOrDefault("RATES_URL", defaultRatesURL),
			Path: valueOrDefault("RATES_PATH", defaultRatesPath),
		},
		Assistant: AssistantConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  valueOrDefault("ASSISTANT_MODEL", defaultModel),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseIntWithDefault("REDIS_DB", 0),
			Channel:  valueOrDefault("REDIS_CHANNEL", defaultRedisChannel),
		},
		Logging: LoggingConfig{
			Level:       valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Development: parseBoolWithDefault("LOG_DEVELOPMENT", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"RATES_INTERVAL", defaultRatesInterval, &cfg.Rates.Interval},
		{"SYNC_LOAD_TIMEOUT", defaultLoadTimeout, &cfg.Sync.LoadTimeout},
		{"CONNECTIVITY_INTERVAL", defaultConnectivityInterval, &cfg.Sync.ConnectivityInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}

func parseList(csv string) []string {
	var items []string
	for _, part := range strings.Split(csv, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}
