package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration. Values come from the environment
// and may be overridden by command-line flags.
type Config struct {
	HTTPAddr   string
	GRPCAddr   string
	ReplayFile string

	Logging  LoggingConfig
	EventLog EventLogConfig
	Local    LocalCacheConfig
	Redis    RedisConfig
}

type LoggingConfig struct {
	Level  string
	Format string
}

type EventLogConfig struct {
	// MaxEventsPerSource bounds retained events per source, zero for unbounded.
	MaxEventsPerSource int
	Sources            []string
}

type LocalCacheConfig struct {
	Enabled bool
	Name    string
	// MaxItems is the expected number of entries; it sizes the admission counters.
	MaxItems int64
	// MaxCost bounds the cache in bytes.
	MaxCost int64
}

type RedisConfig struct {
	Enabled     bool
	Name        string
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

var (
	ErrNoHTTPAddr     = errors.New("http address must not be empty")
	ErrNegativeLimit  = errors.New("max events per source must not be negative")
	ErrLocalCacheSize = errors.New("local cache max items and max cost must be positive")
)

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:   getEnv("GRPC_ADDR", ":9090"),
		ReplayFile: getEnv("REPLAY_FILE", ""),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		EventLog: EventLogConfig{
			MaxEventsPerSource: getEnvInt("MAX_EVENTS_PER_SOURCE", 10000),
			Sources:            getEnvList("SOURCES"),
		},
		Local: LocalCacheConfig{
			Enabled:  getEnvBool("LOCAL_CACHE_ENABLED", true),
			Name:     getEnv("LOCAL_CACHE_NAME", "local"),
			MaxItems: int64(getEnvInt("LOCAL_CACHE_MAX_ITEMS", 100000)),
			MaxCost:  int64(getEnvInt("LOCAL_CACHE_MAX_COST", 64*1024*1024)),
		},
		Redis: RedisConfig{
			Enabled:     getEnvBool("REDIS_ENABLED", false),
			Name:        getEnv("REDIS_CACHE_NAME", "redis"),
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			DialTimeout: getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that have no usable fallback.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return ErrNoHTTPAddr
	}
	if c.EventLog.MaxEventsPerSource < 0 {
		return ErrNegativeLimit
	}
	if c.Local.Enabled && (c.Local.MaxItems <= 0 || c.Local.MaxCost <= 0) {
		return ErrLocalCacheSize
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
