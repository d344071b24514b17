package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for triage runs and the API server.
type Config struct {
	Log        LogConfig
	Clustering ClusteringConfig
	Checkpoint CheckpointConfig
	Output     OutputConfig
	Fetch      FetchConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type ClusteringConfig struct {
	// TestTimeBudget caps time spent on one test's failures; 0 disables it.
	TestTimeBudget time.Duration
	MinClusterSize int
	DefaultOwner   string
}

type CheckpointConfig struct {
	Dir      string
	Compress bool
}

type OutputConfig struct {
	Path string
	// Slices is a path template containing PREFIX; empty disables slicing.
	Slices string
}

// FetchConfig controls downloading http(s) inputs.
type FetchConfig struct {
	Dir     string
	Token   string
	Timeout time.Duration
}

type ServerConfig struct {
	Port int
	Env  string
	// APIKeyHash is a bcrypt hash of the bearer token; empty disables auth.
	APIKeyHash string
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Database and Redis settings are optional here; see ValidateServe.
func Load() (*Config, error) {
	cfg := &Config{
		Log: LogConfig{
			Level:  strings.ToLower(envString("TRIAGE_LOG_LEVEL", "info")),
			Format: envString("TRIAGE_LOG_FORMAT", "json"),
		},
		Clustering: ClusteringConfig{
			TestTimeBudget: envDuration("TRIAGE_TEST_TIME_BUDGET", 60*time.Second),
			MinClusterSize: envInt("TRIAGE_MIN_CLUSTER_SIZE", 2),
			DefaultOwner:   envString("TRIAGE_DEFAULT_OWNER", "unowned"),
		},
		Checkpoint: CheckpointConfig{
			Dir:      os.Getenv("TRIAGE_CHECKPOINT_DIR"),
			Compress: envBool("TRIAGE_CHECKPOINT_COMPRESS", false),
		},
		Output: OutputConfig{
			Path:   envString("TRIAGE_OUTPUT", "failure_data.json"),
			Slices: os.Getenv("TRIAGE_OUTPUT_SLICES"),
		},
		Fetch: FetchConfig{
			Dir:     envString("TRIAGE_FETCH_DIR", filepath.Join(os.TempDir(), "triage-inputs")),
			Token:   os.Getenv("TRIAGE_FETCH_TOKEN"),
			Timeout: envDuration("TRIAGE_FETCH_TIMEOUT", 5*time.Minute),
		},
		Server: ServerConfig{
			Port:       envInt("TRIAGE_PORT", 8080),
			Env:        envString("TRIAGE_ENV", "development"),
			APIKeyHash: os.Getenv("TRIAGE_API_KEY_HASH"),
			RateLimit:  envInt("TRIAGE_RATE_LIMIT", 120),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("TRIAGE_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("TRIAGE_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	if c.Clustering.TestTimeBudget < 0 {
		return fmt.Errorf("TRIAGE_TEST_TIME_BUDGET must not be negative, got %s", c.Clustering.TestTimeBudget)
	}
	if c.Clustering.MinClusterSize < 1 {
		return fmt.Errorf("TRIAGE_MIN_CLUSTER_SIZE must be at least 1, got %d", c.Clustering.MinClusterSize)
	}
	if c.Clustering.DefaultOwner == "" {
		return fmt.Errorf("TRIAGE_DEFAULT_OWNER must not be empty")
	}

	if c.Output.Slices != "" && !strings.Contains(c.Output.Slices, "PREFIX") {
		return fmt.Errorf("TRIAGE_OUTPUT_SLICES must contain PREFIX, got %q", c.Output.Slices)
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("TRIAGE_FETCH_TIMEOUT must be positive, got %s", c.Fetch.Timeout)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("TRIAGE_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("TRIAGE_RATE_LIMIT must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Server.APIKeyHash != "" && !strings.HasPrefix(c.Server.APIKeyHash, "$2") {
		return fmt.Errorf("TRIAGE_API_KEY_HASH must be a bcrypt hash")
	}

	return nil
}

// ValidatePublish checks the settings needed to persist runs.
func (c *Config) ValidatePublish() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// ValidateServe checks the settings needed to run the API server.
func (c *Config) ValidateServe() error {
	if err := c.ValidatePublish(); err != nil {
		return err
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
