// Package config loads recordbook settings from a YAML file, an optional
// .env file and the environment, in that order of increasing precedence.
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/recordbook/pkg/pending"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

const (
	// DefaultQuotaBytes matches the usual browser local storage budget.
	DefaultQuotaBytes = 5 * 1024 * 1024
	// DefaultStorageKey is the key holding the record collection.
	DefaultStorageKey = "records"
)

// Config is the full application configuration.
type Config struct {
	// Backend selects the key-value store: file, sqlite, redis, s3 or memory.
	Backend string `yaml:"backend"`

	// DataDir holds the file and sqlite backends' data.
	DataDir string `yaml:"data_dir"`

	// StorageKey is the key the collection is stored under.
	StorageKey string `yaml:"storage_key"`

	// QuotaBytes caps the stored document size. Zero disables the cap.
	QuotaBytes int64 `yaml:"quota_bytes"`

	// Debug turns index errors into panics and enables debug logging.
	Debug bool `yaml:"debug"`

	// AcceptPattern filters which files are offered as images.
	AcceptPattern string `yaml:"accept_pattern"`

	Pending PendingConfig `yaml:"pending"`
	Logging LoggingConfig `yaml:"logging"`
	Redis   RedisConfig   `yaml:"redis"`
	S3      S3Config      `yaml:"s3"`

	path string
}

// PendingConfig configures the pending image buffer.
type PendingConfig struct {
	// Truncation is keep-oldest or sliding-window.
	Truncation string `yaml:"truncation"`
}

// LoggingConfig configures the session log.
type LoggingConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	Prefix          string `yaml:"prefix"`
}

// DefaultDir returns ~/.recordbook, or .recordbook when the home directory is unknown.
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".recordbook"
	}
	return filepath.Join(homeDir, ".recordbook")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns a configuration suitable for a single local user.
func Default() *Config {
	dir := DefaultDir()
	return &Config{
		Backend:       BackendFile,
		DataDir:       dir,
		StorageKey:    DefaultStorageKey,
		QuotaBytes:    DefaultQuotaBytes,
		AcceptPattern: "",
		Pending:       PendingConfig{Truncation: pending.KeepOldest.String()},
		Logging:       LoggingConfig{Dir: filepath.Join(dir, "logs")},
		Redis:         RedisConfig{Addr: "localhost:6379", Prefix: "recordbook:"},
		S3:            S3Config{Region: "us-east-1", Prefix: "recordbook/"},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. An empty path means DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// into the process environment. Missing files are ignored; existing
// variables are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from RECORDBOOK_*, REDIS_* and S3_* variables.
// Values that do not parse are reported together and leave the field as it
// was.
func (c *Config) ApplyEnv() error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error

	c.Backend = getEnv("RECORDBOOK_BACKEND", c.Backend)
	c.DataDir = getEnv("RECORDBOOK_DATA_DIR", c.DataDir)
	c.StorageKey = getEnv("RECORDBOOK_STORAGE_KEY", c.StorageKey)
	c.QuotaBytes, err = getEnvAsInt64("RECORDBOOK_QUOTA_BYTES", c.QuotaBytes)
	check(err)
	c.Debug, err = getEnvAsBool("RECORDBOOK_DEBUG", c.Debug)
	check(err)
	c.AcceptPattern = getEnv("RECORDBOOK_ACCEPT", c.AcceptPattern)
	c.Pending.Truncation = getEnv("RECORDBOOK_TRUNCATION", c.Pending.Truncation)
	c.Logging.Dir = getEnv("RECORDBOOK_LOG_DIR", c.Logging.Dir)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB, err = getEnvAsInt("REDIS_DB", c.Redis.DB)
	check(err)
	c.Redis.Prefix = getEnv("REDIS_PREFIX", c.Redis.Prefix)

	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
	c.S3.UsePathStyle, err = getEnvAsBool("S3_USE_PATH_STYLE", c.S3.UsePathStyle)
	check(err)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)

	return errors.Join(errs...)
}

// Path returns the file the configuration was read from, if any.
func (c *Config) Path() string {
	return c.path
}

// TruncationPolicy returns the parsed pending truncation policy.
func (c *Config) TruncationPolicy() (pending.Policy, error) {
	return pending.ParsePolicy(c.Pending.Truncation)
}

// FileStorePath is where the file backend keeps its data.
func (c *Config) FileStorePath() string {
	return filepath.Join(c.DataDir, "store.json")
}

// SQLitePath is where the sqlite backend keeps its database.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "recordbook.db")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
		if c.DataDir == "" {
			return fmt.Errorf("data_dir is required for the %s backend", c.Backend)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis backend")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("redis.db cannot be negative")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid backend: %s (must be 'file', 'sqlite', 'redis', 's3' or 'memory')", c.Backend)
	}

	if c.StorageKey == "" {
		return fmt.Errorf("storage_key cannot be empty")
	}

	if c.QuotaBytes < 0 {
		return fmt.Errorf("quota_bytes cannot be negative")
	}

	if _, err := c.TruncationPolicy(); err != nil {
		return fmt.Errorf("invalid pending.truncation: %w", err)
	}

	return nil
}
