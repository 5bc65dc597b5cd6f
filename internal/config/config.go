package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	DriverMinio  = "minio"
	DriverMemory = "memory"
)

// Access levels for ALLOWED_RESOURCES.
const (
	AccessRead  = "read"
	AccessWrite = "write"
	AccessAll   = "all"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// AllowedResources maps a top level resource ("jobs") to an access level.
	AllowedResources map[string]string `yaml:"allowed_resources"`
	// AdminIPs are the client IP prefixes allowed to manage the cache.
	AdminIPs []string `yaml:"admin_ips"`
}

type StorageConfig struct {
	Driver          string `yaml:"driver"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"use_ssl"`
}

type CacheConfig struct {
	// MaxSize is a human readable byte size such as "10MiB".
	MaxSize       string        `yaml:"max_size"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	DedupeFetch   bool          `yaml:"dedupe_fetch"`
}

// MaxBytes parses MaxSize.
func (c CacheConfig) MaxBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid cache max size %q: %w", c.MaxSize, err)
	}
	if n == 0 {
		return 0, errors.New("cache max size must be positive")
	}
	return int64(n), nil
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 50,
			RateBurst: 100,
			AllowedResources: map[string]string{
				"jobs":         AccessAll,
				"applications": AccessAll,
				"profiles":     AccessAll,
			},
			AdminIPs: []string{"127.0.0.1", "::1"},
		},
		Storage: StorageConfig{
			Driver:          DriverMinio,
			Endpoint:        "localhost:9000",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			Bucket:          "jobboard",
		},
		Cache: CacheConfig{
			MaxSize:       "10MiB",
			SweepInterval: 5 * time.Minute,
			DefaultTTL:    30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file named by JOBCACHE_CONFIG, if set, over the
// defaults and then applies environment overrides.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("JOBCACHE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Server.Addr = getEnv("LISTEN_ADDR", cfg.Server.Addr)
	cfg.Server.AdminIPs = getList("ADMIN_IPS", cfg.Server.AdminIPs)
	if v := os.Getenv("ALLOWED_RESOURCES"); v != "" {
		access, err := parseResourceAccess(v)
		if err != nil {
			return err
		}
		cfg.Server.AllowedResources = access
	}

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKeyID = getEnv("S3_ACCESS_KEY", cfg.Storage.AccessKeyID)
	cfg.Storage.SecretAccessKey = getEnv("S3_SECRET_KEY", cfg.Storage.SecretAccessKey)
	cfg.Storage.Bucket = getEnv("S3_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Region = getEnv("S3_REGION", cfg.Storage.Region)
	cfg.Storage.UseSSL = getEnv("S3_USE_SSL", strconv.FormatBool(cfg.Storage.UseSSL)) == "true"

	cfg.Cache.MaxSize = getEnv("CACHE_MAX_SIZE", cfg.Cache.MaxSize)
	cfg.Cache.DedupeFetch = getEnv("CACHE_DEDUPE_FETCH", strconv.FormatBool(cfg.Cache.DedupeFetch)) == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.Server.RateLimit, err = getFloat("RATE_LIMIT", cfg.Server.RateLimit); err != nil {
		return err
	}
	if cfg.Server.RateBurst, err = getInt("RATE_BURST", cfg.Server.RateBurst); err != nil {
		return err
	}
	if cfg.Cache.SweepInterval, err = getDuration("CACHE_SWEEP_INTERVAL", cfg.Cache.SweepInterval); err != nil {
		return err
	}
	if cfg.Cache.DefaultTTL, err = getDuration("CACHE_DEFAULT_TTL", cfg.Cache.DefaultTTL); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := c.Cache.MaxBytes(); err != nil {
		return err
	}
	if c.Cache.SweepInterval <= 0 {
		return errors.New("cache sweep interval must be positive")
	}
	if c.Cache.DefaultTTL <= 0 {
		return errors.New("cache default ttl must be positive")
	}
	switch c.Storage.Driver {
	case DriverMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return errors.New("minio storage requires an endpoint and a bucket")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	for resource, level := range c.Server.AllowedResources {
		switch level {
		case AccessRead, AccessWrite, AccessAll:
		default:
			return fmt.Errorf("invalid access level %q for %s", level, resource)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseResourceAccess(policy string) (map[string]string, error) {
	access := make(map[string]string)
	pairs := strings.Split(policy, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			return nil, errors.New("invalid resource access policy format")
		}
		resource := strings.TrimSpace(parts[0])
		level := strings.TrimSpace(parts[1])
		if resource == "" || level == "" {
			return nil, errors.New("resource name or access level cannot be empty")
		}
		access[resource] = level
	}
	return access, nil
}
