package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location relative to the working directory.
const ConfigPath = "config.yaml"

// Summary index backends.
const (
	SummaryIndexMemory = "memory"
	SummaryIndexRedis  = "redis"
	SummaryIndexBolt   = "bolt"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port             string            `yaml:"port"`
	LogLevel         string            `yaml:"logLevel"`
	LogsDir          string            `yaml:"logsDir"`
	GatewayURL       string            `yaml:"gatewayURL"`
	Model            string            `yaml:"model"`
	ExchangeTimeout  string            `yaml:"exchangeTimeout"`
	SessionTTL       string            `yaml:"sessionTTL"`
	DatabaseURL      string            `yaml:"databaseURL"`
	RedisAddr        string            `yaml:"redisAddr"`
	RedisPassword    string            `yaml:"redisPassword"`
	SummaryIndex     string            `yaml:"summaryIndex"`
	SummaryIndexPath string            `yaml:"summaryIndexPath"`
	SummaryTTL       string            `yaml:"summaryTTL"`
	ObjectStore      ObjectStoreConfig `yaml:"objectStore"`
	AuthJWKSURL      string            `yaml:"authJwksURL"`
	JWTIssuer        string            `yaml:"jwtIssuer"`
	JWTAudience      string            `yaml:"jwtAudience"`
	JWTLeeway        string            `yaml:"jwtLeeway"`
}

// ObjectStoreConfig enables image archiving when Endpoint is set.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	cfg.SummaryIndex = strings.ToLower(strings.TrimSpace(cfg.SummaryIndex))
	if cfg.SummaryIndex == "" {
		cfg.SummaryIndex = SummaryIndexMemory
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("CHAT_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CHAT_GATEWAY_URL"); v != "" {
		cfg.GatewayURL = v
	}
	if v := os.Getenv("CHAT_MODEL"); v != "" {
		cfg.Model = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("CHAT_SUMMARY_INDEX"); v != "" {
		cfg.SummaryIndex = v
	}
	if v := os.Getenv("CHAT_SUMMARY_INDEX_PATH"); v != "" {
		cfg.SummaryIndexPath = v
	}
	if v := os.Getenv("OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("OBJECT_STORE_ACCESS_KEY"); v != "" {
		cfg.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("OBJECT_STORE_SECRET_KEY"); v != "" {
		cfg.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("OBJECT_STORE_BUCKET"); v != "" {
		cfg.ObjectStore.Bucket = v
	}
	if v := os.Getenv("OBJECT_STORE_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.ObjectStore.UseSSL = b
		}
	}
	if v := os.Getenv("CHAT_AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return errors.New("config: gatewayURL is required (set in config.yaml or CHAT_GATEWAY_URL)")
	}
	switch cfg.SummaryIndex {
	case SummaryIndexMemory:
	case SummaryIndexRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis summary index")
		}
	case SummaryIndexBolt:
		if strings.TrimSpace(cfg.SummaryIndexPath) == "" {
			return errors.New("config: summaryIndexPath is required for the bolt summary index")
		}
	default:
		return fmt.Errorf("config: unknown summaryIndex %q (memory, redis, bolt)", cfg.SummaryIndex)
	}
	if cfg.ObjectStore.Endpoint != "" && strings.TrimSpace(cfg.ObjectStore.Bucket) == "" {
		return errors.New("config: objectStore.bucket is required when objectStore.endpoint is set")
	}
	for name, raw := range map[string]string{
		"exchangeTimeout": cfg.ExchangeTimeout,
		"sessionTTL":      cfg.SessionTTL,
		"summaryTTL":      cfg.SummaryTTL,
		"jwtLeeway":       cfg.JWTLeeway,
	} {
		if _, err := ParseDuration(name, raw); err != nil {
			return err
		}
	}
	return nil
}

// ParseDuration parses an optional duration setting; empty yields zero so
// callers fall back to their defaults.
func ParseDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}
	return dur, nil
}
