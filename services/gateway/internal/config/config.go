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

const defaultProviderTimeout = 60 * time.Second

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string   `yaml:"port"`
	LogLevel                   string   `yaml:"logLevel"`
	LogsDir                    string   `yaml:"logsDir"`
	GenerationProvider         string   `yaml:"generationProvider"`
	GeminiAPIKey               string   `yaml:"geminiAPIKey"`
	GeminiBaseURL              string   `yaml:"geminiBaseURL"`
	OllamaBaseURL              string   `yaml:"ollamaBaseURL"`
	OpenAIBaseURL              string   `yaml:"openaiBaseURL"`
	OpenAIAPIKey               string   `yaml:"openaiAPIKey"`
	DefaultModel               string   `yaml:"defaultModel"`
	AllowedModels              []string `yaml:"allowedModels"`
	ProviderTimeout            string   `yaml:"providerTimeout"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	GenerateRateLimitPerMinute int      `yaml:"generateRateLimitPerMinute"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
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
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = "gemini"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GATEWAY_GENERATION_PROVIDER"); v != "" {
		cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_BASE_URL"); v != "" {
		cfg.GeminiBaseURL = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.OllamaBaseURL = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("GATEWAY_DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = strings.TrimSpace(v)
	}
	if v := os.Getenv("GATEWAY_ALLOWED_MODELS"); v != "" {
		cfg.AllowedModels = splitCSV(v)
	}
	if v := os.Getenv("GATEWAY_PROVIDER_TIMEOUT"); v != "" {
		cfg.ProviderTimeout = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("GATEWAY_GENERATE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.GenerateRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GATEWAY_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.GenerationProvider {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return errors.New("config: geminiAPIKey is required (set in config.yaml or GEMINI_API_KEY)")
		}
	case "ollama":
		if strings.TrimSpace(cfg.OllamaBaseURL) == "" {
			return errors.New("config: ollamaBaseURL is required for the ollama provider")
		}
	case "openai-compat":
		if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			return errors.New("config: openaiBaseURL is required for the openai-compat provider")
		}
	default:
		return fmt.Errorf("config: unknown generationProvider %q (gemini, ollama, openai-compat)", cfg.GenerationProvider)
	}
	if _, err := ParseProviderTimeout(cfg.ProviderTimeout); err != nil {
		return err
	}
	if cfg.GenerateRateLimitPerMinute < 0 {
		return errors.New("config: generateRateLimitPerMinute must be >= 0")
	}
	return nil
}

// ParseProviderTimeout parses the optional provider timeout, defaulting to 60s.
func ParseProviderTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultProviderTimeout, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid providerTimeout duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("config: providerTimeout must be positive")
	}
	return dur, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
