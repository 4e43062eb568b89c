package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
geminiAPIKey: from-file
allowedModels: [gemini-2.5-flash]
`)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("GATEWAY_ALLOWED_MODELS", "gemini-2.5-flash, gemini-2.5-pro")
	t.Setenv("GATEWAY_GENERATE_RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeminiAPIKey != "from-env" {
		t.Fatalf("expected env api key, got %q", cfg.GeminiAPIKey)
	}
	if cfg.GenerationProvider != "gemini" {
		t.Fatalf("expected default provider gemini, got %q", cfg.GenerationProvider)
	}
	if len(cfg.AllowedModels) != 2 || cfg.AllowedModels[1] != "gemini-2.5-pro" {
		t.Fatalf("unexpected allowed models: %v", cfg.AllowedModels)
	}
	if cfg.GenerateRateLimitPerMinute != 30 {
		t.Fatalf("unexpected rate limit: %d", cfg.GenerateRateLimitPerMinute)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing port", body: `geminiAPIKey: k`, want: "port is required"},
		{name: "missing gemini key", body: `port: "8080"`, want: "geminiAPIKey is required"},
		{name: "ollama without url", body: "port: \"8080\"\ngenerationProvider: ollama", want: "ollamaBaseURL is required"},
		{name: "unknown provider", body: "port: \"8080\"\ngenerationProvider: bard", want: "unknown generationProvider"},
		{name: "bad timeout", body: "port: \"8080\"\ngeminiAPIKey: k\nproviderTimeout: soon", want: "invalid providerTimeout"},
		{name: "negative rate", body: "port: \"8080\"\ngeminiAPIKey: k\ngenerateRateLimitPerMinute: -1", want: "must be >= 0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseProviderTimeout(t *testing.T) {
	if got, err := ParseProviderTimeout(""); err != nil || got != 60*time.Second {
		t.Fatalf("default timeout = %v, %v", got, err)
	}
	if got, err := ParseProviderTimeout("15s"); err != nil || got != 15*time.Second {
		t.Fatalf("parsed timeout = %v, %v", got, err)
	}
	if _, err := ParseProviderTimeout("-1s"); err == nil {
		t.Fatalf("expected negative timeout to fail")
	}
}
