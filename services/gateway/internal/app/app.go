package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"geminichat/pkg/ai"
)

// Config holds runtime configuration for the gateway core.
type Config struct {
	Generator       ai.Generator
	DefaultModel    string
	AllowedModels   []string
	ProviderTimeout time.Duration
}

// Request is one generation request as received on the wire.
type Request struct {
	Message       string
	Base64Image   string
	ImageMIMEType string
	Model         string
}

// App forwards single-turn payloads to the configured provider. It keeps no
// state between calls.
type App struct {
	generator    ai.Generator
	defaultModel string
	allowed      map[string]struct{}
	timeout      time.Duration
}

// New constructs the gateway core.
func New(cfg Config) (*App, error) {
	if cfg.Generator == nil {
		return nil, errors.New("generator required")
	}
	defaultModel := strings.TrimSpace(cfg.DefaultModel)
	if defaultModel == "" {
		defaultModel = ai.DefaultGeminiModel
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedModels)+1)
	allowed[defaultModel] = struct{}{}
	for _, m := range cfg.AllowedModels {
		if m = strings.TrimSpace(m); m != "" {
			allowed[m] = struct{}{}
		}
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &App{
		generator:    cfg.Generator,
		defaultModel: defaultModel,
		allowed:      allowed,
		timeout:      timeout,
	}, nil
}

// Send validates req, builds the provider payload and makes exactly one
// provider call. Validation failures wrap ai.ErrValidation; provider failures
// are *GatewayError. An empty reply is returned as is.
func (a *App) Send(ctx context.Context, req Request) (string, error) {
	img, err := ai.DecodeImage(req.Base64Image, req.ImageMIMEType)
	if err != nil {
		return "", err
	}
	payload, err := ai.BuildPayload(req.Message, img)
	if err != nil {
		return "", err
	}
	model := a.ResolveModel(req.Model)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()
	reply, err := a.generator.Generate(ctx, model, payload)
	if err != nil {
		slog.Warn("generation failed", "model", model, "duration_ms", time.Since(start).Milliseconds(), "err", err)
		return "", newGatewayError(err)
	}
	slog.Debug("generation done", "model", model, "has_image", img != nil, "duration_ms", time.Since(start).Milliseconds())
	return reply, nil
}

// ResolveModel returns requested when it is allowed, else the default model.
func (a *App) ResolveModel(requested string) string {
	requested = strings.TrimSpace(requested)
	if _, ok := a.allowed[requested]; ok {
		return requested
	}
	return a.defaultModel
}

// ProviderConfig selects and configures the generation provider.
type ProviderConfig struct {
	Provider      string
	GeminiAPIKey  string
	GeminiBaseURL string
	OllamaBaseURL string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	DefaultModel  string
	Timeout       time.Duration
}

// NewGenerator builds the Generator named by cfg.Provider.
func NewGenerator(cfg ProviderConfig) (ai.Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey,
			ai.WithGeminiBaseURL(cfg.GeminiBaseURL),
			ai.WithGeminiTimeout(cfg.Timeout),
		)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client), nil
	case "ollama":
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.OllamaBaseURL, cfg.Timeout), cfg.DefaultModel), nil
	case "openai-compat":
		return ai.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.DefaultModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
