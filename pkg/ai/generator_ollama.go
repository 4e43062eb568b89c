package ai

import (
	"context"
	"fmt"
	"strings"
)

// OllamaGenerator sends a user turn through the Ollama /api/chat endpoint.
type OllamaGenerator struct {
	client       *OllamaClient
	defaultModel string
}

// NewOllamaGenerator builds an Ollama-based Generator.
func NewOllamaGenerator(client *OllamaClient, defaultModel string) *OllamaGenerator {
	return &OllamaGenerator{client: client, defaultModel: strings.TrimSpace(defaultModel)}
}

// Generate implements Generator using Ollama /api/chat.
func (g *OllamaGenerator) Generate(ctx context.Context, model string, payload Payload) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = g.defaultModel
	}
	if model == "" {
		return "", fmt.Errorf("ollama generation model required")
	}

	msg := ollamaChatMessage{Role: "user", Content: payload.Text()}
	if img := payload.Image(); img != nil {
		msg.Images = []string{img.Data}
	}
	reqBody := ollamaChatRequest{
		Model:    model,
		Messages: []ollamaChatMessage{msg},
		Stream:   false,
	}

	var resp ollamaChatResponse
	if _, err := g.client.doJSON(ctx, "/api/chat", reqBody, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Message.Content, nil
}

// Ollama /api/chat request/response types.

type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}
