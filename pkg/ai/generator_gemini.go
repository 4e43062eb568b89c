package ai

import "context"

// GeminiGenerator adapts GeminiClient to Generator.
type GeminiGenerator struct {
	client *GeminiClient
}

// NewGeminiGenerator builds a Gemini-based Generator.
func NewGeminiGenerator(client *GeminiClient) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

// Generate implements Generator using Gemini.
func (g *GeminiGenerator) Generate(ctx context.Context, model string, payload Payload) (string, error) {
	return g.client.GenerateContent(ctx, model, payload)
}
