package ai

import "context"

// Generator produces a reply for one multimodal payload.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
// An empty reply with a nil error means the provider answered without usable text.
type Generator interface {
	Generate(ctx context.Context, model string, payload Payload) (string, error)
}
