package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"geminichat/pkg/ai"
)

type stubGenerator struct {
	reply    string
	err      error
	calls    int
	model    string
	payload  ai.Payload
	blockFor time.Duration
}

func (g *stubGenerator) Generate(ctx context.Context, model string, payload ai.Payload) (string, error) {
	g.calls++
	g.model = model
	g.payload = payload
	if g.blockFor > 0 {
		select {
		case <-time.After(g.blockFor):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, g.err
}

func newTestApp(t *testing.T, gen *stubGenerator, allowed ...string) *App {
	t.Helper()
	a, err := New(Config{Generator: gen, AllowedModels: allowed})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestSendReturnsReply(t *testing.T) {
	gen := &stubGenerator{reply: "4"}
	a := newTestApp(t, gen)

	reply, err := a.Send(context.Background(), Request{Message: "What is 2+2?"})
	if err != nil || reply != "4" {
		t.Fatalf("send = %q, %v", reply, err)
	}
	if gen.calls != 1 || gen.model != ai.DefaultGeminiModel {
		t.Fatalf("unexpected call: calls=%d model=%s", gen.calls, gen.model)
	}
	if len(gen.payload.Parts) != 1 {
		t.Fatalf("expected text-only payload, got %+v", gen.payload)
	}
}

func TestSendStripsDataURIImage(t *testing.T) {
	gen := &stubGenerator{reply: "a dot"}
	a := newTestApp(t, gen)

	_, err := a.Send(context.Background(), Request{
		Message:     "describe",
		Base64Image: "data:image/jpeg;base64,aGVsbG8=",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	img := gen.payload.Image()
	if img == nil || img.MIMEType != "image/jpeg" || img.Data != "aGVsbG8=" {
		t.Fatalf("unexpected inline image: %+v", img)
	}
}

func TestSendValidation(t *testing.T) {
	gen := &stubGenerator{reply: "x"}
	a := newTestApp(t, gen)
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{name: "blank", req: Request{Message: "  "}, want: ai.ErrEmptyMessage},
		{name: "bad base64", req: Request{Message: "hi", Base64Image: "!!!"}, want: ai.ErrInvalidImage},
		{name: "oversize", req: Request{Message: "hi", Base64Image: strings.Repeat("A", 8<<20)}, want: ai.ErrImageTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Send(context.Background(), tc.req)
			if !errors.Is(err, tc.want) || !errors.Is(err, ai.ErrValidation) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if gen.calls != 0 {
		t.Fatalf("validation failures must not reach the provider")
	}
}

func TestSendWrapsProviderError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("gemini api error: quota exceeded")}
	a := newTestApp(t, gen)

	_, err := a.Send(context.Background(), Request{Message: "hi"})
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %T %v", err, err)
	}
	if gwErr.Message != "gemini api error: quota exceeded" {
		t.Fatalf("unexpected message: %q", gwErr.Message)
	}
	if gen.calls != 1 {
		t.Fatalf("provider must be called exactly once, got %d", gen.calls)
	}
}

func TestSendTimeoutIsGatewayError(t *testing.T) {
	gen := &stubGenerator{blockFor: time.Second}
	a, err := New(Config{Generator: gen, ProviderTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	_, err = a.Send(context.Background(), Request{Message: "hi"})
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout GatewayError, got %v", err)
	}
}

func TestNewGatewayErrorFallsBackToUnknown(t *testing.T) {
	if got := newGatewayError(errors.New("  ")).Message; got != "Unknown error" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestResolveModel(t *testing.T) {
	a := newTestApp(t, &stubGenerator{}, "gemini-2.5-pro")
	if got := a.ResolveModel("gemini-2.5-pro"); got != "gemini-2.5-pro" {
		t.Fatalf("allowed model rejected: %s", got)
	}
	if got := a.ResolveModel("gpt-9"); got != ai.DefaultGeminiModel {
		t.Fatalf("disallowed model should fall back, got %s", got)
	}
	if got := a.ResolveModel(""); got != ai.DefaultGeminiModel {
		t.Fatalf("empty model should fall back, got %s", got)
	}
}

func TestNewGenerator(t *testing.T) {
	if _, err := NewGenerator(ProviderConfig{Provider: "gemini"}); err == nil {
		t.Fatalf("gemini without key should fail")
	}
	if _, err := NewGenerator(ProviderConfig{Provider: "gemini", GeminiAPIKey: "k"}); err != nil {
		t.Fatalf("gemini: %v", err)
	}
	if _, err := NewGenerator(ProviderConfig{Provider: "ollama", OllamaBaseURL: "http://localhost:11434"}); err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, err := NewGenerator(ProviderConfig{Provider: "bard"}); err == nil {
		t.Fatalf("unknown provider should fail")
	}
}
