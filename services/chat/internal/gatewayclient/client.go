package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"geminichat/internal/util"
	"geminichat/pkg/conversation"
)

// Client calls the generation gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a gateway error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway %d: %s", e.Status, e.Message)
}

// NewClient constructs a gateway client. The timeout bounds one round trip.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = conversation.DefaultExchangeTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Message       string `json:"message"`
	Base64Image   string `json:"base64Image,omitempty"`
	ImageMIMEType string `json:"imageMimeType,omitempty"`
	Model         string `json:"model,omitempty"`
}

// Send implements conversation.Gateway. The image travels as raw base64.
func (c *Client) Send(ctx context.Context, ex conversation.Exchange) (string, error) {
	body := generateRequest{Message: ex.Payload.Text(), Model: ex.Model}
	if img := ex.Payload.Image(); img != nil {
		body.Base64Image = img.Data
		body.ImageMIMEType = img.MIMEType
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/gemini", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := util.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(out.Error)
		if msg == "" {
			msg = resp.Status
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode gateway response: %w", decodeErr)
	}
	return out.Reply, nil
}
