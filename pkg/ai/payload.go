package ai

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"geminichat/pkg/domain"
)

var (
	// ErrValidation marks input rejected before any provider call.
	ErrValidation    = errors.New("validation error")
	ErrEmptyMessage  = fmt.Errorf("%w: please enter a message", ErrValidation)
	ErrImageTooLarge = fmt.Errorf("%w: image exceeds %d bytes", ErrValidation, domain.MaxImageBytes)
	ErrInvalidImage  = fmt.Errorf("%w: image is not valid base64", ErrValidation)
)

// Payload is the provider-shaped body of one user turn: the text part
// first, then an optional inline image part.
type Payload struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries raw base64 (no data-URI prefix) tagged with its MIME type.
type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Text returns the text part.
func (p Payload) Text() string {
	for _, part := range p.Parts {
		if part.InlineData == nil {
			return part.Text
		}
	}
	return ""
}

// Image returns the inline image part, if any.
func (p Payload) Image() *InlineData {
	for _, part := range p.Parts {
		if part.InlineData != nil {
			return part.InlineData
		}
	}
	return nil
}

// BuildPayload turns a user turn into a provider request body.
func BuildPayload(text string, img *domain.Image) (Payload, error) {
	if strings.TrimSpace(text) == "" {
		return Payload{}, ErrEmptyMessage
	}
	if err := ValidateImage(img); err != nil {
		return Payload{}, err
	}
	parts := []Part{{Text: text}}
	if img != nil {
		parts = append(parts, Part{InlineData: &InlineData{
			MIMEType: img.ContentType(),
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	return Payload{Parts: parts}, nil
}

// ValidateImage enforces the attachment size bound. A nil image is valid.
func ValidateImage(img *domain.Image) error {
	if img == nil {
		return nil
	}
	if len(img.Data) > domain.MaxImageBytes {
		return ErrImageTooLarge
	}
	return nil
}

// StripDataURI removes a "data:<mime>;base64," prefix. The declared MIME
// type is returned when present.
func StripDataURI(raw string) (data string, mimeType string) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return raw, ""
	}
	header, body, ok := strings.Cut(raw, ",")
	if !ok {
		return raw, ""
	}
	header = strings.TrimPrefix(header, "data:")
	header = strings.TrimSuffix(header, ";base64")
	return body, strings.TrimSpace(header)
}

// DecodeImage turns wire fields back into an attachment. An empty payload
// yields nil.
func DecodeImage(b64, mimeType string) (*domain.Image, error) {
	data, declared := StripDataURI(b64)
	if data == "" {
		return nil, nil
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = declared
	}
	// base64 inflates by 4/3; reject early before allocating.
	if base64.StdEncoding.DecodedLen(len(data)) > domain.MaxImageBytes+3 {
		return nil, ErrImageTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidImage
	}
	img := &domain.Image{Data: raw, MIMEType: strings.TrimSpace(mimeType)}
	if err := ValidateImage(img); err != nil {
		return nil, err
	}
	return img, nil
}
