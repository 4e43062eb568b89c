package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

const (
	// MaxImageBytes bounds the raw size of an attached image.
	MaxImageBytes        = 5 << 20
	DefaultImageMIMEType = "image/png"
	DefaultSummaryTitle  = "Untitled Chat"
	summaryTitleRunes    = 30
)

var ErrEmptyContent = errors.New("user turn content required")

// Turn is one message of a transcript. Content is nil only for a system
// reply whose request is still in flight.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   *string   `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserTurn builds a user turn. The text is kept as submitted.
func NewUserTurn(text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyContent
	}
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   &text,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewPendingReply builds the placeholder reply shown while a request is in flight.
func NewPendingReply() Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		CreatedAt: time.Now().UTC(),
	}
}

// Pending reports whether the turn is a placeholder.
func (t Turn) Pending() bool {
	return t.Role == RoleSystem && t.Content == nil
}

// Text returns the content or "" for a placeholder.
func (t Turn) Text() string {
	if t.Content == nil {
		return ""
	}
	return *t.Content
}

// Image is an attachment submitted with a user turn.
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// ContentType returns the declared MIME type or the default.
func (i Image) ContentType() string {
	if mt := strings.TrimSpace(i.MIMEType); mt != "" {
		return mt
	}
	return DefaultImageMIMEType
}

type HistoryRecord struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	SessionID string    `json:"sessionId"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model,omitempty"`
	ImageKey  string    `json:"imageKey,omitempty"`
	ImageType string    `json:"imageType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChatSummary struct {
	Title string `json:"title"`
}

// SummaryTitle derives a sidebar label from the first prompt of a session.
func SummaryTitle(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > summaryTitleRunes {
		runes = runes[:summaryTitleRunes]
	}
	if strings.TrimSpace(string(runes)) == "" {
		return DefaultSummaryTitle
	}
	return string(runes)
}

// Identity is what the external identity provider tells us about the caller.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}
