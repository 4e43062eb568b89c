package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"geminichat/internal/util"
	"geminichat/pkg/conversation"
	"geminichat/pkg/domain"
	"geminichat/pkg/storage"
	"geminichat/pkg/store"
)

const (
	defaultSessionTTL   = 24 * time.Hour
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Config holds runtime configuration for the core application.
type Config struct {
	Gateway         conversation.Gateway
	History         store.HistoryStore
	Summaries       store.SummaryIndex
	Images          storage.ObjectStore
	Model           string
	ExchangeTimeout time.Duration
	SessionTTL      time.Duration
}

// App owns the live sessions and the stores shared between them.
type App struct {
	cfg      Config
	recorder *conversation.Recorder
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id        string
	ownerID   string
	createdAt time.Time
	orch      *conversation.Orchestrator

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// SessionView is the client-facing snapshot of one session.
type SessionView struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	Turns     []domain.Turn `json:"turns"`
	Pending   bool          `json:"pending"`
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("gateway required")
	}
	if cfg.History == nil {
		cfg.History = store.NewMemoryStore()
	}
	if cfg.Summaries == nil {
		cfg.Summaries = store.NewMemorySummaryIndex()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	recorder := conversation.NewRecorder(conversation.RecorderConfig{
		History:   cfg.History,
		Summaries: cfg.Summaries,
		Images:    cfg.Images,
	})
	return &App{
		cfg:      cfg,
		recorder: recorder,
		now:      time.Now,
		sessions: make(map[string]*session),
	}, nil
}

// NewSession starts an empty conversation for owner.
func (a *App) NewSession(ownerID string) (SessionView, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return SessionView{}, ErrOwnerRequired
	}
	id := util.NewID()
	orch, err := conversation.NewOrchestrator(conversation.NewStore(), conversation.Config{
		Gateway:   a.cfg.Gateway,
		Recorder:  a.recorder,
		Model:     a.cfg.Model,
		Timeout:   a.cfg.ExchangeTimeout,
		OwnerID:   ownerID,
		SessionID: id,
	})
	if err != nil {
		return SessionView{}, err
	}
	now := a.now().UTC()
	s := &session{id: id, ownerID: ownerID, createdAt: now, orch: orch, lastUsed: now}

	a.mu.Lock()
	a.sessions[id] = s
	a.mu.Unlock()
	slog.Info("session started", "session_id", id, "owner_id", ownerID)
	return view(s), nil
}

// Transcript returns the current state of a session.
func (a *App) Transcript(ownerID, sessionID string) (SessionView, error) {
	s, err := a.lookup(ownerID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return view(s), nil
}

// Message is one user submission. An empty Model uses the configured one.
type Message struct {
	Text  string
	Image *domain.Image
	Model string
}

// Submit runs one exchange in the session and returns the settled transcript.
// The exchange is not tied to the caller's cancellation: once accepted it
// always settles or fails.
func (a *App) Submit(ctx context.Context, ownerID, sessionID string, msg Message) (SessionView, error) {
	s, err := a.lookup(ownerID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	s.touch(a.now())
	if err := s.orch.SubmitModel(context.WithoutCancel(ctx), msg.Model, msg.Text, msg.Image); err != nil {
		return SessionView{}, err
	}
	s.touch(a.now())
	return view(s), nil
}

// Summaries lists the sidebar titles of owner.
func (a *App) Summaries(ctx context.Context, ownerID string) ([]domain.ChatSummary, error) {
	return a.cfg.Summaries.List(ctx, ownerID)
}

// ClearSummaries drops the sidebar titles. Durable history is untouched.
func (a *App) ClearSummaries(ctx context.Context, ownerID string) error {
	return a.cfg.Summaries.Clear(ctx, ownerID)
}

// History returns the newest durable records of owner.
func (a *App) History(ctx context.Context, ownerID string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return a.cfg.History.ListHistory(ctx, ownerID, limit)
}

// EvictIdle drops sessions idle for longer than the session TTL. Sessions
// with a reply in flight are kept.
func (a *App) EvictIdle() int {
	cutoff := a.now().Add(-a.cfg.SessionTTL)
	a.mu.Lock()
	defer a.mu.Unlock()
	evicted := 0
	for id, s := range a.sessions {
		if s.idleSince().Before(cutoff) && !s.orch.Store().Pending() {
			delete(a.sessions, id)
			evicted++
		}
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (a *App) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.EvictIdle(); n > 0 {
				slog.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// Close stops accepting history writes and waits for the started ones.
func (a *App) Close() {
	a.recorder.Close()
}

func (a *App) lookup(ownerID, sessionID string) (*session, error) {
	a.mu.Lock()
	s, ok := a.sessions[sessionID]
	a.mu.Unlock()
	if !ok || s.ownerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func view(s *session) SessionView {
	transcript := s.orch.Store()
	return SessionView{
		ID:        s.id,
		CreatedAt: s.createdAt,
		Turns:     transcript.Turns(),
		Pending:   transcript.Pending(),
	}
}
