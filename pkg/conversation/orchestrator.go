package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"geminichat/pkg/ai"
	"geminichat/pkg/domain"
)

// DefaultExchangeTimeout bounds one gateway round trip.
const DefaultExchangeTimeout = 90 * time.Second

// Exchange is one request to the generation gateway.
type Exchange struct {
	Model   string
	Payload ai.Payload
}

// Gateway sends one exchange and returns the reply text. An empty reply with
// a nil error is a success.
type Gateway interface {
	Send(ctx context.Context, ex Exchange) (string, error)
}

type Config struct {
	Gateway   Gateway
	Recorder  *Recorder
	Model     string
	Timeout   time.Duration
	OwnerID   string
	SessionID string
	// OnAccepted runs once input is accepted, before the gateway call.
	OnAccepted func()
	Logger     *slog.Logger
}

// Orchestrator drives one session's exchanges: validate, append, send,
// settle, record. Only one exchange may be in flight at a time.
type Orchestrator struct {
	cfg        Config
	store      *Store
	logger     *slog.Logger
	inFlight   atomic.Bool
	summarized atomic.Bool
}

func NewOrchestrator(store *Store, cfg Config) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("conversation store required")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("gateway required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultExchangeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		logger: logger.With("session_id", cfg.SessionID),
	}, nil
}

// Store returns the transcript this orchestrator drives.
func (o *Orchestrator) Store() *Store {
	return o.store
}

// Submit runs one exchange to completion. Validation failures and a
// concurrent submit return an error with the transcript untouched. A gateway
// failure is not returned: it settles the reply with FailureText.
func (o *Orchestrator) Submit(ctx context.Context, text string, img *domain.Image) error {
	return o.SubmitModel(ctx, "", text, img)
}

// SubmitModel is Submit with a per-exchange model; empty means the
// configured one.
func (o *Orchestrator) SubmitModel(ctx context.Context, model, text string, img *domain.Image) error {
	if model = strings.TrimSpace(model); model == "" {
		model = o.cfg.Model
	}
	if strings.TrimSpace(text) == "" {
		return ai.ErrEmptyMessage
	}
	if err := ai.ValidateImage(img); err != nil {
		return err
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return ErrExchangeInFlight
	}
	defer o.inFlight.Store(false)

	pendingID, err := o.store.Begin(text)
	if err != nil {
		return err
	}
	if o.cfg.OnAccepted != nil {
		o.cfg.OnAccepted()
	}
	o.logger.Debug("send.message", "owner_id", o.cfg.OwnerID, "model", model, "has_image", img != nil)

	reply, err := o.send(ctx, model, text, img)
	if err != nil {
		o.logger.Warn("exchange failed", "error", err)
		return o.store.Fail(pendingID)
	}
	if reply == "" {
		reply = FallbackText
	}
	if err := o.store.Settle(pendingID, reply); err != nil {
		return err
	}

	o.cfg.Recorder.Record(ctx, Completed{
		OwnerID:   o.cfg.OwnerID,
		SessionID: o.cfg.SessionID,
		Prompt:    text,
		Response:  reply,
		Model:     model,
		Image:     img,
		First:     o.summarized.CompareAndSwap(false, true),
	})
	return nil
}

func (o *Orchestrator) send(ctx context.Context, model, text string, img *domain.Image) (string, error) {
	payload, err := ai.BuildPayload(text, img)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	return o.cfg.Gateway.Send(ctx, Exchange{Model: model, Payload: payload})
}
