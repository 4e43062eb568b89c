package conversation

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"geminichat/pkg/domain"
	"geminichat/pkg/storage"
	"geminichat/pkg/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultRecordTimeout = 15 * time.Second

// Completed is one settled exchange handed to the recorder.
type Completed struct {
	OwnerID   string
	SessionID string
	Prompt    string
	Response  string
	Model     string
	Image     *domain.Image
	// First marks the first successful exchange of the session.
	First bool
}

type RecorderConfig struct {
	History   store.HistoryStore
	Summaries store.SummaryIndex
	// Images archives attachments when set.
	Images  storage.ObjectStore
	Timeout time.Duration
	Logger  *slog.Logger
}

// Recorder persists completed exchanges in the background. Failures are
// logged and dropped; nothing is retried or reported to the caller.
type Recorder struct {
	cfg    RecorderConfig
	logger *slog.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRecordTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{cfg: cfg, logger: logger}
}

// Record starts persisting c and returns immediately. A nil recorder is a
// no-op; a closed one drops c with a warning.
func (r *Recorder) Record(ctx context.Context, c Completed) {
	if r == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("recorder closed, exchange not recorded", "owner_id", c.OwnerID, "session_id", c.SessionID)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	go func() {
		defer r.wg.Done()
		r.record(ctx, c)
	}()
}

// Wait blocks until every started record has finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// Close rejects further records and waits for the started ones.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) record(ctx context.Context, c Completed) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	logger := r.logger.With("owner_id", c.OwnerID, "session_id", c.SessionID)
	// The durable write and the summary append do not depend on each other.
	var g errgroup.Group
	if r.cfg.History != nil {
		g.Go(func() error {
			if err := r.writeHistory(ctx, logger, c); err != nil {
				logger.Error("history write failed", "error", err)
			}
			return nil
		})
	}
	if c.First && r.cfg.Summaries != nil {
		g.Go(func() error {
			summary := domain.ChatSummary{Title: domain.SummaryTitle(c.Prompt)}
			if err := r.cfg.Summaries.Append(ctx, c.OwnerID, summary); err != nil {
				logger.Error("summary append failed", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Recorder) writeHistory(ctx context.Context, logger *slog.Logger, c Completed) error {
	rec := domain.HistoryRecord{
		ID:        uuid.NewString(),
		OwnerID:   c.OwnerID,
		SessionID: c.SessionID,
		Prompt:    c.Prompt,
		Response:  c.Response,
		Model:     c.Model,
	}
	if c.Image != nil && r.cfg.Images != nil {
		contentType := c.Image.ContentType()
		key := storage.ImageKey(c.OwnerID, c.SessionID, rec.ID, contentType)
		err := r.cfg.Images.Put(ctx, key, bytes.NewReader(c.Image.Data), int64(len(c.Image.Data)), contentType)
		if err != nil {
			logger.Warn("image archive failed", "key", key, "error", err)
		} else {
			rec.ImageKey = key
			rec.ImageType = contentType
		}
	}
	_, err := r.cfg.History.AppendHistory(ctx, rec)
	return err
}
