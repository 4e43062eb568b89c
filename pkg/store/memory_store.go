package store

import (
	"context"
	"sync"
	"time"

	"geminichat/pkg/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps history in-process. Used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []domain.HistoryRecord
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendHistory records an exchange and stamps its creation time.
func (m *MemoryStore) AppendHistory(_ context.Context, rec domain.HistoryRecord) (domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	m.records = append(m.records, rec)
	return rec, nil
}

// ListHistory returns the newest records of an owner first.
func (m *MemoryStore) ListHistory(_ context.Context, ownerID string, limit int) ([]domain.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	res := make([]domain.HistoryRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(res) < limit; i-- {
		if m.records[i].OwnerID == ownerID {
			res = append(res, m.records[i])
		}
	}
	return res, nil
}

// MemorySummaryIndex is the in-process SummaryIndex. Appends are serialized
// so the read-modify-write of one owner's list has a single writer.
type MemorySummaryIndex struct {
	mu     sync.Mutex
	titles map[string][]string
}

// NewMemorySummaryIndex returns an empty index.
func NewMemorySummaryIndex() *MemorySummaryIndex {
	return &MemorySummaryIndex{titles: make(map[string][]string)}
}

func (m *MemorySummaryIndex) List(_ context.Context, ownerID string) ([]domain.ChatSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return toSummaries(m.titles[ownerID]), nil
}

func (m *MemorySummaryIndex) Append(_ context.Context, ownerID string, summary domain.ChatSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.titles[ownerID]
	updated := make([]string, 0, len(existing)+1)
	updated = append(updated, existing...)
	m.titles[ownerID] = append(updated, summary.Title)
	return nil
}

func (m *MemorySummaryIndex) Clear(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.titles, ownerID)
	return nil
}

func toSummaries(titles []string) []domain.ChatSummary {
	out := make([]domain.ChatSummary, 0, len(titles))
	for _, title := range titles {
		out = append(out, domain.ChatSummary{Title: title})
	}
	return out
}
