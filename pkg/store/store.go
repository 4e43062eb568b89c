package store

import (
	"context"

	"geminichat/pkg/domain"
)

// HistoryStore persists completed exchanges. The exchange pipeline only
// appends; ListHistory serves the history endpoint.
type HistoryStore interface {
	AppendHistory(ctx context.Context, rec domain.HistoryRecord) (domain.HistoryRecord, error)
	ListHistory(ctx context.Context, ownerID string, limit int) ([]domain.HistoryRecord, error)
}

// SummaryIndex keeps the best-effort list of chat titles shown in the sidebar.
// It is not authoritative and may be cleared independently of HistoryStore.
type SummaryIndex interface {
	List(ctx context.Context, ownerID string) ([]domain.ChatSummary, error)
	Append(ctx context.Context, ownerID string, summary domain.ChatSummary) error
	Clear(ctx context.Context, ownerID string) error
}
