package store

import (
	"encoding/json"
	"time"

	"geminichat/pkg/domain"

	"gorm.io/datatypes"
)

// HistoryRecordModel is the GORM model for one completed exchange.
type HistoryRecordModel struct {
	ID        string         `gorm:"primaryKey"`
	OwnerID   string         `gorm:"not null;index:idx_history_owner_created,priority:1"`
	SessionID string         `gorm:"not null;index"`
	Prompt    string         `gorm:"type:text;not null"`
	Response  string         `gorm:"type:text;not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime;not null;index:idx_history_owner_created,priority:2"`
}

type historyMetadata struct {
	Model     string `json:"model,omitempty"`
	ImageKey  string `json:"imageKey,omitempty"`
	ImageType string `json:"imageType,omitempty"`
}

func historyToModel(rec domain.HistoryRecord) HistoryRecordModel {
	meta, _ := json.Marshal(historyMetadata{
		Model:     rec.Model,
		ImageKey:  rec.ImageKey,
		ImageType: rec.ImageType,
	})
	return HistoryRecordModel{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		SessionID: rec.SessionID,
		Prompt:    rec.Prompt,
		Response:  rec.Response,
		Metadata:  datatypes.JSON(meta),
	}
}

func historyFromModel(m HistoryRecordModel) domain.HistoryRecord {
	var meta historyMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return domain.HistoryRecord{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		SessionID: m.SessionID,
		Prompt:    m.Prompt,
		Response:  m.Response,
		Model:     meta.Model,
		ImageKey:  meta.ImageKey,
		ImageType: meta.ImageType,
		CreatedAt: m.CreatedAt,
	}
}
