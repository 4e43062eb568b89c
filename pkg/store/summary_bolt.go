package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geminichat/pkg/domain"

	bolt "go.etcd.io/bbolt"
)

var summaryBucket = []byte("chat_summaries")

// BoltSummaryIndex keeps the summary index in a local bbolt file, one key per
// owner holding a JSON array of titles.
type BoltSummaryIndex struct {
	db *bolt.DB
}

// NewBoltSummaryIndex opens or creates the index file at path.
func NewBoltSummaryIndex(path string) (*BoltSummaryIndex, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("summary index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(summaryBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltSummaryIndex{db: db}, nil
}

func (s *BoltSummaryIndex) List(_ context.Context, ownerID string) ([]domain.ChatSummary, error) {
	var titles []string
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		titles, err = readTitles(tx.Bucket(summaryBucket), ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toSummaries(titles), nil
}

// Append reads the owner's list, appends the title and writes it back in one
// write transaction; bbolt allows a single writer at a time.
func (s *BoltSummaryIndex) Append(_ context.Context, ownerID string, summary domain.ChatSummary) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(summaryBucket)
		titles, err := readTitles(b, ownerID)
		if err != nil {
			return err
		}
		enc, err := json.Marshal(append(titles, summary.Title))
		if err != nil {
			return err
		}
		return b.Put([]byte(ownerKey(ownerID)), enc)
	})
}

func (s *BoltSummaryIndex) Clear(_ context.Context, ownerID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(summaryBucket).Delete([]byte(ownerKey(ownerID)))
	})
}

// Close releases the file lock.
func (s *BoltSummaryIndex) Close() error {
	return s.db.Close()
}

func readTitles(b *bolt.Bucket, ownerID string) ([]string, error) {
	raw := b.Get([]byte(ownerKey(ownerID)))
	if len(raw) == 0 {
		return nil, nil
	}
	var titles []string
	if err := json.Unmarshal(raw, &titles); err != nil {
		return nil, err
	}
	return titles, nil
}

func ownerKey(ownerID string) string {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "anonymous"
	}
	return ownerID
}
