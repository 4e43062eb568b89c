package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"geminichat/pkg/domain"

	"github.com/redis/go-redis/v9"
)

const defaultSummaryPrefix = "geminichat:summaries"

// RedisSummaryIndex keeps one Redis list of chat titles per owner.
type RedisSummaryIndex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSummaryIndex builds a Redis-backed summary index. A zero ttl keeps
// lists until they are cleared.
func NewRedisSummaryIndex(addr, password, prefix string, ttl time.Duration) (*RedisSummaryIndex, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("summary index redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultSummaryPrefix
	}
	return &RedisSummaryIndex{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (s *RedisSummaryIndex) key(ownerID string) string {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		ownerID = "anonymous"
	}
	return s.prefix + ":" + ownerID
}

// List returns titles in insertion order.
func (s *RedisSummaryIndex) List(ctx context.Context, ownerID string) ([]domain.ChatSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	titles, err := s.client.LRange(ctx, s.key(ownerID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return toSummaries(titles), nil
}

// Append adds a title to the end of the owner's list.
func (s *RedisSummaryIndex) Append(ctx context.Context, ownerID string, summary domain.ChatSummary) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	key := s.key(ownerID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, summary.Title)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Clear drops the owner's list. Durable history is untouched.
func (s *RedisSummaryIndex) Clear(ctx context.Context, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key(ownerID)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisSummaryIndex) Close() error {
	return s.client.Close()
}
