package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"geminichat/pkg/domain"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSummaryIndexAppendListClear(t *testing.T) {
	redis := miniredis.RunT(t)
	idx, err := NewRedisSummaryIndex(redis.Addr(), "", "test:summaries", 0)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	exerciseSummaryIndex(t, idx)

	if !redis.Exists("test:summaries:owner-2") {
		t.Fatalf("expected owner-2 list to survive clearing owner-1")
	}
}

func TestRedisSummaryIndexAppliesTTL(t *testing.T) {
	redis := miniredis.RunT(t)
	idx, err := NewRedisSummaryIndex(redis.Addr(), "", "test:summaries", time.Hour)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := idx.Append(context.Background(), "owner-1", domain.ChatSummary{Title: "hello"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ttl := redis.TTL("test:summaries:owner-1"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}
}

func TestRedisSummaryIndexRequiresAddr(t *testing.T) {
	if idx, err := NewRedisSummaryIndex(" ", "", "", 0); err == nil || idx != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestRedisSummaryIndexFailsWhenRedisDown(t *testing.T) {
	redis := miniredis.RunT(t)
	idx, err := NewRedisSummaryIndex(redis.Addr(), "", "", 0)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	redis.Close()
	if err := idx.Append(context.Background(), "owner-1", domain.ChatSummary{Title: "x"}); err == nil {
		t.Fatalf("expected append to fail with redis down")
	}
}

func TestMemorySummaryIndexAppendListClear(t *testing.T) {
	exerciseSummaryIndex(t, NewMemorySummaryIndex())
}

func TestMemorySummaryIndexConcurrentAppends(t *testing.T) {
	idx := NewMemorySummaryIndex()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = idx.Append(context.Background(), "owner", domain.ChatSummary{Title: "t"})
		}()
	}
	wg.Wait()
	items, _ := idx.List(context.Background(), "owner")
	if len(items) != 50 {
		t.Fatalf("expected 50 titles, got %d", len(items))
	}
}

func exerciseSummaryIndex(t *testing.T, idx SummaryIndex) {
	t.Helper()
	ctx := context.Background()

	items, err := idx.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty index, got %+v", items)
	}
	for _, title := range []string{"first chat", "second chat"} {
		if err := idx.Append(ctx, "owner-1", domain.ChatSummary{Title: title}); err != nil {
			t.Fatalf("append %q: %v", title, err)
		}
	}
	if err := idx.Append(ctx, "owner-2", domain.ChatSummary{Title: "other"}); err != nil {
		t.Fatalf("append owner-2: %v", err)
	}
	items, err = idx.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Title != "first chat" || items[1].Title != "second chat" {
		t.Fatalf("unexpected titles: %+v", items)
	}
	if err := idx.Clear(ctx, "owner-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, _ = idx.List(ctx, "owner-1")
	if len(items) != 0 {
		t.Fatalf("expected cleared index, got %+v", items)
	}
	items, _ = idx.List(ctx, "owner-2")
	if len(items) != 1 {
		t.Fatalf("clearing owner-1 should not touch owner-2, got %+v", items)
	}
}

func TestBoltSummaryIndexAppendListClear(t *testing.T) {
	idx, err := NewBoltSummaryIndex(filepath.Join(t.TempDir(), "index", "summaries.db"))
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	defer idx.Close()
	exerciseSummaryIndex(t, idx)
}

func TestBoltSummaryIndexPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.db")
	idx, err := NewBoltSummaryIndex(path)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := idx.Append(context.Background(), "owner-1", domain.ChatSummary{Title: "kept"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewBoltSummaryIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	items, err := reopened.List(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Title != "kept" {
		t.Fatalf("unexpected titles after reopen: %+v", items)
	}
}

func TestBoltSummaryIndexRequiresPath(t *testing.T) {
	if _, err := NewBoltSummaryIndex(" "); err == nil {
		t.Fatalf("expected empty path to fail")
	}
}
