package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"geminichat/pkg/ai"
	"geminichat/pkg/conversation"
	"geminichat/pkg/domain"
	"geminichat/pkg/store"
)

type stubGateway struct {
	reply string
	err   error
}

func (g stubGateway) Send(context.Context, conversation.Exchange) (string, error) {
	return g.reply, g.err
}

func newTestApp(t *testing.T, gw conversation.Gateway) (*App, *store.MemoryStore, *store.MemorySummaryIndex) {
	t.Helper()
	history := store.NewMemoryStore()
	summaries := store.NewMemorySummaryIndex()
	a, err := New(Config{Gateway: gw, History: history, Summaries: summaries, Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)
	return a, history, summaries
}

func TestSessionLifecycle(t *testing.T) {
	a, _, summaries := newTestApp(t, stubGateway{reply: "4"})
	ctx := context.Background()

	sess, err := a.NewSession("owner-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if len(sess.Turns) != 0 || sess.Pending {
		t.Fatalf("new session should be empty: %+v", sess)
	}

	got, err := a.Submit(ctx, "owner-1", sess.ID, Message{Text: "What is 2+2?"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(got.Turns) != 2 || got.Turns[1].Text() != "4" || got.Pending {
		t.Fatalf("unexpected transcript: %+v", got)
	}

	a.Close()
	items, _ := a.Summaries(ctx, "owner-1")
	if len(items) != 1 || items[0].Title != "What is 2+2?" {
		t.Fatalf("unexpected summaries: %+v", items)
	}
	if err := a.ClearSummaries(ctx, "owner-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if items, _ := summaries.List(ctx, "owner-1"); len(items) != 0 {
		t.Fatalf("summaries should be cleared: %+v", items)
	}
	recs, err := a.History(ctx, "owner-1", 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("history should survive clearing summaries: %+v %v", recs, err)
	}
}

func TestSessionsAreOwnerScoped(t *testing.T) {
	a, _, _ := newTestApp(t, stubGateway{reply: "ok"})
	sess, _ := a.NewSession("owner-1")

	if _, err := a.Transcript("owner-2", sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for other owner, got %v", err)
	}
	if _, err := a.Submit(context.Background(), "owner-2", sess.ID, Message{Text: "hi"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on submit, got %v", err)
	}
	if _, err := a.Transcript("owner-1", "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for unknown id, got %v", err)
	}
	if _, err := a.NewSession(" "); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("expected ErrOwnerRequired, got %v", err)
	}
}

func TestSubmitValidationLeavesTranscript(t *testing.T) {
	a, _, _ := newTestApp(t, stubGateway{reply: "ok"})
	sess, _ := a.NewSession("owner-1")

	if _, err := a.Submit(context.Background(), "owner-1", sess.ID, Message{Text: "  "}); !errors.Is(err, ai.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	got, _ := a.Transcript("owner-1", sess.ID)
	if len(got.Turns) != 0 {
		t.Fatalf("validation failure must not append: %+v", got.Turns)
	}
}

func TestSubmitGatewayFailureKeepsSessionUsable(t *testing.T) {
	gw := &switchGateway{err: errors.New("boom")}
	a, _, _ := newTestApp(t, gw)
	ctx := context.Background()
	sess, _ := a.NewSession("owner-1")

	got, err := a.Submit(ctx, "owner-1", sess.ID, Message{Text: "first"})
	if err != nil {
		t.Fatalf("gateway failure should not be returned: %v", err)
	}
	if got.Turns[1].Text() != conversation.FailureText {
		t.Fatalf("expected failure text, got %q", got.Turns[1].Text())
	}
	gw.err = nil
	gw.reply = "recovered"
	got, err = a.Submit(ctx, "owner-1", sess.ID, Message{Text: "second"})
	if err != nil || len(got.Turns) != 4 || got.Turns[3].Text() != "recovered" {
		t.Fatalf("session should stay usable: %+v %v", got, err)
	}
}

type switchGateway struct {
	reply string
	err   error
}

func (g *switchGateway) Send(context.Context, conversation.Exchange) (string, error) {
	return g.reply, g.err
}

func TestEvictIdle(t *testing.T) {
	a, _, _ := newTestApp(t, stubGateway{reply: "ok"})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	a.cfg.SessionTTL = time.Hour

	old, _ := a.NewSession("owner-1")
	now = now.Add(50 * time.Minute)
	fresh, _ := a.NewSession("owner-1")
	now = now.Add(20 * time.Minute)

	if n := a.EvictIdle(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, err := a.Transcript("owner-1", old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("old session should be gone, got %v", err)
	}
	if _, err := a.Transcript("owner-1", fresh.ID); err != nil {
		t.Fatalf("fresh session should remain: %v", err)
	}
}

func TestHistoryLimitIsClamped(t *testing.T) {
	a, history, _ := newTestApp(t, stubGateway{reply: "ok"})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = history.AppendHistory(ctx, historyRecord("owner-1"))
	}
	recs, err := a.History(ctx, "owner-1", 2)
	if err != nil || len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d %v", len(recs), err)
	}
}

func historyRecord(owner string) domain.HistoryRecord {
	return domain.HistoryRecord{OwnerID: owner, Prompt: "p", Response: "r"}
}
