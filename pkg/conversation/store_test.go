package conversation

import (
	"errors"
	"testing"

	"geminichat/pkg/domain"
)

func TestStoreBeginAppendsPair(t *testing.T) {
	s := NewStore()
	id, err := s.Begin("  hello ")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != domain.RoleUser || turns[0].Text() != "  hello " {
		t.Fatalf("unexpected user turn: %+v", turns[0])
	}
	if !turns[1].Pending() || turns[1].ID != id {
		t.Fatalf("expected pending reply with id %s, got %+v", id, turns[1])
	}
	if !s.Pending() {
		t.Fatalf("store should report pending")
	}
}

func TestStoreBeginRejectsEmptyAndInFlight(t *testing.T) {
	s := NewStore()
	if _, err := s.Begin("   "); !errors.Is(err, domain.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("empty input must not append turns")
	}
	if _, err := s.Begin("one"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := s.Begin("two"); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("expected ErrExchangeInFlight, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("rejected begin must not append, len=%d", s.Len())
	}
}

func TestStoreSettleAndFail(t *testing.T) {
	s := NewStore()
	id, _ := s.Begin("q1")
	if err := s.Settle(id, "a1"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := s.Settle(id, "again"); !errors.Is(err, ErrTurnSettled) {
		t.Fatalf("expected ErrTurnSettled, got %v", err)
	}
	if err := s.Fail("missing"); !errors.Is(err, ErrUnknownTurn) {
		t.Fatalf("expected ErrUnknownTurn, got %v", err)
	}

	id2, _ := s.Begin("q2")
	if err := s.Fail(id2); err != nil {
		t.Fatalf("fail: %v", err)
	}
	turns := s.Turns()
	if got := turns[1].Text(); got != "a1" {
		t.Fatalf("first reply changed: %q", got)
	}
	if got := turns[3].Text(); got != FailureText {
		t.Fatalf("expected failure text, got %q", got)
	}
	if s.Pending() {
		t.Fatalf("no reply should be pending")
	}
}

func TestStoreTurnsReturnsCopy(t *testing.T) {
	s := NewStore()
	id, _ := s.Begin("q")
	snapshot := s.Turns()
	_ = s.Settle(id, "a")
	if !snapshot[1].Pending() {
		t.Fatalf("snapshot should not observe later settlement")
	}
}
