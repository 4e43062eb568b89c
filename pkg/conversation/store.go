package conversation

import (
	"sync"

	"geminichat/pkg/domain"
)

const (
	// FailureText replaces the placeholder when the gateway call fails.
	FailureText = "Failed to get response from Gemini API."
	// FallbackText replaces an empty gateway reply.
	FallbackText = "Sorry, I couldn't generate a response."
)

// Store owns the transcript of one session. Turns are only ever appended in
// (user, reply) pairs and a reply is filled in exactly once.
type Store struct {
	mu    sync.RWMutex
	turns []domain.Turn
}

func NewStore() *Store {
	return &Store{}
}

// Begin appends the user turn and its placeholder reply and returns the
// placeholder id used to settle it.
func (s *Store) Begin(text string) (string, error) {
	user, err := domain.NewUserTurn(text)
	if err != nil {
		return "", err
	}
	reply := domain.NewPendingReply()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingLocked() {
		return "", ErrExchangeInFlight
	}
	s.turns = append(s.turns, user, reply)
	return reply.ID, nil
}

// Settle fills the placeholder with the reply text.
func (s *Store) Settle(pendingID, text string) error {
	return s.resolve(pendingID, text)
}

// Fail fills the placeholder with FailureText.
func (s *Store) Fail(pendingID string) error {
	return s.resolve(pendingID, FailureText)
}

func (s *Store) resolve(pendingID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].ID != pendingID {
			continue
		}
		if !s.turns[i].Pending() {
			return ErrTurnSettled
		}
		content := text
		s.turns[i].Content = &content
		return nil
	}
	return ErrUnknownTurn
}

// Turns returns a copy of the transcript.
func (s *Store) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Pending reports whether a reply is still in flight.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingLocked()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *Store) pendingLocked() bool {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Pending() {
			return true
		}
	}
	return false
}
