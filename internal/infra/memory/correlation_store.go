package memory

import (
	"context"
	"sync"

	"quizbot/internal/domain"
)

// CorrelationStore keeps pending delivery tokens in memory, indexed by session
// so a cancelled quiz can drop its tokens at once.
type CorrelationStore struct {
	mu        sync.Mutex
	byToken   map[string]domain.Correlation
	bySession map[string]map[string]struct{}
}

func NewCorrelationStore() *CorrelationStore {
	return &CorrelationStore{
		byToken:   make(map[string]domain.Correlation),
		bySession: make(map[string]map[string]struct{}),
	}
}

func (s *CorrelationStore) Register(_ context.Context, token string, c domain.Correlation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[token] = c
	tokens, ok := s.bySession[c.SessionID]
	if !ok {
		tokens = make(map[string]struct{})
		s.bySession[c.SessionID] = tokens
	}
	tokens[token] = struct{}{}
	return nil
}

func (s *CorrelationStore) Consume(_ context.Context, token string) (domain.Correlation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byToken[token]
	if !ok {
		return domain.Correlation{}, false, nil
	}
	delete(s.byToken, token)
	if tokens, ok := s.bySession[c.SessionID]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.bySession, c.SessionID)
		}
	}
	return c, true, nil
}

func (s *CorrelationStore) Discard(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.bySession[sessionID] {
		delete(s.byToken, token)
	}
	delete(s.bySession, sessionID)
	return nil
}

// Len reports the number of live tokens.
func (s *CorrelationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}
