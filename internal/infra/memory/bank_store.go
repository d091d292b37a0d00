package memory

import (
	"context"
	"fmt"
	"sync"

	"quizbot/internal/domain"
)

// BankStore is a map-backed bank store (useful for tests/demos).
type BankStore struct {
	mu    sync.RWMutex
	banks map[string][]byte
}

func NewBankStore(banks map[string]string) *BankStore {
	s := &BankStore{banks: make(map[string][]byte, len(banks))}
	for id, data := range banks {
		s.banks[id] = []byte(data)
	}
	return s
}

func (s *BankStore) LoadSource(_ context.Context, bankID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.banks[bankID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", bankID, domain.ErrBankNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *BankStore) Save(_ context.Context, bankID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks[bankID] = append([]byte(nil), data...)
	return nil
}

func (s *BankStore) Delete(_ context.Context, bankID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.banks[bankID]; !ok {
		return fmt.Errorf("%s: %w", bankID, domain.ErrBankNotFound)
	}
	delete(s.banks, bankID)
	return nil
}

func (s *BankStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.banks))
	for id := range s.banks {
		ids = append(ids, id)
	}
	return ids, nil
}
