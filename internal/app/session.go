package app

import (
	"slices"
	"sync"
	"time"

	"quizbot/internal/domain"
)

// Session is one participant's quiz in progress.
type Session struct {
	id            string
	participantID string
	bankID        string
	startedAt     time.Time

	mu       sync.Mutex
	queue    []domain.Question
	cursor   int
	score    int
	finished bool
}

// NewSession is exported for infrastructure layers and tests that need to seed sessions.
func NewSession(id, participantID, bankID string, questions []domain.Question, startedAt time.Time) *Session {
	return &Session{
		id:            id,
		participantID: participantID,
		bankID:        bankID,
		startedAt:     startedAt,
		queue:         questions,
	}
}

func (s *Session) ID() string { return s.id }

// Snapshot is a copy of a session's mutable state.
type Snapshot struct {
	Queue    []domain.Question
	Cursor   int
	Score    int
	Finished bool
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Queue:    slices.Clone(s.queue),
		Cursor:   s.cursor,
		Score:    s.score,
		Finished: s.finished,
	}
}

func (s *Session) progress() domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Progress{
		BankID:    s.bankID,
		Cursor:    s.cursor,
		Score:     s.score,
		Total:     len(s.queue),
		StartedAt: s.startedAt,
	}
}

func (s *Session) resultLocked() domain.Result {
	return domain.Result{BankID: s.bankID, Score: s.score, Total: len(s.queue)}
}
