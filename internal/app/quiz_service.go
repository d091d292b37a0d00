package app

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/google/uuid"

	"quizbot/internal/bank"
	"quizbot/internal/domain"
)

// DefaultRetryOffset is how many questions are asked between a miss and its retry.
const DefaultRetryOffset = 3

// SessionRepository abstracts how live quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	// Put stores the session, replacing and returning any previous one for the participant.
	Put(participantID string, session *Session) *Session
	Get(participantID string) (*Session, bool)
	// Delete removes the participant's entry only while it still holds session.
	Delete(participantID string, session *Session)
}

// CorrelationRepository maps delivery tokens to the question they were issued for.
type CorrelationRepository interface {
	Register(ctx context.Context, token string, c domain.Correlation) error
	// Consume returns the correlation at most once.
	Consume(ctx context.Context, token string) (domain.Correlation, bool, error)
	// Discard drops every live correlation of a session.
	Discard(ctx context.Context, sessionID string) error
}

// BankSource resolves a bank id to raw delimited text, or domain.ErrBankNotFound.
type BankSource interface {
	LoadSource(ctx context.Context, bankID string) ([]byte, error)
}

// Delivery presents questions to participants and sends them plain notices.
// Failures are returned as errors and never end the caller.
type Delivery interface {
	PresentQuestion(ctx context.Context, participantID, prompt string, options []string, correctIndex int) (string, error)
	Notify(ctx context.Context, participantID, text string) error
}

// Engine runs per-participant quizzes: dispatch, answer resolution and retries.
type Engine struct {
	sessions    SessionRepository
	pending     CorrelationRepository
	banks       BankSource
	delivery    Delivery
	shuffler    *bank.Shuffler
	retryOffset int
	now         func() time.Time
	newID       func() string
}

// Option customizes an Engine.
type Option func(*Engine)

func WithRetryOffset(offset int) Option {
	return func(e *Engine) {
		if offset >= 0 {
			e.retryOffset = offset
		}
	}
}

func WithShuffler(s *bank.Shuffler) Option {
	return func(e *Engine) { e.shuffler = s }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(sessions SessionRepository, pending CorrelationRepository, banks BankSource, delivery Delivery, opts ...Option) *Engine {
	e := &Engine{
		sessions:    sessions,
		pending:     pending,
		banks:       banks,
		delivery:    delivery,
		shuffler:    bank.NewRandomShuffler(),
		retryOffset: DefaultRetryOffset,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads a bank, replaces any running quiz of the participant and sends
// the first question. It returns the number of questions loaded.
func (e *Engine) Start(ctx context.Context, participantID, bankName string) (int, error) {
	bankID, err := bank.NormalizeID(bankName)
	if err != nil {
		return 0, err
	}
	questions, err := e.loadBank(ctx, bankID)
	if err != nil {
		return 0, err
	}

	session := NewSession(e.newID(), participantID, bankID, e.shuffler.Prepare(questions), e.now())
	session.mu.Lock()
	defer session.mu.Unlock()

	if previous := e.sessions.Put(participantID, session); previous != nil {
		previous.mu.Lock()
		previous.finished = true
		previous.mu.Unlock()
		if err := e.pending.Discard(ctx, previous.id); err != nil {
			log.Printf("discard correlations of session %s: %v", previous.id, err)
		}
	}

	e.notify(ctx, participantID, fmt.Sprintf("Starting %s! %d questions.", bankID, len(questions)))
	return len(questions), e.emitNextLocked(ctx, session)
}

// Resolve applies an answer event. Unknown tokens, answers for sessions that
// are gone or superseded, and duplicates are ignored.
func (e *Engine) Resolve(ctx context.Context, token string, chosen int) error {
	c, ok, err := e.pending.Consume(ctx, token)
	if err != nil {
		return fmt.Errorf("consume correlation: %w", err)
	}
	if !ok {
		return nil
	}

	session, ok := e.sessions.Get(c.ParticipantID)
	if !ok || session.id != c.SessionID {
		return nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.finished || session.cursor != c.Position {
		return nil
	}

	if chosen == c.CorrectIndex {
		session.score++
	} else {
		missed := session.queue[session.cursor]
		session.scheduleRetryLocked(e.shuffler.Retry(missed), e.retryOffset)
		e.notify(ctx, c.ParticipantID, fmt.Sprintf("Wrong! The answer was: %s. It will come back later.", missed.CorrectText))
	}
	session.cursor++
	return e.emitNextLocked(ctx, session)
}

// Cancel ends the participant's quiz. It reports whether a quiz was running.
func (e *Engine) Cancel(ctx context.Context, participantID string) (bool, error) {
	session, ok := e.sessions.Get(participantID)
	if !ok {
		return false, nil
	}
	session.mu.Lock()
	session.finished = true
	session.mu.Unlock()

	e.sessions.Delete(participantID, session)
	if err := e.pending.Discard(ctx, session.id); err != nil {
		return true, fmt.Errorf("discard correlations: %w", err)
	}
	return true, nil
}

// Progress returns the state of the participant's running quiz.
func (e *Engine) Progress(participantID string) (domain.Progress, bool) {
	session, ok := e.sessions.Get(participantID)
	if !ok {
		return domain.Progress{}, false
	}
	return session.progress(), true
}

func (e *Engine) loadBank(ctx context.Context, bankID string) ([]domain.Question, error) {
	data, err := e.banks.LoadSource(ctx, bankID)
	if err != nil {
		return nil, err
	}
	questions := bank.ParseBytes(data)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%s: %w", bankID, domain.ErrEmptyBank)
	}
	return questions, nil
}

// emitNextLocked presents the question at the cursor, skipping questions the
// delivery rejects, and finishes the quiz once the queue is exhausted.
func (e *Engine) emitNextLocked(ctx context.Context, s *Session) error {
	for s.cursor < len(s.queue) {
		q := s.queue[s.cursor]
		prompt := fmt.Sprintf("[%d/%d] %s", s.cursor+1, len(s.queue), q.Prompt)

		token, err := e.delivery.PresentQuestion(ctx, s.participantID, prompt, q.Options, q.CorrectIndex)
		if err != nil {
			log.Printf("skipping question %d/%d of %s for %s: %v", s.cursor+1, len(s.queue), s.bankID, s.participantID, err)
			s.cursor++
			continue
		}

		err = e.pending.Register(ctx, token, domain.Correlation{
			ParticipantID: s.participantID,
			SessionID:     s.id,
			Position:      s.cursor,
			CorrectIndex:  q.CorrectIndex,
		})
		if err != nil {
			// the answer could never be matched, so treat it like a failed delivery
			log.Printf("skipping question %d/%d of %s for %s: register correlation: %v", s.cursor+1, len(s.queue), s.bankID, s.participantID, err)
			s.cursor++
			continue
		}
		return nil
	}
	return e.finishLocked(ctx, s)
}

func (e *Engine) finishLocked(ctx context.Context, s *Session) error {
	s.finished = true
	result := s.resultLocked()
	e.notify(ctx, s.participantID, fmt.Sprintf("Finished! Score: %d/%d", result.Score, result.Total))
	log.Printf("quiz %s finished for %s: %d/%d", result.BankID, s.participantID, result.Score, result.Total)

	e.sessions.Delete(s.participantID, s)
	if err := e.pending.Discard(ctx, s.id); err != nil {
		return fmt.Errorf("discard correlations: %w", err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, participantID, text string) {
	if err := e.delivery.Notify(ctx, participantID, text); err != nil {
		log.Printf("notify %s: %v", participantID, err)
	}
}

func (s *Session) scheduleRetryLocked(retry domain.Question, offset int) int {
	at := min(len(s.queue), s.cursor+1+offset)
	s.queue = slices.Insert(s.queue, at, retry)
	return at
}
