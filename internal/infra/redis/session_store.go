package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizbot/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves live in a local map; they are not persisted across restarts.
//   - Redis holds a marker per participant (quizbot:session:{participant} = session id)
//     that is refreshed on every access and expires after ttl without activity.
//     Nothing in this process reads it back; it is there for `redis-cli` inspection.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(participantID string, session *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.sessions[participantID]
	s.sessions[participantID] = session
	// best-effort marker
	_ = s.client.Set(context.Background(), s.key(participantID), session.ID(), s.ttl).Err()
	return previous
}

func (s *SessionStore) Get(participantID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[participantID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(participantID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(participantID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[participantID]; !ok || current != session {
		return
	}
	delete(s.sessions, participantID)
	_ = s.client.Del(context.Background(), s.key(participantID)).Err()
}

func (s *SessionStore) key(participantID string) string {
	return "quizbot:session:" + participantID
}
