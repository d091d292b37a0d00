package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizbot/internal/domain"
)

// CorrelationStore keeps pending delivery tokens in Redis.
// Tokens are stored as:   SET  quizbot:pending:{token} <json correlation>
// Session index:          SADD quizbot:pending:session:{sessionID} {token}
// Keys carry no expiry: an answer may arrive at any time while its session
// runs, and Discard removes them when the session ends.
type CorrelationStore struct {
	client *redis.Client
}

func NewCorrelationStore(client *redis.Client) *CorrelationStore {
	return &CorrelationStore{client: client}
}

func (s *CorrelationStore) Register(ctx context.Context, token string, c domain.Correlation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal correlation: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(token), data, 0)
	pipe.SAdd(ctx, s.sessionKey(c.SessionID), token)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *CorrelationStore) Consume(ctx context.Context, token string) (domain.Correlation, bool, error) {
	raw, err := s.client.GetDel(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Correlation{}, false, nil
	}
	if err != nil {
		return domain.Correlation{}, false, err
	}

	var c domain.Correlation
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Correlation{}, false, fmt.Errorf("unmarshal correlation: %w", err)
	}
	_ = s.client.SRem(ctx, s.sessionKey(c.SessionID), token).Err()
	return c, true, nil
}

func (s *CorrelationStore) Discard(ctx context.Context, sessionID string) error {
	tokens, err := s.client.SMembers(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, s.tokenKey(token))
	}
	keys = append(keys, s.sessionKey(sessionID))
	return s.client.Del(ctx, keys...).Err()
}

func (s *CorrelationStore) tokenKey(token string) string {
	return "quizbot:pending:" + token
}

func (s *CorrelationStore) sessionKey(sessionID string) string {
	return "quizbot:pending:session:" + sessionID
}
