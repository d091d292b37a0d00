package redis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizbot/internal/app"
)

// BankCache caches raw bank sources in Redis and falls back to the store on a miss.
// Sources are stored as: SET quizbot:bank:{bankID} <csv bytes> EX <ttl>
type BankCache struct {
	client *redis.Client
	store  app.BankStore
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankCache(client *redis.Client, store app.BankStore, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *BankCache) LoadSource(ctx context.Context, bankID string) ([]byte, error) {
	if data, ok := c.lookup(ctx, bankID); ok {
		return data, nil
	}

	result, err, _ := c.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if data, ok := c.lookup(ctx, bankID); ok {
			return data, nil
		}

		data, err := c.store.LoadSource(ctx, bankID)
		if err != nil {
			return nil, err
		}
		_ = c.client.Set(ctx, c.key(bankID), data, c.ttlWithJitter()).Err()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *BankCache) Save(ctx context.Context, bankID string, data []byte) error {
	if err := c.store.Save(ctx, bankID, data); err != nil {
		return err
	}
	return c.client.Del(ctx, c.key(bankID)).Err()
}

func (c *BankCache) Delete(ctx context.Context, bankID string) error {
	if err := c.store.Delete(ctx, bankID); err != nil {
		return err
	}
	return c.client.Del(ctx, c.key(bankID)).Err()
}

func (c *BankCache) List(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}

func (c *BankCache) lookup(ctx context.Context, bankID string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(bankID)).Bytes()
	if err != nil {
		// redis.Nil is a miss; an unreachable cache is treated the same way
		return nil, false
	}
	return data, true
}

func (c *BankCache) key(bankID string) string {
	return "quizbot:bank:" + bankID
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
