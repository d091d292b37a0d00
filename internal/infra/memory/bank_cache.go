package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizbot/internal/app"
)

// BankCache caches raw bank sources with TTL to avoid repeated disk/DB hits.
// Writes go through to the underlying store and evict the cached entry.
type BankCache struct {
	store app.BankStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	data      []byte
	expiresAt time.Time
}

func NewBankCache(store app.BankStore, ttl time.Duration) *BankCache {
	return &BankCache{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedBank),
	}
}

func (c *BankCache) LoadSource(ctx context.Context, bankID string) ([]byte, error) {
	if data, ok := c.lookup(bankID); ok {
		return data, nil
	}

	result, err, _ := c.sf.Do(bankID, func() (interface{}, error) {
		if data, ok := c.lookup(bankID); ok {
			return data, nil
		}

		data, err := c.store.LoadSource(ctx, bankID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[bankID] = cachedBank{
			data:      data,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *BankCache) Save(ctx context.Context, bankID string, data []byte) error {
	defer c.evict(bankID)
	return c.store.Save(ctx, bankID, data)
}

func (c *BankCache) Delete(ctx context.Context, bankID string) error {
	defer c.evict(bankID)
	return c.store.Delete(ctx, bankID)
}

func (c *BankCache) List(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}

func (c *BankCache) lookup(bankID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[bankID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.data, true
}

func (c *BankCache) evict(bankID string) {
	c.mu.Lock()
	delete(c.cache, bankID)
	c.mu.Unlock()
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
