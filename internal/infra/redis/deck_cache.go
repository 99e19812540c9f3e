package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/domain"
)

// DeckCache caches parsed decks in Redis and falls back to a loader on a miss.
// Decks are stored as: SET review:deck:{path} <deck json> EX ttl
type DeckCache struct {
	client *redis.Client
	loader app.DeckLoader
	ttl    time.Duration
	sf     singleflight.Group
	logger *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewDeckCache(client *redis.Client, loader app.DeckLoader, ttl time.Duration) *DeckCache {
	return &DeckCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: slog.Default(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *DeckCache) LoadDeck(ctx context.Context, path string) (domain.Deck, error) {
	if deck, ok := c.cached(ctx, path); ok {
		return deck, nil
	}

	result, err, _ := c.sf.Do(path, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if deck, ok := c.cached(ctx, path); ok {
			return deck, nil
		}
		deck, err := c.loader.LoadDeck(ctx, path)
		if err != nil {
			return domain.Deck(nil), err
		}
		raw, err := json.Marshal(deck)
		if err != nil {
			return deck, nil
		}
		// best-effort: a failed write only costs a reload next time
		if err := c.client.Set(ctx, deckKey(path), raw, c.ttlWithJitter()).Err(); err != nil {
			c.logger.Warn("deck cache write failed", "path", path, "error", err)
		}
		return deck, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Deck), nil
}

// Invalidate drops the cached deck of path.
func (c *DeckCache) Invalidate(ctx context.Context, path string) error {
	return c.client.Del(ctx, deckKey(path)).Err()
}

func (c *DeckCache) cached(ctx context.Context, path string) (domain.Deck, bool) {
	raw, err := c.client.Get(ctx, deckKey(path)).Bytes()
	if err != nil {
		return nil, false
	}
	var deck domain.Deck
	if err := json.Unmarshal(raw, &deck); err != nil {
		return nil, false
	}
	return deck, true
}

func deckKey(path string) string {
	return "review:deck:" + path
}

func (c *DeckCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
