package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/domain"
)

// DeckCache keeps parsed decks per source path with a TTL so repeated vault
// scans do not re-read unchanged files.
type DeckCache struct {
	loader app.DeckLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDeck
}

type cachedDeck struct {
	deck      domain.Deck
	expiresAt time.Time
}

func NewDeckCache(loader app.DeckLoader, ttl time.Duration) *DeckCache {
	return &DeckCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDeck),
	}
}

func (c *DeckCache) LoadDeck(ctx context.Context, path string) (domain.Deck, error) {
	if deck, ok := c.lookup(path); ok {
		return deck, nil
	}

	result, err, _ := c.sf.Do(path, func() (interface{}, error) {
		if deck, ok := c.lookup(path); ok {
			return deck, nil
		}
		deck, err := c.loader.LoadDeck(ctx, path)
		if err != nil {
			return domain.Deck(nil), err
		}

		c.mu.Lock()
		c.cache[path] = cachedDeck{
			deck:      deck,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return deck, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Deck), nil
}

// Invalidate drops the cached deck of path, e.g. after the file changed.
func (c *DeckCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.cache, path)
	c.mu.Unlock()
}

func (c *DeckCache) lookup(path string) (domain.Deck, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[path]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.deck, true
}

func (c *DeckCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations of a freshly scanned vault
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticSource serves card documents from a map (useful for tests/demos).
type StaticSource struct {
	files map[string]string
}

func NewStaticSource(files map[string]string) *StaticSource {
	return &StaticSource{files: files}
}

func (s *StaticSource) ReadText(_ context.Context, path string) (string, error) {
	if text, ok := s.files[path]; ok {
		return text, nil
	}
	return "", domain.ErrSourceNotFound
}

// ListCardSources returns every document sorted by path.
func (s *StaticSource) ListCardSources(_ context.Context, _ app.Scope) ([]app.Source, error) {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]app.Source, 0, len(paths))
	for _, p := range paths {
		out = append(out, app.Source{Path: p, DisplayName: p})
	}
	return out, nil
}
