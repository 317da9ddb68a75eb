package aiservice

import (
	"context"
	"sync"
	"time"

	"waifuhospital/internal/model"
)

// Clock abstracts time for the cache so expiry can be tested without
// sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// CharacterFetcher loads one character from the primary backend.
type CharacterFetcher interface {
	FetchCharacter(ctx context.Context, characterID string) (*model.Character, error)
}

type cacheEntry struct {
	character *model.Character
	fetchedAt time.Time
}

// CharacterCache is a read-through cache over the backend's character
// records. Entries expire after the TTL; a stale read within the TTL window
// is acceptable for chat personas.
type CharacterCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	fetcher CharacterFetcher
	clock   Clock
	ttl     time.Duration
}

func NewCharacterCache(fetcher CharacterFetcher, clock Clock, ttl time.Duration) *CharacterCache {
	return &CharacterCache{
		entries: make(map[string]cacheEntry),
		fetcher: fetcher,
		clock:   clock,
		ttl:     ttl,
	}
}

// Get returns the cached character, fetching from the backend when the entry
// is absent or expired. A fetch failure with a live stale entry falls back to
// the stale copy rather than failing the chat.
func (c *CharacterCache) Get(ctx context.Context, characterID string) (*model.Character, error) {
	c.mu.Lock()
	entry, ok := c.entries[characterID]
	c.mu.Unlock()

	now := c.clock.Now()
	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.character, nil
	}

	character, err := c.fetcher.FetchCharacter(ctx, characterID)
	if err != nil {
		if ok {
			return entry.character, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[characterID] = cacheEntry{character: character, fetchedAt: now}
	c.mu.Unlock()

	return character, nil
}

// Invalidate drops one entry, forcing the next Get to refetch.
func (c *CharacterCache) Invalidate(characterID string) {
	c.mu.Lock()
	delete(c.entries, characterID)
	c.mu.Unlock()
}
