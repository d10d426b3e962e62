package quiz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultCacheTTL = 5 * time.Minute

// DefinitionCache provides Redis-backed quiz definition caching to offload
// the quiz store on session creation bursts.
type DefinitionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDefinitionCache(client *redis.Client, ttl time.Duration) *DefinitionCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &DefinitionCache{client: client, ttl: ttl}
}

func (c *DefinitionCache) key(quizID string) string {
	return "quizdef:" + quizID
}

// Get returns the cached definition or (nil, nil) on a miss.
func (c *DefinitionCache) Get(ctx context.Context, quizID string) (*Definition, error) {
	data, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (c *DefinitionCache) Set(ctx context.Context, def *Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(def.ID), data, c.ttl).Err()
}

// CachingStore layers the definition cache in front of another store.
// Cache failures degrade to the inner store, never to a request failure.
type CachingStore struct {
	cache  *DefinitionCache
	inner  Store
	logger zerolog.Logger
}

func NewCachingStore(cache *DefinitionCache, inner Store, logger zerolog.Logger) *CachingStore {
	return &CachingStore{
		cache:  cache,
		inner:  inner,
		logger: logger.With().Str("component", "quiz_cache").Logger(),
	}
}

var _ Store = (*CachingStore)(nil)

func (s *CachingStore) Get(ctx context.Context, quizID string) (*Definition, error) {
	if def, err := s.cache.Get(ctx, quizID); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("cache read failed")
	} else if def != nil {
		return def, nil
	}

	def, err := s.inner.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, def); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("cache write failed")
	}
	return def, nil
}
