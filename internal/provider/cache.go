package provider

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/go-linkgate/internal/observability"
	"github.com/tbourn/go-linkgate/internal/repo"
	"github.com/tbourn/go-linkgate/internal/sysutil"
)

// MintCache makes minting idempotent per (provider, target, content).
// Lookups go L1 (in-process ristretto) -> L2 (Redis, optional) -> the
// provider_links table, which is the source of truth. Concurrent misses for
// one key collapse into a single provider call.
type MintCache struct {
	db    *gorm.DB
	local *ristretto.Cache
	rdb   *redis.Client // nil disables L2
	ttl   time.Duration
	group singleflight.Group
}

// NewMintCache builds the cache. maxItems bounds L1; rdb may be nil.
func NewMintCache(db *gorm.DB, rdb *redis.Client, maxItems int64) (*MintCache, error) {
	if maxItems < 1 {
		maxItems = 10000
	}
	local, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems, // cost 1 per entry
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MintCache{db: db, local: local, rdb: rdb, ttl: time.Hour}, nil
}

// Close releases L1 resources.
func (m *MintCache) Close() {
	m.local.Close()
}

func mintKey(providerID, targetURL, contentID string) string {
	return "mint:" + providerID + "|" + contentID + "|" + targetURL
}

// Mint returns the stored link for the key, or mints one through p and
// stores it. The first stored link wins.
func (m *MintCache) Mint(ctx context.Context, p Provider, targetURL, contentID string) (string, error) {
	key := mintKey(p.ID(), targetURL, contentID)

	if v, ok := m.local.Get(key); ok {
		observability.MintCache.WithLabelValues("l1", "hit").Inc()
		return v.(string), nil
	}
	if u, ok := m.getL2(ctx, key); ok {
		m.local.SetWithTTL(key, u, 1, m.ttl)
		return u, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		link, err := repo.GetProviderLink(ctx, m.db, p.ID(), targetURL, contentID)
		if err == nil {
			observability.MintCache.WithLabelValues("db", "hit").Inc()
			return link.ShortURL, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return "", err
		}
		observability.MintCache.WithLabelValues("db", "miss").Inc()

		short, err := p.Mint(ctx, targetURL, contentID)
		if err != nil {
			return "", err
		}
		link, err = repo.PutProviderLink(ctx, m.db, p.ID(), targetURL, contentID, short)
		if err != nil {
			return "", err
		}
		return link.ShortURL, nil
	})
	if err != nil {
		return "", err
	}

	u := v.(string)
	m.local.SetWithTTL(key, u, 1, m.ttl)
	m.setL2(ctx, key, u)
	return u, nil
}

func (m *MintCache) getL2(ctx context.Context, key string) (string, bool) {
	if m.rdb == nil {
		return "", false
	}
	u, err := m.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		observability.MintCache.WithLabelValues("l2", "hit").Inc()
		return u, true
	case errors.Is(err, redis.Nil):
		observability.MintCache.WithLabelValues("l2", "miss").Inc()
	default:
		// L2 is an accelerator; fall through to the database
		sysutil.Logger(ctx).Warn().Err(err).Msg("mint cache: redis get")
	}
	return "", false
}

func (m *MintCache) setL2(ctx context.Context, key, u string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Set(ctx, key, u, m.ttl).Err(); err != nil {
		sysutil.Logger(ctx).Warn().Err(err).Msg("mint cache: redis set")
	}
}

// CachedProvider binds a Provider to a MintCache so Mint goes through it.
type CachedProvider struct {
	Provider
	cache *MintCache
}

// WithMintCache wraps p.
func WithMintCache(p Provider, cache *MintCache) *CachedProvider {
	return &CachedProvider{Provider: p, cache: cache}
}

// Mint implements Provider.
func (c *CachedProvider) Mint(ctx context.Context, targetURL, contentID string) (string, error) {
	return c.cache.Mint(ctx, c.Provider, targetURL, contentID)
}
